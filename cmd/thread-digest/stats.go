package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/thread-digest/digest/fileutils"
	"github.com/theimaginaryfoundation/thread-digest/digest/stats"
	"github.com/theimaginaryfoundation/thread-digest/internal/logging"
)

func (a *app) statsCmd() *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Compute per-country post statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			threads, err := a.loadThreads(cmd.Context())
			if err != nil {
				return err
			}
			report := stats.Countries(threads, time.Now())

			if printOnly {
				b, err := fileutils.MarshalJSON(report, true)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
				return err
			}

			path, err := stats.Write(a.cfg.DataDir, report, a.cfg.Pretty)
			if err != nil {
				return err
			}
			logging.New("stats").Info("country stats written",
				"path", path, "threads", report.ThreadCount, "posts", report.TotalPosts, "countries", len(report.Countries))
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d countries, %d posts)\n", path, len(report.Countries), report.TotalPosts)
			return nil
		},
	}
	addThreadSourceFlags(cmd)
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the report instead of writing "+stats.FileName)
	return cmd
}
