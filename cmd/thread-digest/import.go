package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/thread-digest/digest"
	"github.com/theimaginaryfoundation/thread-digest/digest/source"
	"github.com/theimaginaryfoundation/thread-digest/internal/logging"
)

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import PATH...",
		Short: "Load JSON or YAML thread dumps into the SQLite archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New("import")

			var threads []digest.Thread
			for _, p := range args {
				ts, err := source.LoadPath(p)
				if err != nil {
					return err
				}
				logger.Info("loaded thread dump", "path", p, "threads", len(ts))
				threads = append(threads, ts...)
			}

			archive, err := source.OpenArchive(a.cfg.ArchivePath())
			if err != nil {
				return fmt.Errorf("open archive: %w", err)
			}
			defer archive.Close()

			posts, err := archive.SaveThreads(cmd.Context(), threads)
			if err != nil {
				return err
			}
			totalThreads, totalPosts, err := archive.Counts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d threads (%d posts) into %s; archive holds %d threads, %d posts\n",
				len(threads), posts, a.cfg.ArchivePath(), totalThreads, totalPosts)
			return nil
		},
	}
}
