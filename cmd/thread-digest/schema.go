package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theimaginaryfoundation/thread-digest/digest"
	"github.com/theimaginaryfoundation/thread-digest/digest/fileutils"
)

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [output|checkpoint|threads]",
		Short:     "Print the JSON Schema of a file the pipeline reads or writes",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: digest.SchemaNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := digest.SchemaOutput
			if len(args) == 1 {
				name = args[0]
			}
			schema, err := digest.GenerateSchema(name)
			if err != nil {
				return err
			}
			b, err := fileutils.MarshalJSON(schema, true)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
