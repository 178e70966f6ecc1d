package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/superfly/carrierconf/database"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newVersionCommand(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tool and database schema versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "carrierctl %s (schema revision %d)\n", version, database.SchemaRevision>>16)
			return nil
		},
	}
}
