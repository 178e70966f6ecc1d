package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/superfly/carrierconf/tui"
)

func newAssetsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect and mirror the S3 asset overlay",
	}
	cmd.AddCommand(newAssetsListCommand(a), newAssetsSyncCommand(a))
	return cmd
}

func newAssetsListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List overlay assets in the configured bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := a.s3Source(cmd.Context())
			if err != nil {
				return err
			}
			objects, err := src.List(cmd.Context())
			if err != nil {
				return err
			}

			t := tui.NewTable([]tui.Column{{Title: "NAME"}, {Title: "SIZE"}, {Title: "MODIFIED"}})
			for _, o := range objects {
				t.AddRow(tui.Row{o.Name, fmt.Sprint(o.Size), o.LastModified.UTC().Format("2006-01-02 15:04:05")})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s", src.String(), t.Render())
			return nil
		},
	}
}

func newAssetsSyncCommand(a *app) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the overlay assets into a local directory",
		Long: `Copy every object under the configured prefix into --dest, keeping
relative names and modification times. Point assets.vendor at the
destination to use the mirror without S3 access.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dest == "" {
				dest = a.cfg.Assets.Vendor
			}
			src, err := a.s3Source(cmd.Context())
			if err != nil {
				return err
			}
			results, err := src.Sync(cmd.Context(), dest)

			styles := tui.DefaultStyles()
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s (%d bytes, sha256 %s)\n",
					styles.StatusIcon("ok"), r.Name, r.LocalPath, r.SizeBytes, r.Checksum)
			}
			if err != nil {
				return fmt.Errorf("sync stopped after %d assets: %w", len(results), err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "Destination directory (default: assets.vendor)")
	return cmd
}
