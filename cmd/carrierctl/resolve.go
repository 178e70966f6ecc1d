package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/superfly/carrierconf/spn"
	"github.com/superfly/carrierconf/tui"
)

func newResolveCommand(a *app) *cobra.Command {
	var (
		sim     spn.SIMContext
		noSIM   bool
		short   bool
		display bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <numeric>",
		Short: "Resolve the display name of an operator",
		Long: `Resolve an operator name from the SIM identifiers, falling back to the
built-in table, the vendor spn-conf table and finally the numeric code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			numeric := args[0]
			layout, err := a.layout(cmd.Context())
			if err != nil {
				return err
			}
			tables := spn.Load(cmd.Context(), layout, a.cfg.SPN.Variant, a.logger)
			r := spn.New(tables, spn.Options{
				Profile: spn.ParseProfile(a.cfg.SPN.Profile),
				Metrics: a.resolver,
				Logger:  a.logger,
			})

			var simCtx *spn.SIMContext
			if !noSIM {
				simCtx = &sim
			}

			pairs := [][2]string{{"numeric", numeric}}
			if display {
				name, ok := r.ResolveDisplayName(numeric, !short, simCtx)
				if !ok {
					name = "(none)"
				}
				pairs = append(pairs, [2]string{"display name", name})
			} else {
				res := r.Resolve(numeric, !short, simCtx)
				pairs = append(pairs, [2]string{"name", res.Name}, [2]string{"tier", res.Tier})
			}
			if sim.IMSI != "" {
				if pattern, ok := r.MvnoPatternForImsi(sim.IMSI); ok {
					pairs = append(pairs, [2]string{"imsi pattern", pattern})
				}
			}
			if vendor, ok := r.VendorName(numeric); ok {
				pairs = append(pairs, [2]string{"vendor name", vendor})
			}

			fmt.Fprint(cmd.OutOrStdout(), tui.RenderKeyValues("Operator", pairs))
			return nil
		},
	}
	cmd.Flags().StringVar(&sim.IMSI, "imsi", "", "SIM IMSI")
	cmd.Flags().StringVar(&sim.EFSPN, "spn", "", "SIM EF_SPN service provider name")
	cmd.Flags().StringVar(&sim.EFPNN, "pnn", "", "SIM EF_PNN network name")
	cmd.Flags().StringVar(&sim.GID1, "gid1", "", "SIM EF_GID1 as hex")
	cmd.Flags().BoolVar(&noSIM, "no-sim", false, "Resolve without a SIM context")
	cmd.Flags().BoolVar(&short, "short", false, "Resolve the short name")
	cmd.Flags().BoolVar(&display, "display", false, "Resolve the display name (no numeric fallback)")
	return cmd
}
