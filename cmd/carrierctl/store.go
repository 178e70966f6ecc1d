package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/spf13/cobra"

	"github.com/superfly/carrierconf"
	"github.com/superfly/carrierconf/database"
	"github.com/superfly/carrierconf/provider"
	"github.com/superfly/carrierconf/tui"
)

// requestFlags are the flags shared by the store commands.
type requestFlags struct {
	set          []string
	null         []string
	where        string
	args         []string
	unprivileged bool
}

func (f *requestFlags) bindSelection(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.where, "where", "w", "", "Selection clause with ? placeholders")
	cmd.Flags().StringArrayVarP(&f.args, "arg", "a", nil, "Selection argument (repeatable)")
}

func (f *requestFlags) bindValues(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.set, "set", "s", nil, "Column value as key=value (repeatable); camelCase keys are accepted")
	cmd.Flags().StringArrayVar(&f.null, "null", nil, "Column to set to NULL (repeatable)")
}

func (f *requestFlags) bindCaller(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.unprivileged, "unprivileged", false, "Act as a caller without write-settings permission")
}

// columnKey canonicalises a user-supplied key to its column name, so that
// roamingProtocol and roaming_protocol name the same column.
func columnKey(k string) string {
	k = strings.TrimSpace(k)
	if k == carrierconf.ColID {
		return k
	}
	return strcase.ToSnake(k)
}

func (f *requestFlags) values() (carrierconf.Values, error) {
	v := make(carrierconf.Values, len(f.set)+len(f.null))
	for _, kv := range f.set {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", kv)
		}
		v[columnKey(k)] = val
	}
	for _, k := range f.null {
		v[columnKey(k)] = nil
	}
	return v, nil
}

func (f *requestFlags) selection() database.Selection {
	args := make([]any, len(f.args))
	for i, a := range f.args {
		args[i] = a
	}
	return database.Selection{Where: f.where, Args: args}
}

func (f *requestFlags) caller() provider.Caller {
	if f.unprivileged {
		return provider.Caller{}
	}
	return provider.Privileged
}

func parseResource(s string) (carrierconf.Resource, error) {
	return carrierconf.ParseURI(s)
}

func newQueryCommand(a *app) *cobra.Command {
	var (
		f       requestFlags
		columns []string
		sort    string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "query <resource>",
		Short: "Read carrier, preference or subscription rows",
		Long:  `Query a resource such as carriers, carriers/current, carriers/12, carriers/preferapn/subId/1 or siminfo.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := parseResource(args[0])
			if err != nil {
				return err
			}
			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			rs, err := p.Query(cmd.Context(), f.caller(), res, provider.QueryArgs{
				Projection: columns,
				Selection:  f.selection(),
				SortOrder:  sort,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, rs)
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderRowSet(rs, nil))
			return nil
		},
	}
	f.bindSelection(cmd)
	f.bindCaller(cmd)
	cmd.Flags().StringSliceVar(&columns, "column", nil, "Columns to return (default: all)")
	cmd.Flags().StringVar(&sort, "sort", "", `Sort order, e.g. "name DESC, _id"`)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print rows as JSON objects")
	return cmd
}

func writeJSON(cmd *cobra.Command, rs *database.RowSet) error {
	out := make([]map[string]any, rs.Len())
	for i := range out {
		row := make(map[string]any, len(rs.Columns))
		for _, c := range rs.Columns {
			row[c], _ = rs.Value(i, c)
		}
		out[i] = row
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func newInsertCommand(a *app) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "insert <resource>",
		Short: "Insert a row, set the current operator or a preferred APN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := parseResource(args[0])
			if err != nil {
				return err
			}
			values, err := f.values()
			if err != nil {
				return err
			}
			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			out, err := p.Insert(cmd.Context(), f.caller(), res, values)
			if err != nil {
				return err
			}
			if out == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no row created")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
	f.bindValues(cmd)
	f.bindCaller(cmd)
	return cmd
}

func newUpdateCommand(a *app) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "update <resource>",
		Short: "Update rows or preferred APNs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := parseResource(args[0])
			if err != nil {
				return err
			}
			values, err := f.values()
			if err != nil {
				return err
			}
			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			n, err := p.Update(cmd.Context(), f.caller(), res, values, f.selection())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatInt(n, 10))
			return nil
		},
	}
	f.bindValues(cmd)
	f.bindSelection(cmd)
	f.bindCaller(cmd)
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	var f requestFlags
	cmd := &cobra.Command{
		Use:   "delete <resource>",
		Short: "Delete rows, reset preferred APNs or restore defaults",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := parseResource(args[0])
			if err != nil {
				return err
			}
			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			n, err := p.Delete(cmd.Context(), f.caller(), res, f.selection())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatInt(n, 10))
			return nil
		},
	}
	f.bindSelection(cmd)
	f.bindCaller(cmd)
	return cmd
}

func newRestoreCommand(a *app) *cobra.Command {
	var subID int64
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace every carrier row with the bundled and overlay assets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			if !cmd.Flags().Changed("sub-id") {
				subID = a.cfg.DefaultSubID
			}
			report, err := p.Restore(cmd.Context(), subID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderPopulationReport(report))
			return nil
		},
	}
	cmd.Flags().Int64Var(&subID, "sub-id", 0, "Subscription whose preferred APN is reset (default: defaultSubId)")
	return cmd
}

func newPopulateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "Load the APN assets into the carrier table without wiping it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.openProvider(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			report, err := p.Populate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderPopulationReport(report))
			return nil
		},
	}
}
