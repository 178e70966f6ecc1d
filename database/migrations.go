package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/superfly/carrierconf/safeguards"
)

// SchemaRevision is the internal revision counter, held in the upper
// sixteen bits of the stored version.
const SchemaRevision = 16 << 16

// SchemaVersion combines the internal revision with the version attribute
// of the bundled APN asset, so that a new asset payload alone moves the
// stored version forward.
func SchemaVersion(assetVersion int) int {
	return SchemaRevision | assetVersion
}

// stepThreshold is the stored version below which upgrade step n applies.
func stepThreshold(n int) int {
	return n<<16 | 6
}

// upgradeStep is one forward-only schema change. Every statement inside a
// step is guarded on its own: a failure is logged and the step continues.
type upgradeStep struct {
	major       int
	description string
	apply       func(ctx context.Context, u *upgrader)
}

// carrierTables receive every carrier column change.
var carrierTables = []string{TableCarriers, TableCarriersDM}

var upgradeSteps = []upgradeStep{
	{5, "Add authtype", func(ctx context.Context, u *upgrader) {
		u.addCarrierColumn(ctx, "authtype", "INTEGER NOT NULL DEFAULT -1")
	}},
	{6, "Add protocol and roaming_protocol", func(ctx context.Context, u *upgrader) {
		u.addCarrierColumn(ctx, "protocol", "TEXT NOT NULL DEFAULT 'IP'")
		u.addCarrierColumn(ctx, "roaming_protocol", "TEXT NOT NULL DEFAULT 'IP'")
	}},
	{7, "Bundled asset refresh", func(context.Context, *upgrader) {}},
	{8, "Add carrier_enabled, bearer and MVNO columns; wrap siminfo color", func(ctx context.Context, u *upgrader) {
		u.addCarrierColumn(ctx, "carrier_enabled", "BOOLEAN NOT NULL DEFAULT 1")
		u.addCarrierColumn(ctx, "bearer", "INTEGER NOT NULL DEFAULT 0")
		u.addCarrierColumn(ctx, "mvno_type", "TEXT NOT NULL DEFAULT ''")
		u.addCarrierColumn(ctx, "mvno_match_data", "TEXT NOT NULL DEFAULT ''")
		u.exec(ctx, fmt.Sprintf("UPDATE siminfo SET color = color %% %d", u.paletteSize))
	}},
	{9, "Add spn and imsi", func(ctx context.Context, u *upgrader) {
		u.addCarrierColumn(ctx, "spn", "TEXT NOT NULL DEFAULT ''")
		u.addCarrierColumn(ctx, "imsi", "TEXT NOT NULL DEFAULT ''")
	}},
	{10, "Add siminfo name_source", func(ctx context.Context, u *upgrader) {
		u.addColumn(ctx, TableSimInfo, "name_source", "INTEGER DEFAULT 0")
	}},
	{11, "Add pnn", func(ctx context.Context, u *upgrader) {
		u.addCarrierColumn(ctx, "pnn", "TEXT NOT NULL DEFAULT ''")
	}},
	{12, "Add siminfo operator", func(ctx context.Context, u *upgrader) {
		u.addColumn(ctx, TableSimInfo, "operator", "TEXT")
	}},
	{13, "Add ppp", func(ctx context.Context, u *upgrader) {
		u.addCarrierColumn(ctx, "ppp", "TEXT NOT NULL DEFAULT ''")
	}},
	{14, "Re-assert MVNO columns", func(ctx context.Context, u *upgrader) {
		u.addCarrierColumn(ctx, "mvno_type", "TEXT NOT NULL DEFAULT ''")
		u.addCarrierColumn(ctx, "mvno_match_data", "TEXT NOT NULL DEFAULT ''")
	}},
	{15, "Add subscription and modem profile columns; rebuild siminfo", func(ctx context.Context, u *upgrader) {
		u.addCarrierColumn(ctx, "sub_id", "INTEGER NOT NULL DEFAULT -1")
		u.addCarrierColumn(ctx, "profile_id", "INTEGER NOT NULL DEFAULT 0")
		u.addCarrierColumn(ctx, "modem_cognitive", "BOOLEAN NOT NULL DEFAULT 0")
		u.addCarrierColumn(ctx, "max_conns", "INTEGER NOT NULL DEFAULT 0")
		u.addCarrierColumn(ctx, "wait_time", "INTEGER NOT NULL DEFAULT 0")
		u.addCarrierColumn(ctx, "max_conns_time", "INTEGER NOT NULL DEFAULT 0")
		u.addCarrierColumn(ctx, "mtu", "INTEGER NOT NULL DEFAULT 0")
		u.rebuildSimInfo(ctx)
	}},
	{16, "Add siminfo carrier_name; reset color", func(ctx context.Context, u *upgrader) {
		u.addColumn(ctx, TableSimInfo, "carrier_name", "TEXT")
		u.exec(ctx, "UPDATE siminfo SET color = 0")
	}},
}

// upgrader runs upgrade steps against an open handle.
type upgrader struct {
	q           execer
	logger      logrus.FieldLogger
	paletteSize int
	failures    int
}

func (u *upgrader) exec(ctx context.Context, stmt string, args ...any) bool {
	if _, err := u.q.ExecContext(ctx, stmt, args...); err != nil {
		u.failures++
		u.logger.WithError(err).WithField("statement", strings.TrimSpace(stmt)).Warn("upgrade statement failed")
		return false
	}
	return true
}

func (u *upgrader) addCarrierColumn(ctx context.Context, column, def string) {
	for _, table := range carrierTables {
		u.addColumn(ctx, table, column, def)
	}
}

// addColumn adds column to table unless the table is missing or already
// has it, so re-running a step never fails on a duplicate column.
func (u *upgrader) addColumn(ctx context.Context, table, column, def string) {
	cols, err := tableColumns(ctx, u.q, table)
	if err != nil {
		u.failures++
		u.logger.WithError(err).WithField("table", table).Warn("failed to inspect table")
		return
	}
	if len(cols) == 0 || cols[column] {
		return
	}
	u.exec(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, def))
}

// rebuildSimInfo moves siminfo onto the current layout, copying every
// column the old table shares with it.
func (u *upgrader) rebuildSimInfo(ctx context.Context) {
	cols, err := tableColumns(ctx, u.q, TableSimInfo)
	if err != nil || len(cols) == 0 {
		return
	}
	var shared []string
	for _, c := range simInfoColumns {
		if cols[c] {
			shared = append(shared, c)
		}
	}
	list := strings.Join(shared, ", ")
	u.exec(ctx, "DROP TABLE IF EXISTS siminfo_rebuild")
	if !u.exec(ctx, createSimInfoTable("siminfo_rebuild")) {
		return
	}
	if !u.exec(ctx, fmt.Sprintf("INSERT INTO siminfo_rebuild (%s) SELECT %s FROM siminfo", list, list)) {
		u.exec(ctx, "DROP TABLE IF EXISTS siminfo_rebuild")
		return
	}
	if u.exec(ctx, "DROP TABLE siminfo") {
		u.exec(ctx, "ALTER TABLE siminfo_rebuild RENAME TO siminfo")
	}
}

// tableColumns returns the column set of table, empty when it does not exist.
func tableColumns(ctx context.Context, q execer, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// upgrade runs every step whose threshold lies above oldVersion, in order.
// oldVersion advances after each step so later steps see the upgraded state.
// Steps that ran are recorded in schema_migrations.
func (d *DB) upgrade(ctx context.Context, oldVersion int) int {
	u := &upgrader{
		q:           d.db,
		logger:      d.logger.WithField("phase", "upgrade"),
		paletteSize: d.cfg.PaletteSize,
	}
	applied := 0
	for _, step := range upgradeSteps {
		threshold := stepThreshold(step.major)
		if oldVersion >= threshold {
			continue
		}
		err := safeguards.RecoverableOperation(u.logger, step.description, func() error {
			step.apply(ctx, u)
			return nil
		})
		if err != nil {
			u.failures++
		}
		u.exec(ctx,
			"INSERT OR REPLACE INTO schema_migrations (version, description) VALUES (?, ?)",
			threshold, step.description)
		u.logger.WithFields(logrus.Fields{
			"step":        step.major,
			"old_version": fmt.Sprintf("%#x", oldVersion),
		}).Info("applied upgrade step")
		oldVersion = threshold
		applied++
	}
	if u.failures > 0 {
		u.logger.WithField("failures", u.failures).Warn("upgrade finished with failed statements")
	}
	return applied
}

// AppliedSteps returns the upgrade steps recorded for this database file.
func (d *DB) AppliedSteps(ctx context.Context) ([]int, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query applied steps: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan applied step: %w", err)
		}
		out = append(out, v>>16)
	}
	return out, rows.Err()
}
