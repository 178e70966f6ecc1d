package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/superfly/carrierconf"
)

// ErrUnknownTable is returned for table names outside the carrier schema.
var ErrUnknownTable = errors.New("unknown table")

var knownTables = map[string]bool{
	TableCarriers:   true,
	TableCarriersDM: true,
	TableSimInfo:    true,
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Selection is a caller-supplied WHERE clause with bound arguments.
// An empty Where selects every row.
type Selection struct {
	Where string
	Args  []any
}

// Empty reports whether the selection has no clause.
func (s Selection) Empty() bool {
	return strings.TrimSpace(s.Where) == ""
}

// And returns s narrowed by clause. Both sides are parenthesised.
func (s Selection) And(clause string, args ...any) Selection {
	if s.Empty() {
		return Selection{Where: clause, Args: args}
	}
	all := make([]any, 0, len(s.Args)+len(args))
	all = append(all, s.Args...)
	all = append(all, args...)
	return Selection{Where: "(" + s.Where + ") AND (" + clause + ")", Args: all}
}

func (s Selection) sql() string {
	if s.Empty() {
		return ""
	}
	return " WHERE " + s.Where
}

// QuerySpec describes a read. Nil Columns selects every column.
type QuerySpec struct {
	Columns   []string
	Selection Selection
	OrderBy   string
}

// RowSet is the result of a query: column names plus row values. Text is
// returned as string and integers as int64; NULL is nil.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (r *RowSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// Value returns the value of column in row i.
func (r *RowSet) Value(i int, column string) (any, bool) {
	if r == nil || i < 0 || i >= len(r.Rows) {
		return nil, false
	}
	for c, name := range r.Columns {
		if name == column {
			return r.Rows[i][c], true
		}
	}
	return nil, false
}

// CarrierRecords converts a carrier-table result into records. Columns the
// result does not carry keep their defaults.
func (r *RowSet) CarrierRecords(omacp bool) ([]carrierconf.CarrierRecord, error) {
	out := make([]carrierconf.CarrierRecord, 0, r.Len())
	for i := 0; i < r.Len(); i++ {
		rec := carrierconf.NewCarrierRecord(carrierconf.NoSubscription)
		for c, name := range r.Columns {
			if err := rec.Set(name, r.Rows[i][c], omacp); err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// ops implements the table helpers over any execer.
type ops struct {
	q      execer
	omacp  bool
	logger logrus.FieldLogger
}

func checkTable(table string) error {
	if !knownTables[table] {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Query runs a read against table.
func (o ops) Query(ctx context.Context, table string, spec QuerySpec) (*RowSet, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	cols := "*"
	if spec.Columns != nil {
		quoted := make([]string, len(spec.Columns))
		for i, c := range spec.Columns {
			quoted[i] = quoteIdent(c)
		}
		cols = strings.Join(quoted, ", ")
	}
	query := "SELECT " + cols + " FROM " + table + spec.Selection.sql()
	if spec.OrderBy != "" {
		query += " ORDER BY " + spec.OrderBy
	}

	rows, err := o.q.QueryContext(ctx, query, spec.Selection.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	rs := &RowSet{Columns: names}
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", table, err)
	}
	return rs, nil
}

// Insert writes one row and returns its id.
func (o ops) Insert(ctx context.Context, table string, cols []string, vals []any) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	if len(cols) != len(vals) {
		return 0, fmt.Errorf("insert into %s: %d columns, %d values", table, len(cols), len(vals))
	}
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	var query string
	if len(cols) == 0 {
		query = "INSERT INTO " + table + " DEFAULT VALUES"
	} else {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(quoted, ", "), strings.Join(marks, ", "))
	}

	res, err := o.q.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	o.logWrite("insert", table, 1, logrus.Fields{"id": id})
	return id, nil
}

// InsertCarrier writes a complete carrier record into table.
func (o ops) InsertCarrier(ctx context.Context, table string, rec carrierconf.CarrierRecord) (int64, error) {
	cols, vals := rec.Row(o.omacp)
	return o.Insert(ctx, table, cols, vals)
}

// Update sets values on every row matching sel and returns the count.
func (o ops) Update(ctx context.Context, table string, values carrierconf.Values, sel Selection) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	keys := values.Keys()
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+len(sel.Args))
	for i, k := range keys {
		sets[i] = quoteIdent(k) + " = ?"
		args = append(args, values[k])
	}
	args = append(args, sel.Args...)
	query := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + sel.sql()

	res, err := o.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read update count: %w", err)
	}
	o.logWrite("update", table, n, nil)
	return n, nil
}

// Delete removes every row matching sel and returns the count.
func (o ops) Delete(ctx context.Context, table string, sel Selection) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	res, err := o.q.ExecContext(ctx, "DELETE FROM "+table+sel.sql(), sel.Args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete count: %w", err)
	}
	o.logWrite("delete", table, n, nil)
	return n, nil
}

// Count returns the number of rows in table matching sel.
func (o ops) Count(ctx context.Context, table string, sel Selection) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int64
	if err := o.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+sel.sql(), sel.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Subscription returns the subscription row with the given id, or nil
// when there is none.
func (o ops) Subscription(ctx context.Context, id int64) (*carrierconf.SubscriptionRecord, error) {
	query := `
		SELECT _id, icc_id, COALESCE(sim_id, -1), COALESCE(display_name, ''),
		       COALESCE(carrier_name, ''), COALESCE(name_source, 0), COALESCE(color, 0),
		       COALESCE(number, ''), display_number_format, COALESCE(data_roaming, 0),
		       COALESCE(mcc, 0), COALESCE(mnc, 0)
		FROM siminfo
		WHERE _id = ?
	`
	var s carrierconf.SubscriptionRecord
	err := o.q.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.ICCID, &s.SimID, &s.DisplayName, &s.CarrierName, &s.NameSource,
		&s.Color, &s.Number, &s.DisplayNumberFormat, &s.DataRoaming, &s.MCC, &s.MNC,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	return &s, nil
}

func (o ops) logWrite(op, table string, rows int64, extra logrus.Fields) {
	if o.logger == nil {
		return
	}
	fields := logrus.Fields{"op": op, "table": table, "rows": rows}
	for k, v := range extra {
		fields[k] = v
	}
	o.logger.WithFields(fields).Debug("[DB-WRITE]")
}
