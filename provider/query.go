package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/superfly/carrierconf"
	"github.com/superfly/carrierconf/database"
	"github.com/superfly/carrierconf/prefs"
)

// QueryArgs are the caller-controlled parts of a read.
type QueryArgs struct {
	// Projection lists the columns to return; nil returns every column.
	Projection []string

	Selection database.Selection

	// SortOrder is a comma separated list of "column [ASC|DESC]" terms.
	SortOrder string
}

// Columns any caller may read from the carrier tables.
var publicCarrierColumns = map[string]bool{
	carrierconf.ColType:     true,
	carrierconf.ColMMSC:     true,
	carrierconf.ColMMSProxy: true,
	carrierconf.ColMMSPort:  true,
	carrierconf.ColAPN:      true,
}

// needsPermission reports whether reading projection from a carrier table
// requires write permission. A nil projection returns every column.
func needsPermission(projection []string) bool {
	if projection == nil {
		return true
	}
	for _, c := range projection {
		if !publicCarrierColumns[c] {
			return true
		}
	}
	return false
}

// Query reads rows for res. It returns nil without error for resources it
// does not serve and when the storage engine fails.
func (p *Provider) Query(ctx context.Context, caller Caller, res carrierconf.Resource, args QueryArgs) (rs *database.RowSet, err error) {
	ctx, done := p.begin(ctx, "query", res)
	defer func() { done(err) }()

	table, scope, ok := p.queryScope(ctx, res)
	if !ok {
		p.logger.WithField("resource", res.String()).Debug("query on unserved resource")
		return nil, nil
	}

	if table != database.TableSimInfo && needsPermission(args.Projection) && !caller.CanWrite() {
		return nil, fmt.Errorf("%w: query %s", carrierconf.ErrPermissionDenied, res)
	}

	lookup := p.columnLookup(table)
	for _, c := range args.Projection {
		if _, ok := lookup(c); !ok {
			return nil, fmt.Errorf("%w: unknown column %q", carrierconf.ErrInvalidRequest, c)
		}
	}
	orderBy, err := parseSortOrder(args.SortOrder, lookup)
	if err != nil {
		return nil, err
	}

	sel := args.Selection
	if !scope.Empty() {
		sel = sel.And(scope.Where, scope.Args...)
	}

	rs, qerr := p.db.Query(ctx, table, database.QuerySpec{
		Columns:   args.Projection,
		Selection: sel,
		OrderBy:   orderBy,
	})
	if qerr != nil {
		p.storageFailure(ctx, "query", res, qerr)
		return nil, nil
	}
	p.logger.WithFields(logrus.Fields{
		"resource": res.String(),
		"rows":     rs.Len(),
	}).Debug("query completed")
	return rs, nil
}

// queryScope maps res to its table and the clause the resource itself
// implies. ok is false for resources that cannot be read.
func (p *Provider) queryScope(ctx context.Context, res carrierconf.Resource) (table string, scope database.Selection, ok bool) {
	switch res.Kind {
	case carrierconf.KindCarriers:
		if res.HasSubID {
			op := p.telephony.SimOperator(ctx, res.SubID)
			scope = scope.And(carrierconf.ColNumeric+" = ?", op)
		}
		return database.TableCarriers, scope, true
	case carrierconf.KindCarriersCurrent:
		return database.TableCarriers, scope.And(carrierconf.ColCurrent + " IS NOT NULL"), true
	case carrierconf.KindCarrierByID:
		return database.TableCarriers, scope.And(carrierconf.ColID+" = ?", res.ID), true
	case carrierconf.KindPreferAPN, carrierconf.KindPreferAPNNoUpdate:
		id := p.preference(prefs.PreferredAPN, p.subID(res))
		return database.TableCarriers, scope.And(carrierconf.ColID+" = ?", id), true
	case carrierconf.KindPreferTetheringAPN:
		id := p.preference(prefs.PreferredTetheringAPN, p.subID(res))
		return database.TableCarriers, scope.And(carrierconf.ColID+" = ?", id), true
	case carrierconf.KindSimInfo:
		return database.TableSimInfo, scope, true
	case carrierconf.KindCarriersDM:
		return database.TableCarriersDM, scope, true
	case carrierconf.KindCarrierDMByID:
		return database.TableCarriersDM, scope.And(carrierconf.ColID+" = ?", res.ID), true
	}
	return "", scope, false
}

// preference returns the stored row id, or prefs.Unset when there is none
// or the store cannot be read.
func (p *Provider) preference(key prefs.Key, subID int64) int64 {
	id, err := p.prefs.Get(key, subID)
	if err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{"key": key, "sub_id": subID}).Warn("failed to read preference")
		return prefs.Unset
	}
	return id
}

func (p *Provider) columnLookup(table string) func(string) (carrierconf.Column, bool) {
	if table == database.TableSimInfo {
		return carrierconf.LookupSubscriptionColumn
	}
	return func(name string) (carrierconf.Column, bool) {
		return carrierconf.LookupCarrierColumn(name, p.omacp)
	}
}

// parseSortOrder validates a sort specification against the table's
// columns and rebuilds it with quoted identifiers.
func parseSortOrder(order string, lookup func(string) (carrierconf.Column, bool)) (string, error) {
	if strings.TrimSpace(order) == "" {
		return "", nil
	}
	terms := strings.Split(order, ",")
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		fields := strings.Fields(term)
		if len(fields) == 0 || len(fields) > 2 {
			return "", fmt.Errorf("%w: bad sort term %q", carrierconf.ErrInvalidRequest, term)
		}
		col, ok := lookup(fields[0])
		if !ok {
			return "", fmt.Errorf("%w: unknown sort column %q", carrierconf.ErrInvalidRequest, fields[0])
		}
		dir := "ASC"
		if len(fields) == 2 {
			dir = strings.ToUpper(fields[1])
			if dir != "ASC" && dir != "DESC" {
				return "", fmt.Errorf("%w: bad sort direction %q", carrierconf.ErrInvalidRequest, fields[1])
			}
		}
		out = append(out, `"`+col.Name+`" `+dir)
	}
	return strings.Join(out, ", "), nil
}
