package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/superfly/carrierconf"
	"github.com/superfly/carrierconf/database"
	"github.com/superfly/carrierconf/notify"
	"github.com/superfly/carrierconf/prefs"
)

// errNoCurrentMatch rolls back a set-current transaction that marked nothing.
var errNoCurrentMatch = errors.New("no carrier rows match numeric")

func invalid(err error) error {
	return fmt.Errorf("%w: %v", carrierconf.ErrInvalidRequest, err)
}

func unsupported(op string, res carrierconf.Resource) error {
	return fmt.Errorf("%w: %s %s", carrierconf.ErrUnsupportedOperation, op, res)
}

// Insert adds a row or sets a marker or preference. The returned resource
// addresses the new row and is nil for marker and preference writes and
// when the storage engine rejects the row.
func (p *Provider) Insert(ctx context.Context, caller Caller, res carrierconf.Resource, values carrierconf.Values) (out *carrierconf.Resource, err error) {
	ctx, done := p.begin(ctx, "insert", res)
	defer func() { done(err) }()

	if !caller.CanWrite() {
		return nil, fmt.Errorf("%w: insert %s", carrierconf.ErrPermissionDenied, res)
	}

	switch res.Kind {
	case carrierconf.KindCarriers:
		return p.insertCarrier(ctx, res, database.TableCarriers, values)
	case carrierconf.KindCarriersDM:
		return p.insertCarrier(ctx, res, database.TableCarriersDM, values)
	case carrierconf.KindCarriersCurrent:
		return nil, p.setCurrent(ctx, res, values)
	case carrierconf.KindPreferAPN, carrierconf.KindPreferAPNNoUpdate:
		_, err := p.writePreference(ctx, prefs.PreferredAPN, res, values)
		return nil, err
	case carrierconf.KindPreferTetheringAPN:
		_, err := p.writePreference(ctx, prefs.PreferredTetheringAPN, res, values)
		return nil, err
	case carrierconf.KindSimInfo:
		return p.insertSimInfo(ctx, res, values)
	}
	return nil, unsupported("insert", res)
}

func (p *Provider) insertCarrier(ctx context.Context, res carrierconf.Resource, table string, values carrierconf.Values) (*carrierconf.Resource, error) {
	rec, err := carrierconf.FillCarrierDefaults(values, p.subID(res), p.omacp)
	if err != nil {
		return nil, invalid(err)
	}
	if table == database.TableCarriersDM {
		_, hasMCC := values[carrierconf.ColMCC]
		_, hasMNC := values[carrierconf.ColMNC]
		if hasMCC && hasMNC {
			rec.Numeric = carrierconf.DeriveNumeric(rec.MCC, rec.MNC)
		}
	}

	id, err := p.db.InsertCarrier(ctx, table, rec)
	if err != nil {
		p.storageFailure(ctx, "insert", res, err)
		return nil, nil
	}

	var out carrierconf.Resource
	if table == database.TableCarriersDM {
		out = carrierconf.CarrierDMByID(id)
	} else {
		out = carrierconf.CarrierByID(id)
	}
	p.notify(ctx, notify.Carriers, out, "insert", 1)
	return &out, nil
}

// setCurrent moves the current marker to the rows whose numeric equals
// values["numeric"]. When no row matches the transaction is rolled back
// and the previous marker stays in place.
func (p *Provider) setCurrent(ctx context.Context, res carrierconf.Resource, values carrierconf.Values) error {
	numeric := cast.ToString(values[carrierconf.ColNumeric])
	var marked int64
	err := p.db.RunInTx(ctx, func(tx *database.Tx) error {
		_, err := tx.Update(ctx, database.TableCarriers,
			carrierconf.Values{carrierconf.ColCurrent: nil},
			database.Selection{Where: carrierconf.ColCurrent + " IS NOT NULL"})
		if err != nil {
			return err
		}
		marked, err = tx.Update(ctx, database.TableCarriers,
			carrierconf.Values{carrierconf.ColCurrent: int64(1)},
			database.Selection{Where: carrierconf.ColNumeric + " = ?", Args: []any{numeric}})
		if err != nil {
			return err
		}
		if marked == 0 {
			return errNoCurrentMatch
		}
		return nil
	})

	switch {
	case errors.Is(err, errNoCurrentMatch):
		p.logger.WithField("numeric", numeric).Warn("failed to set current operator")
		return nil
	case err != nil:
		p.storageFailure(ctx, "insert", res, err)
		return nil
	}

	p.logger.WithFields(logrus.Fields{"numeric": numeric, "rows": marked}).Info("current operator set")
	p.notify(ctx, notify.Carriers, res, "insert", marked)
	return nil
}

// writePreference stores values["apn_id"] under key for the resource's
// subscription. ok is false when the bag carries no apn_id or the store
// could not be written.
func (p *Provider) writePreference(ctx context.Context, key prefs.Key, res carrierconf.Resource, values carrierconf.Values) (ok bool, err error) {
	raw, present := values[carrierconf.ColAPNID]
	if !present {
		return false, nil
	}
	id, err := cast.ToInt64E(raw)
	if err != nil {
		return false, invalid(fmt.Errorf("%s: %w", carrierconf.ColAPNID, err))
	}
	if err := p.prefs.Set(key, p.subID(res), id); err != nil {
		p.storageFailure(ctx, "preference", res, err)
		return false, nil
	}
	return true, nil
}

func (p *Provider) insertSimInfo(ctx context.Context, res carrierconf.Resource, values carrierconf.Values) (*carrierconf.Resource, error) {
	norm, err := carrierconf.NormalizeSubscriptionValues(values)
	if err != nil {
		return nil, invalid(err)
	}
	cols := norm.Keys()
	vals := make([]any, len(cols))
	for i, c := range cols {
		vals[i] = norm[c]
	}
	id, err := p.db.Insert(ctx, database.TableSimInfo, cols, vals)
	if err != nil {
		p.storageFailure(ctx, "insert", res, err)
		return nil, nil
	}
	out := carrierconf.SimInfoByID(id)
	p.notify(ctx, notify.SimInfo, out, "insert", 1)
	return &out, nil
}

// Update changes rows or preferences and returns the affected count.
func (p *Provider) Update(ctx context.Context, caller Caller, res carrierconf.Resource, values carrierconf.Values, sel database.Selection) (n int64, err error) {
	ctx, done := p.begin(ctx, "update", res)
	defer func() { done(err) }()

	if !caller.CanWrite() {
		return 0, fmt.Errorf("%w: update %s", carrierconf.ErrPermissionDenied, res)
	}

	switch res.Kind {
	case carrierconf.KindCarriers, carrierconf.KindCarriersCurrent:
		return p.updateCarriers(ctx, res, database.TableCarriers, values, sel)
	case carrierconf.KindCarrierByID:
		if !sel.Empty() {
			return 0, fmt.Errorf("%w: update by id cannot carry a selection", carrierconf.ErrInvalidRequest)
		}
		return p.updateCarriers(ctx, res, database.TableCarriers, values,
			database.Selection{Where: carrierconf.ColID + " = ?", Args: []any{res.ID}})
	case carrierconf.KindCarriersDM:
		return p.updateCarriers(ctx, res, database.TableCarriersDM, values, sel)
	case carrierconf.KindPreferAPN, carrierconf.KindPreferAPNNoUpdate, carrierconf.KindPreferTetheringAPN:
		key := prefs.PreferredAPN
		if res.Kind == carrierconf.KindPreferTetheringAPN {
			key = prefs.PreferredTetheringAPN
		}
		ok, err := p.writePreference(ctx, key, res, values)
		if err != nil || !ok {
			return 0, err
		}
		return p.preferenceCount(ctx, res, "update"), nil
	case carrierconf.KindSimInfo:
		norm, err := carrierconf.NormalizeSubscriptionValues(values)
		if err != nil {
			return 0, invalid(err)
		}
		n, err := p.db.Update(ctx, database.TableSimInfo, norm, sel)
		if err != nil {
			p.storageFailure(ctx, "update", res, err)
			return 0, nil
		}
		if n > 0 {
			p.notify(ctx, notify.SimInfo, res, "update", n)
		}
		return n, nil
	}
	return 0, unsupported("update", res)
}

func (p *Provider) updateCarriers(ctx context.Context, res carrierconf.Resource, table string, values carrierconf.Values, sel database.Selection) (int64, error) {
	norm, err := carrierconf.NormalizeCarrierValues(values, p.omacp)
	if err != nil {
		return 0, invalid(err)
	}
	if st, ok := norm[carrierconf.ColSourceType].(int64); ok && st != carrierconf.SourceBundled && st != carrierconf.SourceProvisioned {
		p.logger.WithFields(logrus.Fields{"resource": res.String(), "sourcetype": st}).Warn("unexpected sourcetype")
	}

	n, err := p.db.Update(ctx, table, norm, sel)
	if err != nil {
		p.storageFailure(ctx, "update", res, err)
		return 0, nil
	}
	p.notifyCarrierChange(ctx, res, table, "update", n)
	return n, nil
}

// Delete removes rows, resets preferences or restores the factory carrier
// set, and returns the affected count.
func (p *Provider) Delete(ctx context.Context, caller Caller, res carrierconf.Resource, sel database.Selection) (n int64, err error) {
	ctx, done := p.begin(ctx, "delete", res)
	defer func() { done(err) }()

	if !caller.CanWrite() {
		return 0, fmt.Errorf("%w: delete %s", carrierconf.ErrPermissionDenied, res)
	}

	switch res.Kind {
	case carrierconf.KindCarriers, carrierconf.KindCarriersCurrent:
		return p.deleteRows(ctx, res, database.TableCarriers, sel)
	case carrierconf.KindCarrierByID:
		return p.deleteRows(ctx, res, database.TableCarriers, sel.And(carrierconf.ColID+" = ?", res.ID))
	case carrierconf.KindCarriersDM:
		return p.deleteRows(ctx, res, database.TableCarriersDM, sel)
	case carrierconf.KindSimInfo:
		return p.deleteRows(ctx, res, database.TableSimInfo, sel)
	case carrierconf.KindCarriersRestore:
		if _, err := p.Restore(ctx, p.subID(res)); err != nil {
			p.storageFailure(ctx, "restore", res, err)
		}
		return 1, nil
	case carrierconf.KindPreferAPN, carrierconf.KindPreferAPNNoUpdate, carrierconf.KindPreferTetheringAPN:
		key := prefs.PreferredAPN
		if res.Kind == carrierconf.KindPreferTetheringAPN {
			key = prefs.PreferredTetheringAPN
		}
		if err := p.prefs.Reset(key, p.subID(res)); err != nil {
			p.storageFailure(ctx, "delete", res, err)
			return 0, nil
		}
		return p.preferenceCount(ctx, res, "delete"), nil
	}
	return 0, unsupported("delete", res)
}

func (p *Provider) deleteRows(ctx context.Context, res carrierconf.Resource, table string, sel database.Selection) (int64, error) {
	n, err := p.db.Delete(ctx, table, sel)
	if err != nil {
		p.storageFailure(ctx, "delete", res, err)
		return 0, nil
	}
	if table == database.TableSimInfo {
		if n > 0 {
			p.notify(ctx, notify.SimInfo, res, "delete", n)
		}
		return n, nil
	}
	p.notifyCarrierChange(ctx, res, table, "delete", n)
	return n, nil
}

// preferenceCount reports the count of a preference write and notifies
// when it is non-zero. The no-update variant always reports zero.
func (p *Provider) preferenceCount(ctx context.Context, res carrierconf.Resource, op string) int64 {
	if res.Kind == carrierconf.KindPreferAPNNoUpdate {
		return 0
	}
	p.notify(ctx, notify.Carriers, res, op, 1)
	return 1
}

// notifyCarrierChange notifies the carriers channel, and the
// device-management channel for carriers_dm, when n > 0.
func (p *Provider) notifyCarrierChange(ctx context.Context, res carrierconf.Resource, table, op string, n int64) {
	if n <= 0 {
		return
	}
	if table == database.TableCarriersDM {
		p.notify(ctx, notify.CarriersDM, res, op, n)
	}
	p.notify(ctx, notify.Carriers, res, op, n)
}
