package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/superfly/carrierconf"
	"github.com/superfly/carrierconf/assets"
	"github.com/superfly/carrierconf/database"
	"github.com/superfly/carrierconf/notify"
	"github.com/superfly/carrierconf/perf"
	"github.com/superfly/carrierconf/prefs"
)

// ErrAssetVersion is recorded for an overlay whose version differs from
// the bundled list. The overlay is skipped.
var ErrAssetVersion = errors.New("apn asset version mismatch")

// Asset names used in reports and metrics.
const (
	AssetBase    = "base"
	AssetPartner = "partner"
	AssetOEM     = "oem"
)

// Populate loads the bundled APN list and the newer of the partner and OEM
// overlays into the carrier table. Each asset commits or rolls back on its
// own; a failed asset is reported, not returned.
func (p *Provider) Populate(ctx context.Context) (report *perf.PopulationReport, err error) {
	ctx, done := p.begin(ctx, "populate", carrierconf.Carriers())
	defer func() { done(err) }()

	report = perf.NewPopulationReport()
	ctx = perf.WithReport(ctx, report)
	start := time.Now()

	err = p.guard.WithOperation(ctx, "populate", func() error {
		return p.db.RunInTx(ctx, func(tx *database.Tx) error {
			p.loadAssets(ctx, tx)
			return nil
		})
	})
	report.TotalDuration = time.Since(start)
	if err != nil {
		return report, fmt.Errorf("failed to populate carriers: %w", err)
	}
	if report.Rows() > 0 {
		p.notify(ctx, notify.Carriers, carrierconf.Carriers(), "populate", int64(report.Rows()))
	}
	return report, nil
}

// Restore deletes every carrier row, reloads the assets, resets the
// preferred APN of subID and notifies the carriers channel. The wipe and
// reload share one transaction.
func (p *Provider) Restore(ctx context.Context, subID int64) (report *perf.PopulationReport, err error) {
	res := carrierconf.CarriersRestore().WithSubID(subID)
	ctx, done := p.begin(ctx, "restore", res)
	defer func() { done(err) }()

	report = perf.NewPopulationReport()
	ctx = perf.WithReport(ctx, report)
	start := time.Now()

	err = p.guard.WithOperation(ctx, "restore", func() error {
		return p.db.RunInTx(ctx, func(tx *database.Tx) error {
			wipeStart := time.Now()
			n, err := tx.Delete(ctx, database.TableCarriers, database.Selection{})
			if err != nil {
				return err
			}
			report.RecordWipe(n, time.Since(wipeStart))
			p.loadAssets(ctx, tx)
			return nil
		})
	})
	report.TotalDuration = time.Since(start)
	if err != nil {
		return report, fmt.Errorf("failed to restore carriers: %w", err)
	}

	if err := p.prefs.Reset(prefs.PreferredAPN, subID); err != nil {
		p.logger.WithError(err).WithField("sub_id", subID).Warn("failed to reset preferred APN")
	}

	p.logger.WithFields(logrus.Fields{
		"sub_id": subID,
		"wiped":  report.WipedRows,
		"rows":   report.Rows(),
		"failed": report.Failed(),
	}).Info("restored default carriers")
	p.notify(ctx, notify.Carriers, res, "restore", 1)
	return report, nil
}

// loadAssets loads the base list, then the selected overlay when its
// version matches the base.
func (p *Provider) loadAssets(ctx context.Context, tx *database.Tx) {
	baseVersion := p.loadAsset(ctx, tx, AssetBase, p.layout.BaseAPNs(), -1)

	overlay, ok := assets.SelectNewer(ctx, p.layout.PartnerAPNs(), p.layout.VendorAPNs())
	if !ok {
		p.logger.Debug("no partner or OEM APN overlay present")
		return
	}
	name := AssetPartner
	if overlay == p.layout.VendorAPNs() {
		name = AssetOEM
	}
	p.loadAsset(ctx, tx, name, overlay, baseVersion)
}

// loadAsset inserts every row of ref inside its own savepoint and returns
// the document version, or -1 when the asset was not loaded. wantVersion
// below zero skips the version check.
func (p *Provider) loadAsset(ctx context.Context, tx *database.Tx, name string, ref assets.Ref, wantVersion int) int {
	ctx, span := p.tracer.Start(ctx, "provider.asset")
	span.SetAttributes(attribute.String("asset", name), attribute.String("source", ref.String()))
	defer span.End()

	start := time.Now()
	logger := p.logger.WithFields(logrus.Fields{"asset": name, "source": ref.String()})

	doc, err := assets.LoadAPNs(ctx, ref)
	if err != nil && assets.IsNotExist(err) {
		logger.Debug("apn asset not present")
		return -1
	}
	if err == nil && wantVersion >= 0 && doc.Version != wantVersion {
		err = fmt.Errorf("%w: %s has version %d, bundled list has %d", ErrAssetVersion, ref, doc.Version, wantVersion)
	}

	rows := 0
	if err == nil {
		err = tx.Savepoint(ctx, "asset_"+name, func() error {
			defaultSub := p.telephony.DefaultSubID()
			for i, row := range doc.Rows {
				rec, err := carrierconf.FillCarrierDefaults(row, defaultSub, p.omacp)
				if err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
				if _, err := tx.InsertCarrier(ctx, database.TableCarriers, rec); err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
				rows++
			}
			return nil
		})
	}

	load := perf.AssetLoad{Name: name, Source: ref.String(), Rows: rows, Duration: time.Since(start), Err: err}
	if report := perf.ReportFromContext(ctx); report != nil {
		report.RecordAsset(load)
	}
	p.metrics.ObserveAsset(name, rows, err)
	span.SetAttributes(attribute.Int("rows", rows))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WithError(err).Error("apn asset rolled back")
		return -1
	}
	logger.WithFields(logrus.Fields{"rows": rows, "version": doc.Version}).Info("apn asset loaded")
	return doc.Version
}
