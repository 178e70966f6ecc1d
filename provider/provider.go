// Package provider is the carrier store's CRUD surface. It dispatches
// Query, Insert, Update and Delete on the resource kind, enforces the
// write-settings permission, fills carrier defaults, keeps the preferred
// APN preferences, runs bulk population and factory restore, and notifies
// observers after every committed change.
//
// Storage failures are logged and reported as an empty result or a zero
// count; only permission, request-shape and unsupported-resource errors
// reach the caller.
package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/superfly/carrierconf"
	"github.com/superfly/carrierconf/assets"
	"github.com/superfly/carrierconf/database"
	"github.com/superfly/carrierconf/metrics"
	"github.com/superfly/carrierconf/notify"
	"github.com/superfly/carrierconf/perf"
	"github.com/superfly/carrierconf/prefs"
	"github.com/superfly/carrierconf/safeguards"
)

// PermissionWriteAPNSettings grants full read and write access.
const PermissionWriteAPNSettings = "android.permission.WRITE_APN_SETTINGS"

// Caller identifies who is making a request.
type Caller struct {
	Permissions       []string
	CarrierPrivileged bool
}

// CanWrite reports whether the caller holds the write-settings permission
// or carrier privileges.
func (c Caller) CanWrite() bool {
	return c.CarrierPrivileged || slices.Contains(c.Permissions, PermissionWriteAPNSettings)
}

// Privileged is a caller holding the write-settings permission.
var Privileged = Caller{Permissions: []string{PermissionWriteAPNSettings}}

// Telephony answers the subscription questions the store cannot answer
// itself.
type Telephony interface {
	// DefaultSubID returns the subscription used when a request has no scope.
	DefaultSubID() int64

	// SimOperator returns the numeric operator code of the SIM behind
	// subID, or "" when unknown.
	SimOperator(ctx context.Context, subID int64) string
}

// Dependencies are the collaborators of a Provider.
type Dependencies struct {
	DB        *database.DB
	Prefs     *prefs.Store
	Hub       *notify.Hub
	Telephony Telephony
	Layout    assets.Layout
	Guard     *safeguards.OperationGuard
	Logger    logrus.FieldLogger
	Metrics   *metrics.Store
	Tracer    trace.Tracer

	// SlowThreshold is the duration above which an operation logs a warning.
	SlowThreshold time.Duration
}

// Provider serves the carrier and subscription tables.
type Provider struct {
	db        *database.DB
	prefs     *prefs.Store
	hub       *notify.Hub
	telephony Telephony
	layout    assets.Layout
	guard     *safeguards.OperationGuard
	logger    logrus.FieldLogger
	metrics   *metrics.Store
	tracer    trace.Tracer
	slow      time.Duration
	omacp     bool
}

// New assembles a Provider. DB and Prefs are required.
func New(deps Dependencies) (*Provider, error) {
	if deps.DB == nil || deps.Prefs == nil {
		return nil, errors.New("provider requires a database and a preference store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "provider")
	if deps.Hub == nil {
		deps.Hub = notify.NewHub(logger)
	}
	if deps.Telephony == nil {
		deps.Telephony = NewSimInfoTelephony(deps.DB, carrierconf.NoSubscription, logger)
	}
	if deps.Guard == nil {
		deps.Guard = safeguards.NewOperationGuard(safeguards.GuardConfig{
			MaxConcurrent:   1,
			Logger:          logger,
			HealthCheckFunc: deps.DB.Ping,
		})
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("github.com/superfly/carrierconf/provider")
	}
	if deps.SlowThreshold <= 0 {
		deps.SlowThreshold = 250 * time.Millisecond
	}
	return &Provider{
		db:        deps.DB,
		prefs:     deps.Prefs,
		hub:       deps.Hub,
		telephony: deps.Telephony,
		layout:    deps.Layout,
		guard:     deps.Guard,
		logger:    logger,
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		slow:      deps.SlowThreshold,
		omacp:     deps.DB.OMACP(),
	}, nil
}

// Config holds everything Open needs to build a Provider from scratch.
type Config struct {
	Database database.Config
	Prefs    prefs.Config
	Layout   assets.Layout

	// DefaultSubID is reported by the built-in telephony collaborator when
	// Telephony is nil.
	DefaultSubID int64
	Telephony    Telephony

	Logger        logrus.FieldLogger
	Metrics       *metrics.Store
	Tracer        trace.Tracer
	SlowThreshold time.Duration
}

// Open reads the bundled asset version, opens the database at the matching
// schema version, opens the preference store and, when the database was
// just created, populates it from the assets.
func Open(ctx context.Context, cfg Config) (*Provider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	dbCfg := cfg.Database
	dbCfg.Logger = logger
	dbCfg.AssetVersion = baseAssetVersion(ctx, cfg.Layout, logger)

	db, err := database.New(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open carrier database: %w", err)
	}

	prefsCfg := cfg.Prefs
	prefsCfg.Logger = logger
	store, err := prefs.Open(prefsCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open preference store: %w", err)
	}

	telephony := cfg.Telephony
	if telephony == nil {
		telephony = NewSimInfoTelephony(db, cfg.DefaultSubID, logger)
	}

	p, err := New(Dependencies{
		DB:            db,
		Prefs:         store,
		Telephony:     telephony,
		Layout:        cfg.Layout,
		Logger:        logger,
		Metrics:       cfg.Metrics,
		Tracer:        cfg.Tracer,
		SlowThreshold: cfg.SlowThreshold,
	})
	if err != nil {
		store.Close()
		db.Close()
		return nil, err
	}

	if db.Created() {
		report, err := p.Populate(ctx)
		if err != nil {
			p.logger.WithError(err).Error("initial population failed")
		} else {
			p.logger.WithFields(logrus.Fields{
				"rows":   report.Rows(),
				"failed": report.Failed(),
			}).Info("populated carrier table")
		}
	}
	return p, nil
}

// baseAssetVersion returns the version attribute of the bundled APN list,
// or 0 when it cannot be read.
func baseAssetVersion(ctx context.Context, layout assets.Layout, logger logrus.FieldLogger) int {
	v, err := assets.LoadAPNVersion(ctx, layout.BaseAPNs())
	if err != nil {
		if !assets.IsNotExist(err) {
			logger.WithError(err).Warn("failed to read bundled APN version")
		}
		return 0
	}
	return v
}

// Close closes the preference store and the database.
func (p *Provider) Close() error {
	return errors.Join(p.prefs.Close(), p.db.Close())
}

// DB exposes the underlying database.
func (p *Provider) DB() *database.DB {
	return p.db
}

// Hub exposes the notification hub.
func (p *Provider) Hub() *notify.Hub {
	return p.hub
}

// Subscribe registers o on ch and returns the function that removes it.
func (p *Provider) Subscribe(ch notify.Channel, o notify.Observer) (cancel func()) {
	return p.hub.Register(ch, o)
}

// HealthChecker returns probes for the database and the asset areas.
func (p *Provider) HealthChecker() *safeguards.HealthChecker {
	checks := []safeguards.HealthCheck{{Name: "database", Check: p.db.Ping}}
	if p.layout.Bundled != nil {
		checks = append(checks, safeguards.HealthCheck{
			Name: "bundled-assets",
			Check: func(ctx context.Context) error {
				_, err := p.layout.BaseAPNs().Stat(ctx)
				return err
			},
		})
	}
	return safeguards.NewHealthChecker(p.logger, checks...)
}

func (p *Provider) subID(res carrierconf.Resource) int64 {
	if res.HasSubID {
		return res.SubID
	}
	return p.telephony.DefaultSubID()
}

func (p *Provider) notify(ctx context.Context, ch notify.Channel, res carrierconf.Resource, op string, count int64) {
	c := p.hub.Notify(ch, notify.Change{Resource: res.String(), Op: op, Count: count})
	p.metrics.ObserveNotification(string(ch))
	trace.SpanFromContext(ctx).AddEvent("notify", trace.WithAttributes(
		attribute.String("channel", string(ch)),
		attribute.String("change_id", c.ID.String()),
	))
}

// begin opens a span and a timer for one operation. The returned function
// closes both and records the outcome.
func (p *Provider) begin(ctx context.Context, op string, res carrierconf.Resource) (context.Context, func(error)) {
	ctx, span := p.tracer.Start(ctx, "provider."+op, trace.WithAttributes(
		attribute.String("resource", res.String()),
		attribute.String("kind", res.Kind.String()),
	))
	timer := perf.Start(op+" "+res.String(), p.logger)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		p.metrics.ObserveOperation(op, res.Kind.String(), err, timer.StopWithThreshold(p.slow))
	}
}

// storageFailure logs a swallowed storage error.
func (p *Provider) storageFailure(ctx context.Context, op string, res carrierconf.Resource, err error) {
	trace.SpanFromContext(ctx).RecordError(err)
	p.logger.WithError(err).WithFields(logrus.Fields{
		"op":       op,
		"resource": res.String(),
	}).Error("storage operation failed")
}
