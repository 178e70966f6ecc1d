// Package metrics holds the Prometheus registry and the collectors used by
// the carrier store and the operator name resolver.
//
// All methods on *Store and *Resolver are safe to call on a nil receiver so
// that callers which do not export metrics can pass nil.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carrierconf"

// NewRegistry creates a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the HTTP handler exposing reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Store collects carrier store activity.
type Store struct {
	Operations    *prometheus.CounterVec   // labels: op, resource, result
	Duration      *prometheus.HistogramVec // labels: op
	Notifications *prometheus.CounterVec   // labels: channel
	PopulatedRows *prometheus.CounterVec   // labels: asset
	AssetFailures *prometheus.CounterVec   // labels: asset
}

// NewStore registers and returns the store collectors.
func NewStore(reg prometheus.Registerer) *Store {
	m := &Store{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Store operations by kind, resource and result.",
		}, []string{"op", "resource", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_seconds",
			Help:      "Store operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_notifications_total",
			Help:      "Change notifications dispatched per channel.",
		}, []string{"channel"}),
		PopulatedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_populated_rows_total",
			Help:      "Carrier rows loaded from assets.",
		}, []string{"asset"}),
		AssetFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_asset_failures_total",
			Help:      "Assets whose load was rolled back.",
		}, []string{"asset"}),
	}
	reg.MustRegister(m.Operations, m.Duration, m.Notifications, m.PopulatedRows, m.AssetFailures)
	return m
}

// ObserveOperation records one finished operation.
func (m *Store) ObserveOperation(op, resource string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Operations.WithLabelValues(op, resource, result).Inc()
	m.Duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveNotification counts one dispatched change.
func (m *Store) ObserveNotification(channel string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(channel).Inc()
}

// ObserveAsset records the outcome of loading one asset.
func (m *Store) ObserveAsset(asset string, rows int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.AssetFailures.WithLabelValues(asset).Inc()
		return
	}
	m.PopulatedRows.WithLabelValues(asset).Add(float64(rows))
}

// Resolver collects operator name resolution outcomes.
type Resolver struct {
	Resolutions *prometheus.CounterVec // labels: tier
	TableSize   *prometheus.GaugeVec   // labels: table
}

// NewResolver registers and returns the resolver collectors.
func NewResolver(reg prometheus.Registerer) *Resolver {
	m := &Resolver{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_resolutions_total",
			Help:      "Operator name resolutions by the tier that answered.",
		}, []string{"tier"}),
		TableSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resolver_table_entries",
			Help:      "Entries loaded per override table.",
		}, []string{"table"}),
	}
	reg.MustRegister(m.Resolutions, m.TableSize)
	return m
}

// ObserveTier counts one resolution answered by tier.
func (m *Resolver) ObserveTier(tier string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(tier).Inc()
}

// SetTableSize records the size of a loaded table.
func (m *Resolver) SetTableSize(table string, n int) {
	if m == nil {
		return
	}
	m.TableSize.WithLabelValues(table).Set(float64(n))
}
