package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStoreMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewStore(reg)

	m.ObserveOperation("insert", "carriers", nil, time.Millisecond)
	m.ObserveOperation("insert", "carriers", errors.New("boom"), time.Millisecond)
	m.ObserveNotification("content://telephony/carriers")
	m.ObserveAsset("base", 12, nil)
	m.ObserveAsset("partner", 0, errors.New("bad xml"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("insert", "carriers", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("insert", "carriers", "error")))
	require.Equal(t, 12.0, testutil.ToFloat64(m.PopulatedRows.WithLabelValues("base")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.AssetFailures.WithLabelValues("partner")))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.True(t, strings.Contains(rec.Body.String(), "carrierconf_store_operations_total"))
}

func TestNilReceivers(t *testing.T) {
	var s *Store
	var r *Resolver
	require.NotPanics(t, func() {
		s.ObserveOperation("query", "carriers", nil, 0)
		s.ObserveNotification("x")
		s.ObserveAsset("base", 1, nil)
		r.ObserveTier("efspn")
		r.SetTableSize("imsi", 3)
	})
}

func TestResolverMetrics(t *testing.T) {
	m := NewResolver(NewRegistry())
	m.ObserveTier("imsi")
	m.ObserveTier("imsi")
	m.SetTableSize("efspn", 4)
	require.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("imsi")))
	require.Equal(t, 4.0, testutil.ToFloat64(m.TableSize.WithLabelValues("efspn")))
}
