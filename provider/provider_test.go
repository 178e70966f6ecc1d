package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/cast"
	"github.com/stretchr/testify/require"

	"github.com/superfly/carrierconf"
	"github.com/superfly/carrierconf/assets"
	"github.com/superfly/carrierconf/database"
	"github.com/superfly/carrierconf/metrics"
	"github.com/superfly/carrierconf/notify"
	"github.com/superfly/carrierconf/prefs"
)

const baseAPNs = `<?xml version="1.0" encoding="utf-8"?>
<apns version="8">
  <apn carrier="T-Mobile US" mcc="310" mnc="260" apn="fast.t-mobile.com" type="default,supl" />
  <apn carrier="T-Mobile MMS" mcc="310" mnc="260" apn="mms" type="mms" mmsc="http://mms.msg.eng.t-mobile.com/mms/wapenc" />
  <apn carrier="China Mobile" mcc="460" mnc="00" apn="cmnet" authtype="0" />
</apns>`

type testEnv struct {
	layout  assets.Layout
	bundled string
	system  string
	vendor  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{bundled: t.TempDir(), system: t.TempDir(), vendor: t.TempDir()}
	e.layout = assets.Layout{
		Bundled: assets.NewDirSource(e.bundled),
		System:  assets.NewDirSource(e.system),
		Vendor:  assets.NewDirSource(e.vendor),
	}
	e.write(t, e.bundled, assets.BaseAPNFile, baseAPNs, time.Now())
	return e
}

func (e *testEnv) write(t *testing.T, root, name, body string, mtime time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

type opened struct {
	*Provider
	metrics *metrics.Store
	hook    *logtest.Hook
}

func openTest(t *testing.T, layout assets.Layout) *opened {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	dir := t.TempDir()

	dbCfg := database.DefaultConfig()
	dbCfg.Path = filepath.Join(dir, "telephony.db")
	m := metrics.NewStore(prometheus.NewRegistry())

	p, err := Open(context.Background(), Config{
		Database: dbCfg,
		Prefs:    prefs.Config{Path: filepath.Join(dir, "prefs.db"), Timeout: time.Second},
		Layout:   layout,
		Telephony: StaticTelephony{
			Default:   1,
			Operators: map[int64]string{1: "310260", 2: "46000"},
		},
		Logger:  logger,
		Metrics: m,
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return &opened{Provider: p, metrics: m, hook: hook}
}

// recorder collects changes delivered on one channel.
type recorder struct {
	mu      sync.Mutex
	changes []notify.Change
}

func (r *recorder) OnChange(c notify.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Op
	}
	return out
}

func names(t *testing.T, rs *database.RowSet) []string {
	t.Helper()
	require.NotNil(t, rs)
	out := make([]string, rs.Len())
	for i := range out {
		v, ok := rs.Value(i, carrierconf.ColName)
		require.True(t, ok)
		out[i] = cast.ToString(v)
	}
	return out
}

func count(t *testing.T, p *opened, res carrierconf.Resource) int {
	t.Helper()
	rs, err := p.Query(context.Background(), Privileged, res, QueryArgs{})
	require.NoError(t, err)
	require.NotNil(t, rs)
	return rs.Len()
}

func insertCarrier(t *testing.T, p *opened, v carrierconf.Values) int64 {
	t.Helper()
	out, err := p.Insert(context.Background(), Privileged, carrierconf.Carriers(), v)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, carrierconf.KindCarrierByID, out.Kind)
	return out.ID
}

func TestOpen_PopulatesBaseAndNewerOverlay(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	env.write(t, env.system, assets.PartnerAPNFile, `<apns version="8">
		<apn carrier="Partner" mcc="001" mnc="01" apn="partner" />
	</apns>`, now.Add(-time.Hour))
	env.write(t, env.vendor, assets.VendorAPNFile, `<apns version="8">
		<apn carrier="OEM" mcc="001" mnc="01" apn="oem" />
	</apns>`, now)

	p := openTest(t, env.layout)
	ctx := context.Background()

	v, err := p.DB().Version(ctx)
	require.NoError(t, err)
	require.Equal(t, database.SchemaVersion(8), v)

	rs, err := p.Query(ctx, Privileged, carrierconf.Carriers(), QueryArgs{SortOrder: "_id"})
	require.NoError(t, err)
	require.Equal(t, []string{"T-Mobile US", "T-Mobile MMS", "China Mobile", "OEM"}, names(t, rs))

	require.Equal(t, 3.0, testutil.ToFloat64(p.metrics.PopulatedRows.WithLabelValues(AssetBase)))
	require.Equal(t, 1.0, testutil.ToFloat64(p.metrics.PopulatedRows.WithLabelValues(AssetOEM)))

	recs, err := rs.CarrierRecords(false)
	require.NoError(t, err)
	require.Equal(t, "46000", recs[2].Numeric)
	require.Equal(t, int64(0), recs[2].AuthType)
	require.Equal(t, int64(-1), recs[0].AuthType)
	require.Equal(t, int64(carrierconf.SourceBundled), recs[0].SourceType)
}

func TestOpen_ReopenDoesNotRepopulate(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	logger, _ := logtest.NewNullLogger()
	cfg := Config{
		Database: database.Config{Path: filepath.Join(dir, "telephony.db")},
		Prefs:    prefs.Config{Path: filepath.Join(dir, "prefs.db"), Timeout: time.Second},
		Layout:   env.layout,
		Logger:   logger,
	}

	p, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	p, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	defer p.Close()
	n, err := p.DB().Count(context.Background(), database.TableCarriers, database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestPopulate_OverlayVersionMismatchSkipped(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, env.system, assets.PartnerAPNFile, `<apns version="7">
		<apn carrier="Stale" mcc="001" mnc="01" />
	</apns>`, time.Now())

	p := openTest(t, env.layout)
	require.Equal(t, 3, count(t, p, carrierconf.Carriers()))
	require.Equal(t, 1.0, testutil.ToFloat64(p.metrics.AssetFailures.WithLabelValues(AssetPartner)))
}

func TestPopulate_MalformedOverlayKeepsBase(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, env.system, assets.PartnerAPNFile, `<apns version="8">
		<apn carrier="Good" mcc="001" mnc="01" />
		<apn carrier="Bad" mcc="001" mnc="01" authtype="x" />
	</apns>`, time.Now())

	p := openTest(t, env.layout)
	report, err := p.Populate(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{AssetPartner}, report.Failed())
	require.Equal(t, 3, report.Rows())
	// Two populations of the base list, no partner rows.
	require.Equal(t, 6, count(t, p, carrierconf.Carriers()))
}

func TestPopulate_MissingAssetsAreSilent(t *testing.T) {
	p := openTest(t, assets.Layout{})
	require.Equal(t, 0, count(t, p, carrierconf.Carriers()))
	v, err := p.DB().Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, database.SchemaRevision, v)
}

func TestInsert_FillsDefaults(t *testing.T) {
	p := openTest(t, assets.Layout{})
	ctx := context.Background()
	id := insertCarrier(t, p, carrierconf.Values{
		carrierconf.ColName:    "Test",
		carrierconf.ColNumeric: "00101",
		carrierconf.ColAPN:     "test",
	})

	rs, err := p.Query(ctx, Privileged, carrierconf.CarrierByID(id), QueryArgs{})
	require.NoError(t, err)
	recs, err := rs.CarrierRecords(false)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	want := carrierconf.NewCarrierRecord(1)
	want.ID = id
	want.Name, want.Numeric, want.APN = "Test", "00101", "test"
	require.Equal(t, want, recs[0])

	_, err = p.Insert(ctx, Privileged, carrierconf.Carriers(), carrierconf.Values{"bogus": 1})
	require.True(t, errors.Is(err, carrierconf.ErrInvalidRequest))

	scoped, err := p.Insert(ctx, Privileged, carrierconf.Carriers().WithSubID(2), carrierconf.Values{carrierconf.ColName: "Scoped"})
	require.NoError(t, err)
	rs, err = p.Query(ctx, Privileged, *scoped, QueryArgs{Projection: []string{carrierconf.ColSubID}})
	require.NoError(t, err)
	sub, _ := rs.Value(0, carrierconf.ColSubID)
	require.Equal(t, int64(2), cast.ToInt64(sub))
}

func TestQuery_NonExistentIDIsEmpty(t *testing.T) {
	p := openTest(t, assets.Layout{})
	rs, err := p.Query(context.Background(), Privileged, carrierconf.CarrierByID(9999), QueryArgs{})
	require.NoError(t, err)
	require.NotNil(t, rs)
	require.Equal(t, 0, rs.Len())
}

func TestQuery_SubscriptionScopeFiltersByOperator(t *testing.T) {
	p := openTest(t, newTestEnv(t).layout)
	ctx := context.Background()

	rs, err := p.Query(ctx, Privileged, carrierconf.Carriers().WithSubID(2), QueryArgs{})
	require.NoError(t, err)
	require.Equal(t, []string{"China Mobile"}, names(t, rs))

	rs, err = p.Query(ctx, Privileged, carrierconf.Carriers().WithSubID(7), QueryArgs{})
	require.NoError(t, err)
	require.Equal(t, 0, rs.Len())
}

func TestQuery_SortAndProjectionValidation(t *testing.T) {
	p := openTest(t, newTestEnv(t).layout)
	ctx := context.Background()

	rs, err := p.Query(ctx, Privileged, carrierconf.Carriers(), QueryArgs{
		Projection: []string{carrierconf.ColName},
		SortOrder:  "name desc",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"T-Mobile US", "T-Mobile MMS", "China Mobile"}, names(t, rs))

	for _, args := range []QueryArgs{
		{SortOrder: "name; DROP TABLE carriers"},
		{SortOrder: "name sideways"},
		{SortOrder: "nope"},
		{Projection: []string{"nope"}},
		{Projection: []string{carrierconf.ColOMACPID}},
	} {
		_, err := p.Query(ctx, Privileged, carrierconf.Carriers(), args)
		require.True(t, errors.Is(err, carrierconf.ErrInvalidRequest), "%+v", args)
	}
	require.Equal(t, 3, count(t, p, carrierconf.Carriers()))
}

func TestPermissions(t *testing.T) {
	p := openTest(t, newTestEnv(t).layout)
	ctx := context.Background()
	var nobody Caller

	rs, err := p.Query(ctx, nobody, carrierconf.Carriers(), QueryArgs{
		Projection: []string{carrierconf.ColAPN, carrierconf.ColType, carrierconf.ColMMSC},
	})
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())

	_, err = p.Query(ctx, nobody, carrierconf.Carriers(), QueryArgs{})
	require.True(t, errors.Is(err, carrierconf.ErrPermissionDenied))
	_, err = p.Query(ctx, nobody, carrierconf.Carriers(), QueryArgs{Projection: []string{carrierconf.ColAPN, carrierconf.ColUser}})
	require.True(t, errors.Is(err, carrierconf.ErrPermissionDenied))

	_, err = p.Query(ctx, nobody, carrierconf.SimInfo(), QueryArgs{})
	require.NoError(t, err)

	_, err = p.Insert(ctx, nobody, carrierconf.Carriers(), carrierconf.Values{})
	require.True(t, errors.Is(err, carrierconf.ErrPermissionDenied))
	_, err = p.Update(ctx, nobody, carrierconf.Carriers(), carrierconf.Values{carrierconf.ColName: "x"}, database.Selection{})
	require.True(t, errors.Is(err, carrierconf.ErrPermissionDenied))
	_, err = p.Delete(ctx, nobody, carrierconf.Carriers(), database.Selection{})
	require.True(t, errors.Is(err, carrierconf.ErrPermissionDenied))
	require.Equal(t, 3, count(t, p, carrierconf.Carriers()))

	privileged := Caller{CarrierPrivileged: true}
	n, err := p.Delete(ctx, privileged, carrierconf.Carriers(), database.Selection{Where: "numeric = ?", Args: []any{"46000"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.Equal(t, 1.0, testutil.ToFloat64(p.metrics.Operations.WithLabelValues("delete", "carriers", "error")))
}

func TestSetCurrent(t *testing.T) {
	p := openTest(t, newTestEnv(t).layout)
	ctx := context.Background()
	rec := &recorder{}
	cancel := p.Subscribe(notify.Carriers, rec)
	defer cancel()

	out, err := p.Insert(ctx, Privileged, carrierconf.CarriersCurrent(), carrierconf.Values{carrierconf.ColNumeric: "310260"})
	require.NoError(t, err)
	require.Nil(t, out)
	require.Equal(t, 2, count(t, p, carrierconf.CarriersCurrent()))
	require.Equal(t, []string{"insert"}, rec.ops())

	// No row matches: the previous marker stays and nobody is told.
	_, err = p.Insert(ctx, Privileged, carrierconf.CarriersCurrent(), carrierconf.Values{carrierconf.ColNumeric: "99999"})
	require.NoError(t, err)
	rs, err := p.Query(ctx, Privileged, carrierconf.CarriersCurrent(), QueryArgs{})
	require.NoError(t, err)
	require.Equal(t, []string{"T-Mobile US", "T-Mobile MMS"}, names(t, rs))
	require.Equal(t, []string{"insert"}, rec.ops())

	_, err = p.Insert(ctx, Privileged, carrierconf.CarriersCurrent(), carrierconf.Values{carrierconf.ColNumeric: "46000"})
	require.NoError(t, err)
	rs, err = p.Query(ctx, Privileged, carrierconf.CarriersCurrent(), QueryArgs{})
	require.NoError(t, err)
	require.Equal(t, []string{"China Mobile"}, names(t, rs))
}

func TestUpdate(t *testing.T) {
	p := openTest(t, newTestEnv(t).layout)
	ctx := context.Background()
	id := insertCarrier(t, p, carrierconf.Values{carrierconf.ColName: "Mine", carrierconf.ColNumeric: "00101"})

	_, err := p.Update(ctx, Privileged, carrierconf.CarrierByID(id),
		carrierconf.Values{carrierconf.ColName: "Changed"},
		database.Selection{Where: "numeric = ?", Args: []any{"00101"}})
	require.True(t, errors.Is(err, carrierconf.ErrInvalidRequest))
	rs, _ := p.Query(ctx, Privileged, carrierconf.CarrierByID(id), QueryArgs{})
	require.Equal(t, []string{"Mine"}, names(t, rs))

	n, err := p.Update(ctx, Privileged, carrierconf.CarrierByID(id), carrierconf.Values{carrierconf.ColName: "Changed"}, database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	rs, _ = p.Query(ctx, Privileged, carrierconf.CarrierByID(id), QueryArgs{})
	require.Equal(t, []string{"Changed"}, names(t, rs))

	p.hook.Reset()
	n, err = p.Update(ctx, Privileged, carrierconf.Carriers(), carrierconf.Values{carrierconf.ColSourceType: 5},
		database.Selection{Where: "_id = ?", Args: []any{id}})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	var warned bool
	for _, e := range p.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "unexpected sourcetype" {
			warned = true
		}
	}
	require.True(t, warned)

	_, err = p.Update(ctx, Privileged, carrierconf.Carriers(), carrierconf.Values{carrierconf.ColAuthType: "x"}, database.Selection{})
	require.True(t, errors.Is(err, carrierconf.ErrInvalidRequest))
}

func TestPreferredAPN(t *testing.T) {
	p := openTest(t, newTestEnv(t).layout)
	ctx := context.Background()
	rec := &recorder{}
	defer p.Subscribe(notify.Carriers, rec)()

	require.Equal(t, 0, count(t, p, carrierconf.PreferAPN()))

	_, err := p.Insert(ctx, Privileged, carrierconf.PreferAPN(), carrierconf.Values{carrierconf.ColAPNID: 3})
	require.NoError(t, err)
	rs, err := p.Query(ctx, Privileged, carrierconf.PreferAPN(), QueryArgs{})
	require.NoError(t, err)
	require.Equal(t, []string{"China Mobile"}, names(t, rs))
	require.Empty(t, rec.ops())

	// Scoped and unscoped preferences are separate when the scope differs
	// from the default subscription.
	require.Equal(t, 0, count(t, p, carrierconf.PreferAPN().WithSubID(2)))
	require.Equal(t, 1, count(t, p, carrierconf.PreferAPNNoUpdate().WithSubID(1)))

	n, err := p.Update(ctx, Privileged, carrierconf.PreferAPNNoUpdate(), carrierconf.Values{carrierconf.ColAPNID: 1}, database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
	require.Empty(t, rec.ops())

	n, err = p.Update(ctx, Privileged, carrierconf.PreferAPN(), carrierconf.Values{carrierconf.ColAPNID: 2}, database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	rs, _ = p.Query(ctx, Privileged, carrierconf.PreferAPN(), QueryArgs{})
	require.Equal(t, []string{"T-Mobile MMS"}, names(t, rs))

	n, err = p.Update(ctx, Privileged, carrierconf.PreferAPN(), carrierconf.Values{}, database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	n, err = p.Update(ctx, Privileged, carrierconf.PreferTetheringAPN(), carrierconf.Values{carrierconf.ColAPNID: 1}, database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	rs, _ = p.Query(ctx, Privileged, carrierconf.PreferTetheringAPN(), QueryArgs{})
	require.Equal(t, []string{"T-Mobile US"}, names(t, rs))

	n, err = p.Delete(ctx, Privileged, carrierconf.PreferAPN(), database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 0, count(t, p, carrierconf.PreferAPN()))
	require.Equal(t, 1, count(t, p, carrierconf.PreferTetheringAPN()))

	n, err = p.Delete(ctx, Privileged, carrierconf.PreferAPNNoUpdate(), database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	require.Equal(t, []string{"update", "update", "delete"}, rec.ops())
}

func TestRestore(t *testing.T) {
	p := openTest(t, newTestEnv(t).layout)
	ctx := context.Background()
	rec := &recorder{}
	defer p.Subscribe(notify.Carriers, rec)()

	id := insertCarrier(t, p, carrierconf.Values{carrierconf.ColName: "Mine", carrierconf.ColSourceType: carrierconf.SourceProvisioned})
	_, err := p.Insert(ctx, Privileged, carrierconf.PreferAPN(), carrierconf.Values{carrierconf.ColAPNID: id})
	require.NoError(t, err)
	require.Equal(t, 4, count(t, p, carrierconf.Carriers()))

	n, err := p.Delete(ctx, Privileged, carrierconf.CarriersRestore(), database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rs, err := p.Query(ctx, Privileged, carrierconf.Carriers(), QueryArgs{SortOrder: "_id"})
	require.NoError(t, err)
	require.Equal(t, []string{"T-Mobile US", "T-Mobile MMS", "China Mobile"}, names(t, rs))

	pref, err := p.prefs.Get(prefs.PreferredAPN, 1)
	require.NoError(t, err)
	require.Equal(t, prefs.Unset, pref)
	require.Equal(t, []string{"insert", "restore"}, rec.ops())

	report, err := p.Restore(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), report.WipedRows)
	require.Equal(t, 3, report.Rows())
}

func TestDeviceManagementTable(t *testing.T) {
	p := openTest(t, assets.Layout{})
	ctx := context.Background()
	dm, carriers := &recorder{}, &recorder{}
	defer p.Subscribe(notify.CarriersDM, dm)()
	defer p.Subscribe(notify.Carriers, carriers)()

	out, err := p.Insert(ctx, Privileged, carrierconf.CarriersDM(), carrierconf.Values{
		carrierconf.ColName: "DM", carrierconf.ColMCC: "310", carrierconf.ColMNC: "260",
	})
	require.NoError(t, err)
	require.Equal(t, carrierconf.KindCarrierDMByID, out.Kind)

	rs, err := p.Query(ctx, Privileged, *out, QueryArgs{Projection: []string{carrierconf.ColNumeric}})
	require.NoError(t, err)
	numeric, _ := rs.Value(0, carrierconf.ColNumeric)
	require.Equal(t, "310260", numeric)
	require.Equal(t, 0, count(t, p, carrierconf.Carriers()))
	require.Equal(t, []string{"insert"}, carriers.ops())
	require.Empty(t, dm.ops())

	n, err := p.Update(ctx, Privileged, carrierconf.CarriersDM(), carrierconf.Values{carrierconf.ColAPN: "dm"}, database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = p.Delete(ctx, Privileged, carrierconf.CarriersDM(), database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.Equal(t, []string{"update", "delete"}, dm.ops())
	require.Equal(t, []string{"insert", "update", "delete"}, carriers.ops())

	_, err = p.Delete(ctx, Privileged, carrierconf.CarrierDMByID(1), database.Selection{})
	require.True(t, errors.Is(err, carrierconf.ErrUnsupportedOperation))
}

func TestSimInfo(t *testing.T) {
	p := openTest(t, assets.Layout{})
	ctx := context.Background()
	rec := &recorder{}
	defer p.Subscribe(notify.SimInfo, rec)()

	out, err := p.Insert(ctx, Privileged, carrierconf.SimInfo(), carrierconf.Values{
		carrierconf.SimColICCID: "8901260", carrierconf.SimColMCC: 460, carrierconf.SimColMNC: 0,
	})
	require.NoError(t, err)
	require.Equal(t, carrierconf.KindSimInfoByID, out.Kind)

	tel := NewSimInfoTelephony(p.DB(), 0, nil)
	require.Equal(t, "46000", tel.SimOperator(ctx, out.ID))
	require.Equal(t, "", tel.SimOperator(ctx, 404))

	// icc_id is required; the storage failure yields no row.
	missing, err := p.Insert(ctx, Privileged, carrierconf.SimInfo(), carrierconf.Values{carrierconf.SimColDisplayName: "x"})
	require.NoError(t, err)
	require.Nil(t, missing)

	n, err := p.Update(ctx, Privileged, carrierconf.SimInfo(), carrierconf.Values{carrierconf.SimColDisplayName: "Work"}, database.Selection{})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = p.Delete(ctx, Privileged, carrierconf.SimInfo(), database.Selection{Where: "icc_id = ?", Args: []any{"nope"}})
	require.NoError(t, err)
	require.Equal(t, int64(0), n)

	require.Equal(t, []string{"insert", "update"}, rec.ops())
}

func TestUnsupportedResources(t *testing.T) {
	p := openTest(t, assets.Layout{})
	ctx := context.Background()

	rs, err := p.Query(ctx, Privileged, carrierconf.Resource{}, QueryArgs{})
	require.NoError(t, err)
	require.Nil(t, rs)

	_, err = p.Insert(ctx, Privileged, carrierconf.CarrierByID(1), carrierconf.Values{})
	require.True(t, errors.Is(err, carrierconf.ErrUnsupportedOperation))
	_, err = p.Insert(ctx, Privileged, carrierconf.CarriersRestore(), carrierconf.Values{})
	require.True(t, errors.Is(err, carrierconf.ErrUnsupportedOperation))
	_, err = p.Update(ctx, Privileged, carrierconf.CarriersRestore(), carrierconf.Values{}, database.Selection{})
	require.True(t, errors.Is(err, carrierconf.ErrUnsupportedOperation))
	_, err = p.Delete(ctx, Privileged, carrierconf.Resource{}, database.Selection{})
	require.True(t, errors.Is(err, carrierconf.ErrUnsupportedOperation))
}

func TestHealthChecker(t *testing.T) {
	p := openTest(t, newTestEnv(t).layout)
	require.NoError(t, p.HealthChecker().CheckAll(context.Background()))

	missing := openTest(t, assets.Layout{Bundled: assets.NewDirSource(t.TempDir())})
	require.Error(t, missing.HealthChecker().CheckAll(context.Background()))
}
