package spn

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/superfly/carrierconf"
	"github.com/superfly/carrierconf/assets"
	"github.com/superfly/carrierconf/metrics"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testTables() *Tables {
	return NewTables(TableData{
		ByEfSpn: map[string]string{"310260GoogleFi": "Google Fi"},
		ByImsi: []ImsiOverride{
			{Pattern: "310260x10xxxxxx", Name: "GG"},
			{Pattern: "310260", Name: "Broad"},
		},
		ByEfPnn:  map[string]string{"23410Tesco": "Tesco Mobile"},
		ByEfGid1: map[string]string{"20404" + carrierconf.NormalizeGID1("A1"): "Vodafone MVNO"},
		Vendor:   map[string]string{"310260": "T-Mobile", "46000": "Vendor CMCC"},
	})
}

func TestImsiMatches(t *testing.T) {
	require.True(t, ImsiMatches("310260x10xxxxxx", "310260510123456"))
	require.True(t, ImsiMatches("310260x10xxxxx", "31026051012345"))
	require.False(t, ImsiMatches("310260x10xxxxx", "31026099012345"))
	require.False(t, ImsiMatches("310260x", "310260"))
	require.False(t, ImsiMatches("", "31026051012345"))
	require.True(t, ImsiMatches("310260X1", "31026051012345"))
	require.True(t, ImsiMatches("3102", "31026051012345"))
}

func TestNormalizeGID1Lengths(t *testing.T) {
	require.Equal(t, "ffffffff", carrierconf.NormalizeGID1("A1"))
	require.Equal(t, "b2ffffff", carrierconf.NormalizeGID1("A1B2"))
	require.Equal(t, "b2c3d4ff", carrierconf.NormalizeGID1("A1B2C3D4"))
}

func TestResolve_Precedence(t *testing.T) {
	r := New(testTables(), Options{Logger: quietLogger()})

	// EF_SPN and IMSI tiers disagree; EF_SPN wins.
	sim := &SIMContext{IMSI: "310260510123456", EFSPN: "GoogleFi"}
	require.Equal(t, Result{Name: "Google Fi", Tier: TierEfSpn}, r.Resolve("310260", true, sim))

	sim.EFSPN = ""
	require.Equal(t, Result{Name: "GG", Tier: TierImsi}, r.Resolve("310260", true, sim))

	sim.IMSI = "310260990123456"
	require.Equal(t, Result{Name: "Broad", Tier: TierImsi}, r.Resolve("310260", true, sim))

	require.Equal(t, "Tesco Mobile", r.ResolveOperatorName("23410", true, &SIMContext{EFPNN: "Tesco", IMSI: "234100000000000"}))
	require.Equal(t, Result{Name: "Vodafone MVNO", Tier: TierEfGid1}, r.Resolve("20404", true, &SIMContext{GID1: "a1"}))
}

func TestResolve_Fallbacks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewResolver(reg)
	r := New(testTables(), Options{Metrics: m, Logger: quietLogger()})

	// Built-in table is consulted before the vendor table.
	require.Equal(t, "China Mobile", r.ResolveOperatorName("46000", true, nil))
	require.Equal(t, "CMCC", r.ResolveOperatorName("46000", false, nil))
	require.Equal(t, "T-Mobile", r.ResolveOperatorName("310260", true, nil))
	require.Equal(t, "99901", r.ResolveOperatorName("99901", true, &SIMContext{}))

	require.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues(TierBuiltin)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues(TierNumeric)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.TableSize.WithLabelValues(TierImsi)))
}

func TestResolve_46000Scenario(t *testing.T) {
	r := New(nil, Options{Logger: quietLogger()})
	sim := &SIMContext{IMSI: "460001234567890", EFSPN: "x", EFPNN: "y", GID1: "ff"}
	require.Equal(t, "China Mobile", r.ResolveOperatorName("46000", true, sim))
}

func TestResolve_Profiles(t *testing.T) {
	def := New(nil, Options{Logger: quietLogger()})
	se := New(nil, Options{Profile: ParseProfile("southeast"), Logger: quietLogger()})

	require.Equal(t, "Far EasTone", def.ResolveOperatorName("46601", true, nil))
	require.Equal(t, "FarEasTone", se.ResolveOperatorName("46601", true, nil))
	require.Equal(t, "46689", def.ResolveOperatorName("46689", true, nil))
	require.Equal(t, "T Star", se.ResolveOperatorName("46689", true, nil))
	require.Equal(t, ProfileDefault, ParseProfile("martian"))
}

func TestResolveDisplayName(t *testing.T) {
	r := New(testTables(), Options{Logger: quietLogger()})

	_, ok := r.ResolveDisplayName("46000", true, nil)
	require.False(t, ok)

	name, ok := r.ResolveDisplayName("46011", true, &SIMContext{})
	require.True(t, ok)
	require.Equal(t, "China Telecom", name)

	require.Equal(t, "46011", r.ResolveOperatorName("46011", true, &SIMContext{}))

	_, ok = r.ResolveDisplayName("99901", true, &SIMContext{})
	require.False(t, ok)
}

func TestMvnoPatternAndVendor(t *testing.T) {
	r := New(testTables(), Options{Logger: quietLogger()})
	p, ok := r.MvnoPatternForImsi("310260510123456")
	require.True(t, ok)
	require.Equal(t, "310260x10xxxxxx", p)

	_, ok = r.MvnoPatternForImsi("")
	require.False(t, ok)

	name, ok := r.VendorName("46000")
	require.True(t, ok)
	require.Equal(t, "Vendor CMCC", name)
}

func writeFile(t *testing.T, root, name, body string, mtime time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

func TestLoad(t *testing.T) {
	sys, vendor := t.TempDir(), t.TempDir()
	now := time.Now()
	writeFile(t, sys, assets.PartnerSPNFile, `<spnOverrides><spnOverride numeric="31000" spn="Partner"/></spnOverrides>`, now.Add(-time.Hour))
	writeFile(t, vendor, assets.VendorSPNFile, `<spnOverrides><spnOverride numeric="31000" spn="Vendor"/></spnOverrides>`, now)
	writeFile(t, sys, assets.VirtualSPNByEfSpnFile, `<virtualSpnOverridesByEfSpn>
		<virtualSpnOverride mccmncspn="31000Brand" name="Brand Mobile"/>
	</virtualSpnOverridesByEfSpn>`, now)
	writeFile(t, sys, assets.VirtualSPNByImsiFile, `<virtualSpnOverridesByImsi>
		<virtualSpnOverride imsipattern="31000x1" name="First"/>
		<virtualSpnOverride imsipattern="31000" name="Second"/>
	</virtualSpnOverridesByImsi>`, now)
	writeFile(t, sys, assets.VirtualNetsFile, `<virtualNets><virtualNet numeric="31000" gid="A1B2" ons_name="Gid Net"/></virtualNets>`, now)
	// Malformed PNN table is logged and left empty.
	writeFile(t, sys, assets.VirtualSPNByEfPnnFile, `<wrongRoot/>`, now)

	layout := assets.Layout{System: assets.NewDirSource(sys), Vendor: assets.NewDirSource(vendor)}
	tables := Load(context.Background(), layout, "", quietLogger())
	require.Equal(t, map[string]int{TierEfSpn: 1, TierImsi: 2, TierEfPnn: 0, TierEfGid1: 1, TierVendor: 1}, tables.Sizes())

	r := New(tables, Options{Logger: quietLogger()})
	require.Equal(t, "Vendor", r.ResolveOperatorName("31000", true, nil))
	require.Equal(t, "Brand Mobile", r.ResolveOperatorName("31000", true, &SIMContext{EFSPN: "Brand"}))
	require.Equal(t, "First", r.ResolveOperatorName("31000", true, &SIMContext{IMSI: "310009199"}))
	require.Equal(t, "Second", r.ResolveOperatorName("31000", true, &SIMContext{IMSI: "310002999"}))
	require.Equal(t, "Gid Net", r.ResolveOperatorName("31000", true, &SIMContext{GID1: "A1B2"}))
}

func TestLoad_ProfileVariant(t *testing.T) {
	sys := t.TempDir()
	now := time.Now()
	writeFile(t, sys, assets.PartnerSPNFile, `<spnOverrides><spnOverride numeric="31000" spn="Plain"/></spnOverrides>`, now)
	writeFile(t, sys, assets.ProfileSPNFile("op09"), `<spnOverrides><spnOverride numeric="31000" spn="Op09"/></spnOverrides>`, now)
	layout := assets.Layout{System: assets.NewDirSource(sys)}

	r := New(Load(context.Background(), layout, "op09", quietLogger()), Options{Logger: quietLogger()})
	name, _ := r.VendorName("31000")
	require.Equal(t, "Op09", name)

	r = New(Load(context.Background(), layout, "op01", quietLogger()), Options{Logger: quietLogger()})
	name, _ = r.VendorName("31000")
	require.Equal(t, "Plain", name)
}

func TestLoad_EmptyLayout(t *testing.T) {
	tables := Load(context.Background(), assets.Layout{}, "", quietLogger())
	r := New(tables, Options{Logger: quietLogger()})
	require.Equal(t, "00101", r.ResolveOperatorName("00101", true, &SIMContext{IMSI: "001010000000000"}))
}
