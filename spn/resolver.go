package spn

import (
	"github.com/sirupsen/logrus"

	"github.com/superfly/carrierconf"
	"github.com/superfly/carrierconf/metrics"
)

// Tier names, in cascade order.
const (
	TierEfSpn   = "efspn"
	TierImsi    = "imsi"
	TierEfPnn   = "efpnn"
	TierEfGid1  = "efgid1"
	TierBuiltin = "builtin"
	TierVendor  = "vendor"
	TierNumeric = "numeric"
)

// SIMContext carries the SIM fields used as MVNO discriminators. Empty
// fields make their tier miss.
type SIMContext struct {
	IMSI  string
	EFSPN string
	EFPNN string
	// GID1 is the raw EF_GID1 hex string; it is normalized before lookup.
	GID1 string
}

// Options configure a Resolver.
type Options struct {
	Profile Profile
	Metrics *metrics.Resolver
	Logger  logrus.FieldLogger
}

// Resolver maps a network numeric code and SIM fields to an operator name.
type Resolver struct {
	tables  *Tables
	profile Profile
	metrics *metrics.Resolver
	logger  logrus.FieldLogger
}

// Result is a resolved name together with the tier that produced it.
type Result struct {
	Name string
	Tier string
}

// New creates a Resolver over tables. A nil tables value behaves as if every
// asset were missing.
func New(tables *Tables, opts Options) *Resolver {
	if tables == nil {
		tables = NewTables(TableData{})
	}
	if opts.Profile == "" {
		opts.Profile = ProfileDefault
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	for table, n := range tables.Sizes() {
		opts.Metrics.SetTableSize(table, n)
	}
	return &Resolver{
		tables:  tables,
		profile: opts.Profile,
		metrics: opts.Metrics,
		logger:  opts.Logger.WithField("component", "spn"),
	}
}

// ResolveOperatorName returns the name to show for numeric. It never
// returns an empty string: when nothing matches, numeric itself is returned.
// A nil sim makes all four MVNO tiers miss.
func (r *Resolver) ResolveOperatorName(numeric string, longForm bool, sim *SIMContext) string {
	return r.Resolve(numeric, longForm, sim).Name
}

// Resolve is ResolveOperatorName reporting which tier answered.
func (r *Resolver) Resolve(numeric string, longForm bool, sim *SIMContext) Result {
	res, ok := r.mvno(numeric, sim)
	if !ok {
		res, ok = r.fallback(numeric, numeric, longForm)
	}
	if !ok {
		res = Result{Name: numeric, Tier: TierNumeric}
	}
	r.metrics.ObserveTier(res.Tier)
	r.logger.WithFields(logrus.Fields{
		"numeric": numeric,
		"tier":    res.Tier,
		"name":    res.Name,
	}).Debug("resolved operator name")
	return res
}

// ResolveDisplayName is the subscription display-name variant of the
// cascade. It has no numeric fallback, reports absent for a nil sim, and
// shows 46011 under the 46003 built-in name.
func (r *Resolver) ResolveDisplayName(numeric string, longForm bool, sim *SIMContext) (string, bool) {
	if sim == nil {
		return "", false
	}
	res, ok := r.mvno(numeric, sim)
	if !ok {
		builtinKey := numeric
		if longForm && numeric == "46011" {
			builtinKey = "46003"
		}
		res, ok = r.fallback(numeric, builtinKey, longForm)
	}
	if !ok {
		return "", false
	}
	r.metrics.ObserveTier(res.Tier)
	return res.Name, true
}

func (r *Resolver) mvno(numeric string, sim *SIMContext) (Result, bool) {
	if sim == nil || numeric == "" {
		return Result{}, false
	}
	if name, ok := r.byEfSpn(numeric, sim.EFSPN); ok {
		return Result{Name: name, Tier: TierEfSpn}, true
	}
	if name, ok := r.byImsi(sim.IMSI); ok {
		return Result{Name: name, Tier: TierImsi}, true
	}
	if name, ok := r.byEfPnn(numeric, sim.EFPNN); ok {
		return Result{Name: name, Tier: TierEfPnn}, true
	}
	if name, ok := r.byEfGid1(numeric, sim.GID1); ok {
		return Result{Name: name, Tier: TierEfGid1}, true
	}
	return Result{}, false
}

func (r *Resolver) fallback(numeric, builtinKey string, longForm bool) (Result, bool) {
	if name, ok := builtinName(r.profile, builtinKey, longForm); ok {
		return Result{Name: name, Tier: TierBuiltin}, true
	}
	if name, ok := r.VendorName(numeric); ok {
		return Result{Name: name, Tier: TierVendor}, true
	}
	return Result{}, false
}

func (r *Resolver) byEfSpn(numeric, spn string) (string, bool) {
	if spn == "" {
		return "", false
	}
	return r.tables.byEfSpn.Get(numeric + spn)
}

func (r *Resolver) byImsi(imsi string) (string, bool) {
	if o, ok := r.matchImsi(imsi); ok {
		return o.Name, true
	}
	return "", false
}

func (r *Resolver) byEfPnn(numeric, pnn string) (string, bool) {
	if pnn == "" {
		return "", false
	}
	return r.tables.byEfPnn.Get(numeric + pnn)
}

func (r *Resolver) byEfGid1(numeric, gid1 string) (string, bool) {
	if gid1 == "" {
		return "", false
	}
	return r.tables.byEfGid1.Get(numeric + carrierconf.NormalizeGID1(gid1))
}

func (r *Resolver) matchImsi(imsi string) (ImsiOverride, bool) {
	if imsi == "" {
		return ImsiOverride{}, false
	}
	itr := r.tables.byImsi.Iterator()
	for !itr.Done() {
		_, o := itr.Next()
		if ImsiMatches(o.Pattern, imsi) {
			return o, true
		}
	}
	return ImsiOverride{}, false
}

// MvnoPatternForImsi returns the first IMSI pattern that matches imsi.
func (r *Resolver) MvnoPatternForImsi(imsi string) (string, bool) {
	o, ok := r.matchImsi(imsi)
	return o.Pattern, ok
}

// VendorName looks numeric up in the vendor SPN table alone.
func (r *Resolver) VendorName(numeric string) (string, bool) {
	if numeric == "" {
		return "", false
	}
	return r.tables.vendor.Get(numeric)
}

// ImsiMatches reports whether pattern matches the leading digits of imsi.
// Each pattern character is a digit that must match exactly or an 'x'/'X'
// wildcard. An empty pattern, or one longer than imsi, never matches.
func ImsiMatches(pattern, imsi string) bool {
	if len(pattern) == 0 || len(pattern) > len(imsi) {
		return false
	}
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c == 'x' || c == 'X' || c == imsi[i] {
			continue
		}
		return false
	}
	return true
}
