// Package spn resolves the operator name shown for a registered network.
//
// Resolution runs a fixed cascade over MVNO override tables keyed by the
// SIM's EF_SPN, IMSI, EF_PNN and EF_GID1 fields, then falls back to a
// built-in operator table, then to the vendor SPN table, and finally to the
// numeric network code itself. The tables are loaded once by Load and never
// change afterwards, so a Resolver can be shared freely between goroutines.
package spn

import (
	"context"
	"io"

	"github.com/benbjohnson/immutable"
	"github.com/sirupsen/logrus"

	"github.com/superfly/carrierconf/assets"
)

// ImsiOverride is one IMSI pattern entry.
type ImsiOverride struct {
	Pattern string
	Name    string
}

// Tables are the read-only lookup tables behind a Resolver.
type Tables struct {
	byEfSpn  *immutable.Map[string, string]
	byImsi   *immutable.List[ImsiOverride]
	byEfPnn  *immutable.Map[string, string]
	byEfGid1 *immutable.Map[string, string]
	vendor   *immutable.Map[string, string]
}

// Sizes reports the number of entries per table, keyed by table name.
func (t *Tables) Sizes() map[string]int {
	return map[string]int{
		TierEfSpn:  t.byEfSpn.Len(),
		TierImsi:   t.byImsi.Len(),
		TierEfPnn:  t.byEfPnn.Len(),
		TierEfGid1: t.byEfGid1.Len(),
		TierVendor: t.vendor.Len(),
	}
}

// TableData is the plain form of the tables, used to build Tables in code.
type TableData struct {
	ByEfSpn  map[string]string
	ByImsi   []ImsiOverride
	ByEfPnn  map[string]string
	ByEfGid1 map[string]string
	Vendor   map[string]string
}

// NewTables freezes data. GID1 keys are expected to be normalized already.
func NewTables(data TableData) *Tables {
	imsi := immutable.NewListBuilder[ImsiOverride]()
	for _, o := range data.ByImsi {
		imsi.Append(o)
	}
	return &Tables{
		byEfSpn:  freeze(data.ByEfSpn),
		byImsi:   imsi.List(),
		byEfPnn:  freeze(data.ByEfPnn),
		byEfGid1: freeze(data.ByEfGid1),
		vendor:   freeze(data.Vendor),
	}
}

func freeze(m map[string]string) *immutable.Map[string, string] {
	b := immutable.NewMapBuilder[string, string](nil)
	for k, v := range m {
		b.Set(k, v)
	}
	return b.Map()
}

// Load reads every override table from layout. A missing or malformed asset
// leaves its table empty; malformed ones are logged. variant selects the
// operator-profile variant of the partner SPN table, falling back to the
// plain file when the variant is absent.
func Load(ctx context.Context, layout assets.Layout, variant string, logger logrus.FieldLogger) *Tables {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("component", "spn")
	data := TableData{
		ByEfSpn:  map[string]string{},
		ByEfPnn:  map[string]string{},
		ByEfGid1: map[string]string{},
		Vendor:   map[string]string{},
	}

	partner := layout.PartnerSPN(variant)
	if variant != "" {
		if _, err := partner.Stat(ctx); assets.IsNotExist(err) {
			partner = layout.PartnerSPN("")
		}
	}
	if ref, ok := assets.SelectNewer(ctx, partner, layout.VendorSPN()); ok {
		overrides, err := assets.LoadSPNOverrides(ctx, ref)
		logLoad(logger, ref, len(overrides), err)
		for _, o := range overrides {
			data.Vendor[o.Numeric] = o.SPN
		}
	}

	loadVirtual(ctx, logger, layout.VirtualSPNByEfSpn(), assets.DecodeVirtualSPNByEfSpn, func(v assets.VirtualSPN) {
		data.ByEfSpn[v.Key] = v.Name
	})
	loadVirtual(ctx, logger, layout.VirtualSPNByImsi(), assets.DecodeVirtualSPNByImsi, func(v assets.VirtualSPN) {
		data.ByImsi = append(data.ByImsi, ImsiOverride{Pattern: v.Key, Name: v.Name})
	})
	loadVirtual(ctx, logger, layout.VirtualSPNByEfPnn(), assets.DecodeVirtualSPNByEfPnn, func(v assets.VirtualSPN) {
		data.ByEfPnn[v.Key] = v.Name
	})

	nets, err := assets.LoadVirtualNets(ctx, layout.VirtualNets())
	logLoad(logger, layout.VirtualNets(), len(nets), err)
	for _, n := range nets {
		if n.Numeric == "" {
			continue
		}
		data.ByEfGid1[n.Key()] = n.Name
	}

	return NewTables(data)
}

func loadVirtual(ctx context.Context, logger logrus.FieldLogger, ref assets.Ref, decode func(io.Reader) ([]assets.VirtualSPN, error), add func(assets.VirtualSPN)) {
	entries, err := assets.LoadVirtualSPN(ctx, ref, decode)
	logLoad(logger, ref, len(entries), err)
	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		add(e)
	}
}

func logLoad(logger logrus.FieldLogger, ref assets.Ref, n int, err error) {
	fields := logrus.Fields{"asset": ref.String(), "entries": n}
	switch {
	case err == nil:
		logger.WithFields(fields).Debug("loaded override table")
	case assets.IsNotExist(err):
		logger.WithFields(fields).Debug("override table not present")
	default:
		logger.WithFields(fields).WithError(err).Warn("failed to load override table")
	}
}
