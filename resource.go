package carrierconf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Authority is the content authority every resource reference is rooted at.
const Authority = "telephony"

const uriScheme = "content://"

// Kind enumerates the resources the carrier store serves.
type Kind int

const (
	KindUnknown Kind = iota
	KindCarriers
	KindCarriersCurrent
	KindCarrierByID
	KindCarriersRestore
	KindPreferAPN
	KindPreferAPNNoUpdate
	KindPreferTetheringAPN
	KindSimInfo
	KindSimInfoByID
	KindCarriersDM
	KindCarrierDMByID
)

var kindPaths = map[Kind]string{
	KindCarriers:           "carriers",
	KindCarriersCurrent:    "carriers/current",
	KindCarrierByID:        "carriers",
	KindCarriersRestore:    "carriers/restore",
	KindPreferAPN:          "carriers/preferapn",
	KindPreferAPNNoUpdate:  "carriers/preferapn_no_update",
	KindPreferTetheringAPN: "carriers/prefertetheringapn",
	KindSimInfo:            "siminfo",
	KindSimInfoByID:        "siminfo",
	KindCarriersDM:         "carriers_dm",
	KindCarrierDMByID:      "carriers_dm",
}

// String returns the path of the kind without id or subscription segments.
func (k Kind) String() string {
	if p, ok := kindPaths[k]; ok {
		if k.HasID() {
			return p + "/{id}"
		}
		return p
	}
	return "unknown"
}

// HasID reports whether resources of this kind address a single row.
func (k Kind) HasID() bool {
	return k == KindCarrierByID || k == KindSimInfoByID || k == KindCarrierDMByID
}

// AcceptsSubID reports whether the kind may carry a /subId/{n} scope.
func (k Kind) AcceptsSubID() bool {
	switch k {
	case KindCarriers, KindCarriersCurrent, KindCarriersRestore, KindPreferAPN, KindPreferAPNNoUpdate:
		return true
	}
	return false
}

var (
	// ErrUnknownResource is returned by ParseURI for paths outside the resource set.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrInvalidSubID is returned by ParseURI when the subscription segment is not an integer.
	ErrInvalidSubID = errors.New("invalid subscription id")
)

// Resource is a parsed reference to a store resource.
type Resource struct {
	Kind Kind

	// ID is the row id for kinds where Kind.HasID is true.
	ID int64

	// SubID is the subscription scope; valid only when HasSubID is set.
	SubID    int64
	HasSubID bool
}

// Carriers addresses the whole carrier table.
func Carriers() Resource { return Resource{Kind: KindCarriers} }

// CarriersCurrent addresses the rows carrying the current marker.
func CarriersCurrent() Resource { return Resource{Kind: KindCarriersCurrent} }

// CarrierByID addresses one carrier row.
func CarrierByID(id int64) Resource { return Resource{Kind: KindCarrierByID, ID: id} }

// CarriersRestore addresses the factory-restore pseudo-resource.
func CarriersRestore() Resource { return Resource{Kind: KindCarriersRestore} }

// PreferAPN addresses the preferred-APN preference.
func PreferAPN() Resource { return Resource{Kind: KindPreferAPN} }

// PreferAPNNoUpdate addresses the preferred-APN preference without change reporting.
func PreferAPNNoUpdate() Resource { return Resource{Kind: KindPreferAPNNoUpdate} }

// PreferTetheringAPN addresses the preferred tethering APN preference.
func PreferTetheringAPN() Resource { return Resource{Kind: KindPreferTetheringAPN} }

// SimInfo addresses the subscription table.
func SimInfo() Resource { return Resource{Kind: KindSimInfo} }

// SimInfoByID addresses one subscription row.
func SimInfoByID(id int64) Resource { return Resource{Kind: KindSimInfoByID, ID: id} }

// CarriersDM addresses the device-management carrier table.
func CarriersDM() Resource { return Resource{Kind: KindCarriersDM} }

// CarrierDMByID addresses one device-management carrier row.
func CarrierDMByID(id int64) Resource { return Resource{Kind: KindCarrierDMByID, ID: id} }

// WithSubID returns a copy of r scoped to subID.
// Kinds that do not accept a scope are returned unchanged.
func (r Resource) WithSubID(subID int64) Resource {
	if !r.Kind.AcceptsSubID() {
		return r
	}
	r.SubID = subID
	r.HasSubID = true
	return r
}

// String renders the resource in its wire form, e.g.
// content://telephony/carriers/preferapn/subId/1.
func (r Resource) String() string {
	p, ok := kindPaths[r.Kind]
	if !ok {
		return uriScheme + Authority
	}
	var b strings.Builder
	b.WriteString(uriScheme)
	b.WriteString(Authority)
	b.WriteByte('/')
	b.WriteString(p)
	if r.Kind.HasID() {
		b.WriteByte('/')
		b.WriteString(strconv.FormatInt(r.ID, 10))
	}
	if r.HasSubID {
		b.WriteString("/subId/")
		b.WriteString(strconv.FormatInt(r.SubID, 10))
	}
	return b.String()
}

var namedCarrierPaths = map[string]Kind{
	"current":             KindCarriersCurrent,
	"restore":             KindCarriersRestore,
	"preferapn":           KindPreferAPN,
	"preferapn_no_update": KindPreferAPNNoUpdate,
	"prefertetheringapn":  KindPreferTetheringAPN,
}

// ParseURI parses the wire form of a resource. The content://telephony
// prefix is optional so that bare paths such as "carriers/12" are accepted.
func ParseURI(s string) (Resource, error) {
	path := strings.TrimPrefix(s, uriScheme)
	path = strings.TrimPrefix(path, Authority)
	path = strings.Trim(path, "/")
	if path == "" {
		return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, s)
	}
	segs := strings.Split(path, "/")

	var r Resource
	rest := segs[1:]
	switch segs[0] {
	case "carriers":
		r.Kind = KindCarriers
		if len(rest) > 0 && rest[0] != "subId" {
			if k, ok := namedCarrierPaths[rest[0]]; ok {
				r.Kind = k
			} else if id, err := strconv.ParseInt(rest[0], 10, 64); err == nil {
				r.Kind = KindCarrierByID
				r.ID = id
			} else {
				return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, s)
			}
			rest = rest[1:]
		}
	case "siminfo":
		r.Kind = KindSimInfo
		if len(rest) > 0 {
			id, err := strconv.ParseInt(rest[0], 10, 64)
			if err != nil {
				return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, s)
			}
			r.Kind = KindSimInfoByID
			r.ID = id
			rest = rest[1:]
		}
	case "carriers_dm":
		r.Kind = KindCarriersDM
		if len(rest) > 0 {
			id, err := strconv.ParseInt(rest[0], 10, 64)
			if err != nil {
				return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, s)
			}
			r.Kind = KindCarrierDMByID
			r.ID = id
			rest = rest[1:]
		}
	default:
		return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, s)
	}

	if len(rest) == 0 {
		return r, nil
	}
	if len(rest) != 2 || rest[0] != "subId" || !r.Kind.AcceptsSubID() {
		return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, s)
	}
	sub, err := strconv.ParseInt(rest[1], 10, 64)
	if err != nil {
		return Resource{}, fmt.Errorf("%w: %q", ErrInvalidSubID, rest[1])
	}
	r.SubID = sub
	r.HasSubID = true
	return r, nil
}

// MustParseURI is ParseURI for literals known to be valid.
func MustParseURI(s string) Resource {
	r, err := ParseURI(s)
	if err != nil {
		panic(err)
	}
	return r
}
