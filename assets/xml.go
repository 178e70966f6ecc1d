package assets

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/superfly/carrierconf"
)

// ErrMalformed is returned when a document does not have the expected root
// element or required attributes.
var ErrMalformed = errors.New("malformed asset")

// readFlat walks a document made of one root element whose children are
// entry elements carrying all their data in attributes. fn is called for
// each entry in document order. Reading stops without error at the first
// child element that is not an entry. The root's attributes are returned.
func readFlat(r io.Reader, root, entry string, fn func(attrs map[string]string) error) (map[string]string, error) {
	dec := xml.NewDecoder(r)

	var rootAttrs map[string]string
	for rootAttrs == nil {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: no <%s> element", ErrMalformed, root)
			}
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != root {
				return nil, fmt.Errorf("%w: expected <%s>, found <%s>", ErrMalformed, root, se.Name.Local)
			}
			rootAttrs = attrMap(se.Attr)
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read <%s>: %w", root, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != entry {
				return rootAttrs, nil
			}
			if err := fn(attrMap(t.Attr)); err != nil {
				return nil, err
			}
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("failed to read <%s>: %w", entry, err)
			}
		case xml.EndElement:
			return rootAttrs, nil
		}
	}
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

// ReadAPNVersion returns the version attribute of an APN document's root
// without reading its entries.
func ReadAPNVersion(r io.Reader) (int, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				return 0, fmt.Errorf("%w: no <apns> element", ErrMalformed)
			}
			return 0, fmt.Errorf("failed to read document: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			if se.Name.Local != "apns" {
				return 0, fmt.Errorf("%w: expected <apns>, found <%s>", ErrMalformed, se.Name.Local)
			}
			return parseVersion(attrMap(se.Attr))
		}
	}
}

func parseVersion(attrs map[string]string) (int, error) {
	v, ok := attrs["version"]
	if !ok {
		return 0, fmt.Errorf("%w: <apns> has no version", ErrMalformed)
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: bad version %q", ErrMalformed, v)
	}
	return n, nil
}

// APNDocument is a decoded APN list.
type APNDocument struct {
	Version int
	Rows    []carrierconf.Values
}

// optional string attributes copied as-is when present.
var apnTextAttrs = []string{
	carrierconf.ColAPN, carrierconf.ColUser, carrierconf.ColServer, carrierconf.ColPassword,
	carrierconf.ColProxy, carrierconf.ColPort, carrierconf.ColMMSProxy, carrierconf.ColMMSPort,
	carrierconf.ColMMSC, carrierconf.ColType, carrierconf.ColProtocol, carrierconf.ColRoamingProto,
	carrierconf.ColPPP, carrierconf.ColSPN, carrierconf.ColIMSI, carrierconf.ColPNN,
}

var apnIntAttrs = []string{
	carrierconf.ColAuthType, carrierconf.ColBearer, carrierconf.ColProfileID,
	carrierconf.ColMaxConns, carrierconf.ColWaitTime, carrierconf.ColMaxConnsTime, carrierconf.ColMTU,
}

var apnBoolAttrs = []string{carrierconf.ColCarrierEnabled, carrierconf.ColModemCognitive}

// DecodeAPNs reads an <apns version="N"> document. Each <apn> becomes a
// partial value bag: numeric is mcc+mnc, name comes from the carrier
// attribute, and optional attributes are present only when the element
// carries them. A malformed integer fails the whole document.
func DecodeAPNs(r io.Reader) (*APNDocument, error) {
	doc := &APNDocument{}
	rootAttrs, err := readFlat(r, "apns", "apn", func(attrs map[string]string) error {
		row, err := apnRow(attrs)
		if err != nil {
			return err
		}
		doc.Rows = append(doc.Rows, row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if doc.Version, err = parseVersion(rootAttrs); err != nil {
		return nil, err
	}
	return doc, nil
}

func apnRow(attrs map[string]string) (carrierconf.Values, error) {
	mcc, mnc := attrs["mcc"], attrs["mnc"]
	row := carrierconf.Values{
		carrierconf.ColNumeric:    carrierconf.DeriveNumeric(mcc, mnc),
		carrierconf.ColMCC:        mcc,
		carrierconf.ColMNC:        mnc,
		carrierconf.ColSourceType: int64(carrierconf.SourceBundled),
	}
	if v, ok := attrs["carrier"]; ok {
		row[carrierconf.ColName] = v
	}
	for _, k := range apnTextAttrs {
		if v, ok := attrs[k]; ok {
			row[k] = v
		}
	}
	for _, k := range apnIntAttrs {
		if v, ok := attrs[k]; ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: apn %s%s: %s=%q", ErrMalformed, mcc, mnc, k, v)
			}
			row[k] = n
		}
	}
	for _, k := range apnBoolAttrs {
		if v, ok := attrs[k]; ok {
			row[k] = strings.EqualFold(v, "true")
		}
	}
	if mvnoType, ok := attrs[carrierconf.ColMVNOType]; ok {
		if data, ok := attrs[carrierconf.ColMVNOMatchData]; ok {
			if mvnoType == "gid" {
				data = carrierconf.NormalizeGID1(data)
			}
			row[carrierconf.ColMVNOType] = mvnoType
			row[carrierconf.ColMVNOMatchData] = data
		}
	}
	return row, nil
}

// SPNOverride maps a numeric operator code to a vendor operator name.
type SPNOverride struct {
	Numeric string
	SPN     string
}

// DecodeSPNOverrides reads a <spnOverrides> document.
func DecodeSPNOverrides(r io.Reader) ([]SPNOverride, error) {
	var out []SPNOverride
	_, err := readFlat(r, "spnOverrides", "spnOverride", func(attrs map[string]string) error {
		out = append(out, SPNOverride{Numeric: attrs["numeric"], SPN: attrs["spn"]})
		return nil
	})
	return out, err
}

// VirtualSPN is one MVNO override entry: a lookup key (mccmnc+spn,
// mccmnc+pnn or an IMSI pattern) and the name to display.
type VirtualSPN struct {
	Key  string
	Name string
}

func decodeVirtual(r io.Reader, root, keyAttr string) ([]VirtualSPN, error) {
	var out []VirtualSPN
	_, err := readFlat(r, root, "virtualSpnOverride", func(attrs map[string]string) error {
		out = append(out, VirtualSPN{Key: attrs[keyAttr], Name: attrs["name"]})
		return nil
	})
	return out, err
}

// DecodeVirtualSPNByEfSpn reads a <virtualSpnOverridesByEfSpn> document.
func DecodeVirtualSPNByEfSpn(r io.Reader) ([]VirtualSPN, error) {
	return decodeVirtual(r, "virtualSpnOverridesByEfSpn", "mccmncspn")
}

// DecodeVirtualSPNByImsi reads a <virtualSpnOverridesByImsi> document.
// Entry order is preserved; the first matching pattern wins.
func DecodeVirtualSPNByImsi(r io.Reader) ([]VirtualSPN, error) {
	return decodeVirtual(r, "virtualSpnOverridesByImsi", "imsipattern")
}

// DecodeVirtualSPNByEfPnn reads a <virtualSpnOverridesByEfPnn> document.
func DecodeVirtualSPNByEfPnn(r io.Reader) ([]VirtualSPN, error) {
	return decodeVirtual(r, "virtualSpnOverridesByEfPnn", "mccmncpnn")
}

// VirtualNet is one EF_GID1 MVNO entry. GID is stored normalized.
type VirtualNet struct {
	Numeric string
	GID     string
	Name    string
}

// Key returns the lookup key numeric+GID.
func (v VirtualNet) Key() string {
	return v.Numeric + v.GID
}

// DecodeVirtualNets reads a <virtualNets> document.
func DecodeVirtualNets(r io.Reader) ([]VirtualNet, error) {
	var out []VirtualNet
	_, err := readFlat(r, "virtualNets", "virtualNet", func(attrs map[string]string) error {
		out = append(out, VirtualNet{
			Numeric: attrs["numeric"],
			GID:     carrierconf.NormalizeGID1(attrs["gid"]),
			Name:    attrs["ons_name"],
		})
		return nil
	})
	return out, err
}
