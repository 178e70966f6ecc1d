package carrierconf

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cast"
)

// ErrInvalidValue is returned when a value bag names an unknown column or
// carries a value that cannot be converted to the column's type.
var ErrInvalidValue = errors.New("invalid column value")

// Values is a loosely typed column bag as received from callers.
type Values map[string]any

// Keys returns the bag's column names in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Carrier table columns.
const (
	ColID             = "_id"
	ColName           = "name"
	ColNumeric        = "numeric"
	ColMCC            = "mcc"
	ColMNC            = "mnc"
	ColAPN            = "apn"
	ColUser           = "user"
	ColServer         = "server"
	ColPassword       = "password"
	ColProxy          = "proxy"
	ColPort           = "port"
	ColMMSProxy       = "mmsproxy"
	ColMMSPort        = "mmsport"
	ColMMSC           = "mmsc"
	ColAuthType       = "authtype"
	ColType           = "type"
	ColCurrent        = "current"
	ColSourceType     = "sourcetype"
	ColCSDNum         = "csdnum"
	ColProtocol       = "protocol"
	ColRoamingProto   = "roaming_protocol"
	ColCarrierEnabled = "carrier_enabled"
	ColBearer         = "bearer"
	ColSPN            = "spn"
	ColIMSI           = "imsi"
	ColPNN            = "pnn"
	ColPPP            = "ppp"
	ColMVNOType       = "mvno_type"
	ColMVNOMatchData  = "mvno_match_data"
	ColSubID          = "sub_id"
	ColProfileID      = "profile_id"
	ColModemCognitive = "modem_cognitive"
	ColMaxConns       = "max_conns"
	ColWaitTime       = "wait_time"
	ColMaxConnsTime   = "max_conns_time"
	ColMTU            = "mtu"
	ColOMACPID        = "omacpid"
	ColNAPID          = "napid"
	ColProxyID        = "proxyid"

	// ColAPNID is the value key carrying a row id into a preferred-APN write.
	ColAPNID = "apn_id"
)

// Protocol vocabulary for the protocol and roaming_protocol columns.
const (
	ProtocolIP     = "IP"
	ProtocolIPv6   = "IPV6"
	ProtocolIPv4v6 = "IPV4V6"
)

// Source types.
const (
	SourceBundled     = 0
	SourceProvisioned = 1
)

// NoSubscription is the sentinel sub_id for rows not bound to a subscription.
const NoSubscription int64 = -1

// ColumnType is the storage class of a column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeBool
)

// Column describes one carrier table column.
type Column struct {
	Name string
	Type ColumnType

	// OMACP marks columns present only when OMA-CP support is enabled.
	OMACP bool
}

// CarrierColumns lists the carrier table columns in storage order, _id excluded.
var CarrierColumns = []Column{
	{Name: ColName}, {Name: ColNumeric}, {Name: ColMCC}, {Name: ColMNC},
	{Name: ColAPN}, {Name: ColUser}, {Name: ColServer}, {Name: ColPassword},
	{Name: ColProxy}, {Name: ColPort}, {Name: ColMMSProxy}, {Name: ColMMSPort},
	{Name: ColMMSC}, {Name: ColAuthType, Type: TypeInteger}, {Name: ColType},
	{Name: ColCurrent, Type: TypeInteger}, {Name: ColSourceType, Type: TypeInteger},
	{Name: ColCSDNum}, {Name: ColProtocol}, {Name: ColRoamingProto},
	{Name: ColCarrierEnabled, Type: TypeBool}, {Name: ColBearer, Type: TypeInteger},
	{Name: ColSPN}, {Name: ColIMSI}, {Name: ColPNN}, {Name: ColPPP},
	{Name: ColMVNOType}, {Name: ColMVNOMatchData},
	{Name: ColSubID, Type: TypeInteger}, {Name: ColProfileID, Type: TypeInteger},
	{Name: ColModemCognitive, Type: TypeBool}, {Name: ColMaxConns, Type: TypeInteger},
	{Name: ColWaitTime, Type: TypeInteger}, {Name: ColMaxConnsTime, Type: TypeInteger},
	{Name: ColMTU, Type: TypeInteger},
	{Name: ColOMACPID, OMACP: true}, {Name: ColNAPID, OMACP: true}, {Name: ColProxyID, OMACP: true},
}

var carrierColumnIndex = func() map[string]Column {
	m := make(map[string]Column, len(CarrierColumns)+1)
	m[ColID] = Column{Name: ColID, Type: TypeInteger}
	for _, c := range CarrierColumns {
		m[c.Name] = c
	}
	return m
}()

// LookupCarrierColumn reports the column definition for name.
// When omacp is false the OMA-CP columns are treated as unknown.
func LookupCarrierColumn(name string, omacp bool) (Column, bool) {
	c, ok := carrierColumnIndex[name]
	if !ok || (c.OMACP && !omacp) {
		return Column{}, false
	}
	return c, true
}

// CarrierRecord is a complete carrier row. Every field except Current has a
// non-null value; Current is the nullable current marker.
type CarrierRecord struct {
	ID             int64
	Name           string
	Numeric        string
	MCC            string
	MNC            string
	APN            string
	User           string
	Server         string
	Password       string
	Proxy          string
	Port           string
	MMSProxy       string
	MMSPort        string
	MMSC           string
	AuthType       int64
	Type           string
	Current        *int64
	SourceType     int64
	CSDNum         string
	Protocol       string
	RoamingProto   string
	CarrierEnabled bool
	Bearer         int64
	SPN            string
	IMSI           string
	PNN            string
	PPP            string
	MVNOType       string
	MVNOMatchData  string
	SubID          int64
	ProfileID      int64
	ModemCognitive bool
	MaxConns       int64
	WaitTime       int64
	MaxConnsTime   int64
	MTU            int64
	OMACPID        string
	NAPID          string
	ProxyID        string
}

// NewCarrierRecord returns a record holding every column default.
func NewCarrierRecord(defaultSubID int64) CarrierRecord {
	return CarrierRecord{
		AuthType:       -1,
		SourceType:     SourceBundled,
		Protocol:       ProtocolIP,
		RoamingProto:   ProtocolIP,
		CarrierEnabled: true,
		SubID:          defaultSubID,
	}
}

// FillCarrierDefaults builds a total record from a partial value bag.
// Absent columns take their documented default; unknown columns and
// unconvertible values are rejected with ErrInvalidValue.
func FillCarrierDefaults(v Values, defaultSubID int64, omacp bool) (CarrierRecord, error) {
	rec := NewCarrierRecord(defaultSubID)
	for _, k := range v.Keys() {
		if err := rec.Set(k, v[k], omacp); err != nil {
			return CarrierRecord{}, err
		}
	}
	return rec, nil
}

// Set assigns one column from a loosely typed value.
func (c *CarrierRecord) Set(column string, value any, omacp bool) error {
	col, ok := LookupCarrierColumn(column, omacp)
	if !ok {
		return fmt.Errorf("%w: unknown column %q", ErrInvalidValue, column)
	}
	if value == nil {
		if column == ColCurrent {
			c.Current = nil
			return nil
		}
		return fmt.Errorf("%w: column %q is not nullable", ErrInvalidValue, column)
	}
	conv, err := ConvertValue(col, value)
	if err != nil {
		return err
	}
	carrierFields[column].set(c, conv)
	return nil
}

// Get returns the value of one column, or nil for an unset current marker.
func (c *CarrierRecord) Get(column string) (any, bool) {
	f, ok := carrierFields[column]
	if !ok {
		return nil, false
	}
	return f.get(c), true
}

// Row returns the record's columns and values in storage order, _id excluded.
func (c *CarrierRecord) Row(omacp bool) ([]string, []any) {
	cols := make([]string, 0, len(CarrierColumns))
	vals := make([]any, 0, len(CarrierColumns))
	for _, col := range CarrierColumns {
		if col.OMACP && !omacp {
			continue
		}
		cols = append(cols, col.Name)
		vals = append(vals, carrierFields[col.Name].get(c))
	}
	return cols, vals
}

type carrierField struct {
	get func(*CarrierRecord) any
	set func(*CarrierRecord, any)
}

func textField(p func(*CarrierRecord) *string) carrierField {
	return carrierField{
		get: func(c *CarrierRecord) any { return *p(c) },
		set: func(c *CarrierRecord, v any) { *p(c) = v.(string) },
	}
}

func intField(p func(*CarrierRecord) *int64) carrierField {
	return carrierField{
		get: func(c *CarrierRecord) any { return *p(c) },
		set: func(c *CarrierRecord, v any) { *p(c) = v.(int64) },
	}
}

func boolField(p func(*CarrierRecord) *bool) carrierField {
	return carrierField{
		get: func(c *CarrierRecord) any { return *p(c) },
		set: func(c *CarrierRecord, v any) { *p(c) = v.(bool) },
	}
}

var carrierFields = map[string]carrierField{
	ColID:             intField(func(c *CarrierRecord) *int64 { return &c.ID }),
	ColName:           textField(func(c *CarrierRecord) *string { return &c.Name }),
	ColNumeric:        textField(func(c *CarrierRecord) *string { return &c.Numeric }),
	ColMCC:            textField(func(c *CarrierRecord) *string { return &c.MCC }),
	ColMNC:            textField(func(c *CarrierRecord) *string { return &c.MNC }),
	ColAPN:            textField(func(c *CarrierRecord) *string { return &c.APN }),
	ColUser:           textField(func(c *CarrierRecord) *string { return &c.User }),
	ColServer:         textField(func(c *CarrierRecord) *string { return &c.Server }),
	ColPassword:       textField(func(c *CarrierRecord) *string { return &c.Password }),
	ColProxy:          textField(func(c *CarrierRecord) *string { return &c.Proxy }),
	ColPort:           textField(func(c *CarrierRecord) *string { return &c.Port }),
	ColMMSProxy:       textField(func(c *CarrierRecord) *string { return &c.MMSProxy }),
	ColMMSPort:        textField(func(c *CarrierRecord) *string { return &c.MMSPort }),
	ColMMSC:           textField(func(c *CarrierRecord) *string { return &c.MMSC }),
	ColAuthType:       intField(func(c *CarrierRecord) *int64 { return &c.AuthType }),
	ColType:           textField(func(c *CarrierRecord) *string { return &c.Type }),
	ColSourceType:     intField(func(c *CarrierRecord) *int64 { return &c.SourceType }),
	ColCSDNum:         textField(func(c *CarrierRecord) *string { return &c.CSDNum }),
	ColProtocol:       textField(func(c *CarrierRecord) *string { return &c.Protocol }),
	ColRoamingProto:   textField(func(c *CarrierRecord) *string { return &c.RoamingProto }),
	ColCarrierEnabled: boolField(func(c *CarrierRecord) *bool { return &c.CarrierEnabled }),
	ColBearer:         intField(func(c *CarrierRecord) *int64 { return &c.Bearer }),
	ColSPN:            textField(func(c *CarrierRecord) *string { return &c.SPN }),
	ColIMSI:           textField(func(c *CarrierRecord) *string { return &c.IMSI }),
	ColPNN:            textField(func(c *CarrierRecord) *string { return &c.PNN }),
	ColPPP:            textField(func(c *CarrierRecord) *string { return &c.PPP }),
	ColMVNOType:       textField(func(c *CarrierRecord) *string { return &c.MVNOType }),
	ColMVNOMatchData:  textField(func(c *CarrierRecord) *string { return &c.MVNOMatchData }),
	ColSubID:          intField(func(c *CarrierRecord) *int64 { return &c.SubID }),
	ColProfileID:      intField(func(c *CarrierRecord) *int64 { return &c.ProfileID }),
	ColModemCognitive: boolField(func(c *CarrierRecord) *bool { return &c.ModemCognitive }),
	ColMaxConns:       intField(func(c *CarrierRecord) *int64 { return &c.MaxConns }),
	ColWaitTime:       intField(func(c *CarrierRecord) *int64 { return &c.WaitTime }),
	ColMaxConnsTime:   intField(func(c *CarrierRecord) *int64 { return &c.MaxConnsTime }),
	ColMTU:            intField(func(c *CarrierRecord) *int64 { return &c.MTU }),
	ColOMACPID:        textField(func(c *CarrierRecord) *string { return &c.OMACPID }),
	ColNAPID:          textField(func(c *CarrierRecord) *string { return &c.NAPID }),
	ColProxyID:        textField(func(c *CarrierRecord) *string { return &c.ProxyID }),
	ColCurrent: {
		get: func(c *CarrierRecord) any {
			if c.Current == nil {
				return nil
			}
			return *c.Current
		},
		set: func(c *CarrierRecord, v any) {
			n := v.(int64)
			c.Current = &n
		},
	},
}

// NormalizeCarrierValues validates a partial bag against the carrier
// columns and converts each value to its column type. A nil value is kept
// only for the current marker.
func NormalizeCarrierValues(v Values, omacp bool) (Values, error) {
	out := make(Values, len(v))
	for k, raw := range v {
		col, ok := LookupCarrierColumn(k, omacp)
		if !ok || k == ColID {
			return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidValue, k)
		}
		if raw == nil {
			if k != ColCurrent {
				return nil, fmt.Errorf("%w: column %q is not nullable", ErrInvalidValue, k)
			}
			out[k] = nil
			continue
		}
		conv, err := ConvertValue(col, raw)
		if err != nil {
			return nil, err
		}
		out[k] = conv
	}
	return out, nil
}

// ConvertValue converts a loosely typed value to the Go type of col:
// string for text, int64 for integer, bool for boolean columns.
func ConvertValue(col Column, value any) (any, error) {
	var (
		out any
		err error
	)
	switch col.Type {
	case TypeText:
		out, err = cast.ToStringE(value)
	case TypeInteger:
		out, err = cast.ToInt64E(value)
	case TypeBool:
		out, err = cast.ToBoolE(value)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: column %q: %v", ErrInvalidValue, col.Name, err)
	}
	return out, nil
}
