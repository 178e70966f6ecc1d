package carrierconf

import "fmt"

// Subscription table columns.
const (
	SimColID                  = "_id"
	SimColICCID               = "icc_id"
	SimColSimID               = "sim_id"
	SimColDisplayName         = "display_name"
	SimColCarrierName         = "carrier_name"
	SimColNameSource          = "name_source"
	SimColColor               = "color"
	SimColNumber              = "number"
	SimColDisplayNumberFormat = "display_number_format"
	SimColDataRoaming         = "data_roaming"
	SimColMCC                 = "mcc"
	SimColMNC                 = "mnc"
)

// Name sources for SimColNameSource.
const (
	NameSourceDefault = 0
	NameSourceSIM     = 1
	NameSourceUser    = 2
)

// SimNotInserted is the sim_id of a subscription whose card is absent.
const SimNotInserted int64 = -1

// SubscriptionColumns lists the subscription table columns, _id excluded.
var SubscriptionColumns = []Column{
	{Name: SimColICCID},
	{Name: SimColSimID, Type: TypeInteger},
	{Name: SimColDisplayName},
	{Name: SimColCarrierName},
	{Name: SimColNameSource, Type: TypeInteger},
	{Name: SimColColor, Type: TypeInteger},
	{Name: SimColNumber},
	{Name: SimColDisplayNumberFormat, Type: TypeInteger},
	{Name: SimColDataRoaming, Type: TypeInteger},
	{Name: SimColMCC, Type: TypeInteger},
	{Name: SimColMNC, Type: TypeInteger},
}

var subscriptionColumnIndex = func() map[string]Column {
	m := make(map[string]Column, len(SubscriptionColumns)+1)
	m[SimColID] = Column{Name: SimColID, Type: TypeInteger}
	for _, c := range SubscriptionColumns {
		m[c.Name] = c
	}
	return m
}()

// LookupSubscriptionColumn reports the column definition for name.
func LookupSubscriptionColumn(name string) (Column, bool) {
	c, ok := subscriptionColumnIndex[name]
	return c, ok
}

// SubscriptionRecord is one row of the subscription table.
type SubscriptionRecord struct {
	ID                  int64
	ICCID               string
	SimID               int64
	DisplayName         string
	CarrierName         string
	NameSource          int64
	Color               int64
	Number              string
	DisplayNumberFormat int64
	DataRoaming         int64
	MCC                 int64
	MNC                 int64
}

// Operator returns the subscription's numeric operator code, or "" when
// the record carries no MCC.
func (s SubscriptionRecord) Operator() string {
	if s.MCC <= 0 {
		return ""
	}
	return DeriveNumeric(fmt.Sprintf("%03d", s.MCC), fmt.Sprintf("%02d", s.MNC))
}

// NormalizeSubscriptionValues validates a bag against the subscription
// columns and converts each value to its column type.
func NormalizeSubscriptionValues(v Values) (Values, error) {
	out := make(Values, len(v))
	for k, raw := range v {
		col, ok := LookupSubscriptionColumn(k)
		if !ok || k == SimColID {
			return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidValue, k)
		}
		if raw == nil {
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
