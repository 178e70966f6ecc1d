package carrierconf

import "strings"

// gid1KeyLength is the padded width of a GID1 value before the leading
// record byte is dropped.
const gid1KeyLength = 10

// DeriveNumeric returns the numeric operator code for an MCC/MNC pair.
//
// This is the single source of truth for carrier identity: the bundled APN
// loader, device-management inserts and subscription-derived operators all
// key carrier rows through it.
//
// # Example
//
//	DeriveNumeric("310", "260")  // "310260"
//	DeriveNumeric("460", "00")   // "46000"
func DeriveNumeric(mcc, mnc string) string {
	return mcc + mnc
}

// SplitNumeric splits a numeric operator code into MCC and MNC. The MCC is
// always three digits; anything shorter than four characters yields ok=false.
func SplitNumeric(numeric string) (mcc, mnc string, ok bool) {
	if len(numeric) < 4 {
		return "", "", false
	}
	return numeric[:3], numeric[3:], true
}

// NormalizeGID1 converts a raw EF_GID1 hex string to the lookup key form
// used by the GID1 MVNO tables and by APN rows with mvno_type "gid".
//
// The value is lower-cased, right-padded with 'f' to ten characters, and
// the first two characters are dropped. Inputs of ten characters or fewer
// therefore always produce an eight-character key:
//
//	NormalizeGID1("A1")       // "ffffffff"
//	NormalizeGID1("a1b2")     // "b2ffffff"
//	NormalizeGID1("a1b2c3d4") // "b2c3d4ff"
//
// An empty input returns "".
func NormalizeGID1(raw string) string {
	if raw == "" {
		return ""
	}
	g := strings.ToLower(raw)
	if n := gid1KeyLength - len(g); n > 0 {
		g += strings.Repeat("f", n)
	}
	return g[2:]
}
