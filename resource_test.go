// resource_test.go - Tests for the resource reference codec and carrier identity helpers.

package carrierconf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURI_RoundTrip(t *testing.T) {
	cases := []string{
		"content://telephony/carriers",
		"content://telephony/carriers/subId/2",
		"content://telephony/carriers/current",
		"content://telephony/carriers/current/subId/1",
		"content://telephony/carriers/42",
		"content://telephony/carriers/restore",
		"content://telephony/carriers/restore/subId/3",
		"content://telephony/carriers/preferapn",
		"content://telephony/carriers/preferapn/subId/1",
		"content://telephony/carriers/preferapn_no_update",
		"content://telephony/carriers/preferapn_no_update/subId/1",
		"content://telephony/carriers/prefertetheringapn",
		"content://telephony/siminfo",
		"content://telephony/siminfo/7",
		"content://telephony/carriers_dm",
		"content://telephony/carriers_dm/9",
	}
	for _, s := range cases {
		r, err := ParseURI(s)
		require.NoError(t, err, s)
		require.Equal(t, s, r.String())
	}
}

func TestParseURI_Kinds(t *testing.T) {
	r, err := ParseURI("carriers/12")
	require.NoError(t, err)
	require.Equal(t, KindCarrierByID, r.Kind)
	require.Equal(t, int64(12), r.ID)
	require.False(t, r.HasSubID)

	r, err = ParseURI("content://telephony/carriers/preferapn_no_update/subId/5")
	require.NoError(t, err)
	require.Equal(t, KindPreferAPNNoUpdate, r.Kind)
	require.True(t, r.HasSubID)
	require.Equal(t, int64(5), r.SubID)
}

func TestParseURI_Rejects(t *testing.T) {
	for _, s := range []string{
		"",
		"content://telephony/",
		"content://telephony/sms",
		"content://telephony/carriers/bogus",
		"content://telephony/carriers/12/subId/1",
		"content://telephony/siminfo/subId/1",
		"content://telephony/carriers/prefertetheringapn/subId/1",
		"content://telephony/carriers_dm/x",
		"content://telephony/carriers/current/subId",
	} {
		_, err := ParseURI(s)
		require.ErrorIs(t, err, ErrUnknownResource, s)
	}

	_, err := ParseURI("content://telephony/carriers/subId/abc")
	require.True(t, errors.Is(err, ErrInvalidSubID))
}

func TestWithSubID_IgnoredForUnscopedKinds(t *testing.T) {
	r := CarrierByID(3).WithSubID(1)
	require.False(t, r.HasSubID)

	r = PreferAPN().WithSubID(1)
	require.True(t, r.HasSubID)
	require.Equal(t, "content://telephony/carriers/preferapn/subId/1", r.String())
}

func TestNormalizeGID1(t *testing.T) {
	require.Equal(t, "ffffffff", NormalizeGID1("A1"))
	require.Equal(t, "b2ffffff", NormalizeGID1("a1B2"))
	require.Equal(t, "b2c3d4ff", NormalizeGID1("A1B2C3D4"))
	require.Equal(t, "b2c3d4e5", NormalizeGID1("a1b2c3d4e5"))
	require.Equal(t, "", NormalizeGID1(""))
	for _, in := range []string{"A1", "a1b2", "a1b2c3d4"} {
		require.Len(t, NormalizeGID1(in), 8, in)
	}
}

func TestDeriveAndSplitNumeric(t *testing.T) {
	require.Equal(t, "310260", DeriveNumeric("310", "260"))
	mcc, mnc, ok := SplitNumeric("46000")
	require.True(t, ok)
	require.Equal(t, "460", mcc)
	require.Equal(t, "00", mnc)
	_, _, ok = SplitNumeric("46")
	require.False(t, ok)

	require.Equal(t, "46001", SubscriptionRecord{MCC: 460, MNC: 1}.Operator())
	require.Equal(t, "", SubscriptionRecord{}.Operator())
}
