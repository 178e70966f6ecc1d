package provider

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/superfly/carrierconf/database"
)

// SimInfoTelephony answers operator questions from the subscription table
// itself: the SIM operator of a subscription is the numeric code derived
// from the mcc and mnc recorded on its siminfo row.
type SimInfoTelephony struct {
	db       *database.DB
	defaultS int64
	logger   logrus.FieldLogger
}

// NewSimInfoTelephony returns a Telephony backed by db. defaultSubID is
// reported for unscoped requests.
func NewSimInfoTelephony(db *database.DB, defaultSubID int64, logger logrus.FieldLogger) *SimInfoTelephony {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SimInfoTelephony{db: db, defaultS: defaultSubID, logger: logger}
}

// DefaultSubID implements Telephony.
func (t *SimInfoTelephony) DefaultSubID() int64 {
	return t.defaultS
}

// SimOperator implements Telephony. Lookup failures report "".
func (t *SimInfoTelephony) SimOperator(ctx context.Context, subID int64) string {
	sub, err := t.db.Subscription(ctx, subID)
	if err != nil {
		t.logger.WithError(err).WithField("sub_id", subID).Warn("failed to look up subscription")
		return ""
	}
	if sub == nil {
		return ""
	}
	return sub.Operator()
}

// StaticTelephony is a fixed Telephony, for tools and tests.
type StaticTelephony struct {
	Default   int64
	Operators map[int64]string
}

// DefaultSubID implements Telephony.
func (s StaticTelephony) DefaultSubID() int64 { return s.Default }

// SimOperator implements Telephony.
func (s StaticTelephony) SimOperator(_ context.Context, subID int64) string {
	return s.Operators[subID]
}
