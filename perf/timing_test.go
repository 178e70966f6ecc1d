package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestTimer_StopWithThreshold(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	Start("fast", logger).StopWithThreshold(time.Hour)
	require.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)

	timer := Start("slow", logger)
	time.Sleep(2 * time.Millisecond)
	timer.StopWithThreshold(time.Nanosecond)
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	require.Equal(t, "slow", hook.LastEntry().Data["operation"])
}

func TestPopulationReport(t *testing.T) {
	r := NewPopulationReport()
	r.RecordWipe(7, time.Millisecond)
	r.RecordAsset(AssetLoad{Name: "base", Source: "dir:/a/apns.xml", Rows: 10})
	r.RecordAsset(AssetLoad{Name: "partner", Source: "dir:/b/etc/apns-conf.xml", Rows: 3, Err: errors.New("bad")})

	require.Equal(t, 10, r.Rows())
	require.Equal(t, []string{"partner"}, r.Failed())
	require.Contains(t, r.Summary(), "rolled back: bad")
	require.Contains(t, r.Summary(), "7 rows")

	ctx := WithReport(context.Background(), r)
	require.Same(t, r, ReportFromContext(ctx))
	require.Nil(t, ReportFromContext(context.Background()))
}
