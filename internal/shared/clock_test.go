package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDayOfKeepsLocation(t *testing.T) {
	tashkent := time.FixedZone("UZT", 5*3600)

	// 01:30 in Tashkent is still the previous day in UTC; the occurred date
	// must follow the timestamp's own calendar day.
	ts := time.Date(2026, time.March, 1, 1, 30, 0, 0, tashkent)
	require.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, tashkent), DayOf(ts))

	utc := time.Date(2026, time.February, 28, 23, 59, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC), DayOf(utc))
}
