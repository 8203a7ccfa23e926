package shared

import "time"

// DayOf returns midnight of t's calendar day in t's own location. Ledger
// entries stamp their occurred date with it, so a caller-supplied zoned
// timestamp yields that zone's day rather than the UTC one.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
