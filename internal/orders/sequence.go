package orders

import "fmt"

// BaselineNumber is the identifier of the very first order in an empty store.
const BaselineNumber = "01-01-01"

// CounterSums are the cumulative unit counts of previously recorded orders
// in the current year, month and day windows. The counters are global across
// tenants, matching the global numbering lock.
type CounterSums struct {
	Year  int64
	Month int64
	Day   int64
}

// FormatNumber builds the three-segment order number from the prior counter
// sums plus the current order's quantity. Each segment is zero-padded to at
// least two digits and grows past two digits once the count exceeds 99.
func FormatNumber(sums CounterSums, quantity int64) string {
	year := sums.Year + quantity
	month := sums.Month + quantity
	day := sums.Day + quantity
	if year <= 0 && month <= 0 && day <= 0 {
		return BaselineNumber
	}
	return fmt.Sprintf("%02d-%02d-%02d", year, month, day)
}
