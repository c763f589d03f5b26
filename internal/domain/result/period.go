package result

import "time"

// DefaultPeriod maps "now" to the reporting period. During the first
// ten days of a month results are still being captured for the
// previous month, so that month stays the default.
func DefaultPeriod(now time.Time) Period {
	year, month := now.Year(), int(now.Month())
	if now.Day() <= 10 {
		month--
		if month == 0 {
			month = 12
			year--
		}
	}
	return Period{Year: year, Month: month}
}
