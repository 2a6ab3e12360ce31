package utils

import "time"

// SplitUptime breaks d into whole days, hours and minutes. Each unit is
// the floored remainder of the same total-seconds value; partial minutes
// are dropped.
func SplitUptime(d time.Duration) (days, hours, minutes int64) {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	days = total / 86400
	hours = (total % 86400) / 3600
	minutes = (total % 3600) / 60
	return days, hours, minutes
}
