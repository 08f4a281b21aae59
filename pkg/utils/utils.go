package utils

import (
	"time"
)

// DayMillis is the length of one accrual day in milliseconds.
const DayMillis int64 = 86_400_000

// Day is DayMillis as a duration.
const Day = time.Duration(DayMillis) * time.Millisecond

// ToMillis converts t to unix milliseconds. The zero time maps to 0.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts unix milliseconds to UTC. 0 maps to the zero time.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// WholeDaysBetween returns floor((to - from) / day), or 0 if to is before from.
func WholeDaysBetween(from, to time.Time) int64 {
	elapsed := ToMillis(to) - ToMillis(from)
	if elapsed <= 0 {
		return 0
	}
	return elapsed / DayMillis
}

// AddDays adds n whole accrual days, independent of calendar and DST rules.
func AddDays(t time.Time, n int64) time.Time {
	return t.Add(time.Duration(n*DayMillis) * time.Millisecond)
}

// CalculateDueDate returns the due date of a loan started at start for termDays.
func CalculateDueDate(start time.Time, termDays int) time.Time {
	return AddDays(start, int64(termDays))
}

// IsOverdue reports whether now is strictly after due.
func IsOverdue(due, now time.Time) bool {
	return now.After(due)
}

// TruncateMillis drops sub-millisecond precision so times survive storage.
func TruncateMillis(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return FromMillis(ToMillis(t))
}
