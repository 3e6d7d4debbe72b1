package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for date-window generation. Pass nil to
// reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Dates returns n consecutive YYYY-MM-DD strings starting today. These are
// the partition keys the whole pipeline is grouped by.
func Dates(n int) []string {
	dates := make([]string, 0, n)
	today := clock.Now()
	for i := 0; i < n; i++ {
		dates = append(dates, today.AddDate(0, 0, i).Format(time.DateOnly))
	}
	return dates
}
