package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// clockTimeRe matches 12-hour feed times: "9:30 PM", "11:00 AM", "9 PM".
var clockTimeRe = regexp.MustCompile(`^(?:(\d{1,2}):(\d{2})\s*(AM|PM)|(\d{1,2})\s*(AM|PM))`)

// ParseClockTime converts a 12-hour time string to an HHMM integer
// (e.g. "9:30 PM" -> 2130, "12 AM" -> 0). Returns nil when the string
// does not look like a time.
func ParseClockTime(s string) *int {
	m := clockTimeRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return nil
	}

	var hours, minutes int
	var period string
	if m[1] != "" {
		hours, _ = strconv.Atoi(m[1])
		minutes, _ = strconv.Atoi(m[2])
		period = m[3]
	} else {
		hours, _ = strconv.Atoi(m[4])
		period = m[5]
	}

	if hours < 1 || hours > 12 || minutes > 59 {
		return nil
	}

	if period == "PM" && hours != 12 {
		hours += 12
	} else if period == "AM" && hours == 12 {
		hours = 0
	}

	v := hours*100 + minutes
	return &v
}

// SunsetToNumber converts an "HH:MM:SS" sunset string to an HHMM integer.
// Returns nil when the string is empty or malformed.
func SunsetToNumber(s string) *int {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return nil
	}
	hours, errH := strconv.Atoi(parts[0])
	minutes, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil {
		return nil
	}
	v := hours*100 + minutes
	return &v
}
