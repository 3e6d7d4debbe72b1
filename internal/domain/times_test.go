package domain_test

import (
	"testing"
	"time"

	"github.com/datespot/aggregator/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"9:30 PM", 2130},
		{"11:00 AM", 1100},
		{"9 PM", 2100},
		{"12 AM", 0},
		{"12:15 PM", 1215},
		{"  7:05 pm ", 1905},
	}
	for _, tt := range tests {
		got := domain.ParseClockTime(tt.in)
		require.NotNil(t, got, "input %q", tt.in)
		assert.Equal(t, tt.want, *got, "input %q", tt.in)
	}
}

func TestParseClockTime_Invalid(t *testing.T) {
	for _, in := range []string{"", "soon", "25:00 PM", "noon"} {
		assert.Nil(t, domain.ParseClockTime(in), "input %q", in)
	}
}

func TestSunsetToNumber(t *testing.T) {
	got := domain.SunsetToNumber("20:45:12")
	require.NotNil(t, got)
	assert.Equal(t, 2045, *got)

	got = domain.SunsetToNumber("06:05")
	require.NotNil(t, got)
	assert.Equal(t, 605, *got)

	assert.Nil(t, domain.SunsetToNumber(""))
	assert.Nil(t, domain.SunsetToNumber("sunset"))
}

func TestDates_Window(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() {
		domain.SetClock(nil)
	})

	dates := domain.Dates(3)
	assert.Equal(t, []string{"2024-01-15", "2024-01-16", "2024-01-17"}, dates)
}
