package categorize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datespot/aggregator/internal/domain"
)

func TestCleanse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "live jazz downtown", "live jazz downtown"},
		{"collapses whitespace", "live\n\tjazz   downtown ", "live jazz downtown"},
		{"strips non-ascii", "café société", "caf soci t"},
		{"empty", "", ""},
		{"only non-ascii", "日本語", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cleanse(tt.input))
		})
	}
}

func TestCleanseCapsLength(t *testing.T) {
	long := strings.Repeat("a", 400)
	got := Cleanse(long)
	assert.Len(t, got, 250)
}

func TestSummarize(t *testing.T) {
	ev := domain.Event{Title: "Jazz Night", DescriptionStripped: "  weekly   jam "}
	assert.Equal(t, "Jazz Night: weekly jam", Summarize(ev))
}
