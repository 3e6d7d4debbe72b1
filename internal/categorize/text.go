package categorize

import (
	"strings"

	"github.com/datespot/aggregator/internal/domain"
)

const maxSummaryLen = 250

// Summarize builds the classifier summary line for one event.
func Summarize(ev domain.Event) string {
	return ev.Title + ": " + Cleanse(ev.DescriptionStripped)
}

// Cleanse strips non-ASCII characters, collapses runs of whitespace into
// single spaces, trims, and caps the result at 250 characters so prompt
// size stays bounded regardless of feed content.
func Cleanse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > 127 {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if len(cleaned) > maxSummaryLen {
		cleaned = cleaned[:maxSummaryLen]
	}
	return cleaned
}
