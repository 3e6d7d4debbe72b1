package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datespot/aggregator/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestMergeCategories(t *testing.T) {
	results := map[string][]domain.Event{
		"2024-01-15": {{ID: "101"}, {ID: "102"}, {ID: "103"}},
	}
	categories := map[string]map[string]string{
		"2024-01-15": {"101": "Comedy Scene", "102": ""},
	}

	categorized := mergeCategories(results, categories)

	assert.Equal(t, 1, categorized)
	require.NotNil(t, results["2024-01-15"][0].EventCategory)
	assert.Equal(t, "Comedy Scene", *results["2024-01-15"][0].EventCategory)
	assert.Nil(t, results["2024-01-15"][1].EventCategory, "empty category means uncategorized")
	assert.Nil(t, results["2024-01-15"][2].EventCategory)
}

func TestMergeCategories_MissingDate(t *testing.T) {
	results := map[string][]domain.Event{"2024-01-15": {{ID: "101"}}}

	categorized := mergeCategories(results, map[string]map[string]string{})

	assert.Equal(t, 0, categorized)
	assert.Nil(t, results["2024-01-15"][0].EventCategory)
}

func TestFilterExcluded(t *testing.T) {
	results := map[string][]domain.Event{
		"2024-01-15": {
			{ID: "101", EventCategory: strPtr("Comedy Scene")},
			{ID: "102", EventCategory: strPtr("Seniors Programs")},
			{ID: "103"},
		},
		"2024-01-16": {
			{ID: "201", EventCategory: strPtr("Camps & Kids Programs")},
		},
	}
	excluded := map[string]struct{}{
		"Seniors Programs":      {},
		"Camps & Kids Programs": {},
	}

	filtered, removed := filterExcluded(results, excluded)

	assert.Equal(t, 2, removed)
	require.Len(t, filtered["2024-01-15"], 2)
	assert.Equal(t, "101", filtered["2024-01-15"][0].ID)
	assert.Equal(t, "103", filtered["2024-01-15"][1].ID, "uncategorized events are kept")

	events, ok := filtered["2024-01-16"]
	require.True(t, ok, "fully filtered dates keep their key")
	assert.Empty(t, events)
}
