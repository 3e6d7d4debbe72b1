package pipeline

import "github.com/datespot/aggregator/internal/domain"

// mergeCategories writes each event's category onto the event in place and
// returns how many events got one. An empty or missing category leaves the
// event with a nil EventCategory; the event itself is never dropped here.
func mergeCategories(resultsByDate map[string][]domain.Event, categories map[string]map[string]string) int {
	categorized := 0
	for date, events := range resultsByDate {
		dateCategories := categories[date]
		for i := range events {
			category, ok := dateCategories[events[i].ID]
			if !ok || category == "" {
				events[i].EventCategory = nil
				continue
			}
			events[i].EventCategory = &category
			categorized++
		}
	}
	return categorized
}

// filterExcluded removes events whose category is excluded. Uncategorized
// events are kept, and every input date key survives even when all of its
// events are filtered out.
func filterExcluded(resultsByDate map[string][]domain.Event, excluded map[string]struct{}) (map[string][]domain.Event, int) {
	filtered := make(map[string][]domain.Event, len(resultsByDate))
	removed := 0

	for date, events := range resultsByDate {
		kept := make([]domain.Event, 0, len(events))
		for _, ev := range events {
			if ev.EventCategory != nil {
				if _, skip := excluded[*ev.EventCategory]; skip {
					removed++
					continue
				}
			}
			kept = append(kept, ev)
		}
		filtered[date] = kept
	}
	return filtered, removed
}
