// Command genfixture writes deterministic feed fixtures for local
// development: a raw feed response per date, shaped like the BlogTO API,
// plus the validated events they produce. Point a stub HTTP server at the
// raw files to run the aggregator without touching the real feed.
//
// Usage:
//
//	go run ./cmd/genfixture -days 3 -per-day 5 -out data/fixtures
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/datespot/aggregator/internal/domain"
)

var venues = []struct {
	name  string
	title string
}{
	{"The Rex", "Jazz Night"},
	{"Horseshoe Tavern", "Indie Showcase"},
	{"Comedy Bar", "Open Mic"},
	{"Tranzac Club", "Folk Session"},
	{"The Garrison", "Album Release Party"},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	days := flag.Int("days", 3, "number of dates to generate")
	perDay := flag.Int("per-day", 5, "events per date")
	out := flag.String("out", "data/fixtures", "output directory")
	flag.Parse()

	if *days <= 0 || *perDay <= 0 {
		return fmt.Errorf("-days and -per-day must be positive")
	}

	// Fixed clock for reproducible dates.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	validated := make(map[string][]domain.Event)
	nextID := 100

	for _, date := range domain.Dates(*days) {
		listings := make([]domain.RawEvent, 0, *perDay)
		for i := 0; i < *perDay; i++ {
			listings = append(listings, makeListing(nextID, i))
			nextID++
		}

		feedPath := filepath.Join(*out, "feed_"+date+".json")
		if err := writeJSON(feedPath, map[string]any{"results": listings}); err != nil {
			return fmt.Errorf("writing feed fixture: %w", err)
		}
		log.Printf("wrote %s: %d listings", feedPath, len(listings))

		events := make([]domain.Event, 0, len(listings))
		for _, l := range listings {
			events = append(events, toEvent(l))
		}
		validated[date] = events
	}

	eventsPath := filepath.Join(*out, "validated_events.json")
	if err := writeJSON(eventsPath, validated); err != nil {
		return fmt.Errorf("writing events fixture: %w", err)
	}
	log.Printf("wrote %s", eventsPath)
	return nil
}

func makeListing(id, slot int) domain.RawEvent {
	v := venues[slot%len(venues)]
	start := fmt.Sprintf("%d:00 PM", 6+slot%4)
	end := fmt.Sprintf("%d:30 PM", 8+slot%4)
	return domain.RawEvent{
		ID:                  json.Number(fmt.Sprint(id)),
		VenueName:           v.name,
		StartTime:           start,
		EndTime:             end,
		DescriptionStripped: fmt.Sprintf("%s at %s, doors %s", v.title, v.name, start),
		Title:               v.title,
		ShareURL:            fmt.Sprintf("https://example.com/events/%d", id),
		HubPageImageURL:     fmt.Sprintf("https://example.com/images/%d.jpg", id),
	}
}

func toEvent(l domain.RawEvent) domain.Event {
	return domain.Event{
		ID:                  l.ID.String(),
		VenueName:           l.VenueName,
		StartTime:           l.StartTime,
		EndTime:             l.EndTime,
		DescriptionStripped: l.DescriptionStripped,
		Title:               l.Title,
		ShareURL:            l.ShareURL,
		HubPageImageURL:     l.HubPageImageURL,
		NumericalTime: domain.NumericalTime{
			Start: domain.ParseClockTime(l.StartTime),
			End:   domain.ParseClockTime(l.EndTime),
		},
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
