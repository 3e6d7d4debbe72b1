package pipeline

import (
	"log/slog"

	"github.com/datespot/aggregator/internal/domain"
)

// validateEvents drops listings missing required fields and converts the
// survivors into events, with start and end times parsed into HHMM numbers.
// Dates where nothing survives are dropped entirely.
func validateEvents(raw map[string][]domain.RawEvent, logger *slog.Logger) map[string][]domain.Event {
	validated := make(map[string][]domain.Event, len(raw))

	for date, listings := range raw {
		valid := make([]domain.Event, 0, len(listings))
		invalid := 0

		for _, listing := range listings {
			if missing := listing.MissingFields(); len(missing) > 0 {
				invalid++
				logger.Debug("dropping invalid listing",
					"date", date, "id", listing.ID.String(), "missing", missing)
				continue
			}
			valid = append(valid, toEvent(listing))
		}

		if len(valid) == 0 {
			logger.Warn("no valid events for date", "date", date, "invalid", invalid)
			continue
		}
		validated[date] = valid
	}
	return validated
}

func toEvent(listing domain.RawEvent) domain.Event {
	return domain.Event{
		ID:                  listing.ID.String(),
		VenueName:           listing.VenueName,
		StartTime:           listing.StartTime,
		EndTime:             listing.EndTime,
		DescriptionStripped: listing.DescriptionStripped,
		Title:               listing.Title,
		ShareURL:            listing.ShareURL,
		HubPageImageURL:     listing.HubPageImageURL,
		NumericalTime: domain.NumericalTime{
			Start: domain.ParseClockTime(listing.StartTime),
			End:   domain.ParseClockTime(listing.EndTime),
		},
	}
}
