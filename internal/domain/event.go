package domain

import "encoding/json"

// Coordinates is a WGS-84 latitude/longitude pair. The feed uses "lng"
// rather than "lon", and the published schema keeps that spelling.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NumericalTime carries event start/end times as HHMM integers (930, 2130)
// for client-side sorting. Nil means the source string was unparsable.
type NumericalTime struct {
	Start *int `json:"start"`
	End   *int `json:"end"`
}

// Event is the validated, enriched representation of a single listing.
type Event struct {
	ID                  string        `json:"id"`
	VenueName           string        `json:"venue_name"`
	StartTime           string        `json:"start_time"`
	EndTime             string        `json:"end_time"`
	DescriptionStripped string        `json:"description_stripped"`
	Title               string        `json:"title"`
	ShareURL            string        `json:"share_url"`
	HubPageImageURL     string        `json:"hub_page_image_url"`
	NumericalTime       NumericalTime `json:"numerical_time"`

	// Enrichment fields. Nil coordinates mean geocoding failed or was
	// skipped; an empty category means classification never succeeded.
	LocationCoordinates *Coordinates `json:"location_coordinates"`
	EventCategory       *string      `json:"event_category"`
}

// WeatherReport is the per-date weather summary attached to the schema.
// Err is set instead of the data fields when the fetch failed.
type WeatherReport struct {
	TempMax    *float64 `json:"tempmax,omitempty"`
	TempMin    *float64 `json:"tempmin,omitempty"`
	Conditions string   `json:"conditions,omitempty"`
	Sunset     *int     `json:"sunset,omitempty"`
	Err        string   `json:"error,omitempty"`
}

// Schema is the merged output published downstream: events grouped by date
// plus a weather report per date. Date keys are YYYY-MM-DD strings.
type Schema struct {
	WeatherReportByDate map[string]*WeatherReport `json:"weather_report_by_date"`
	ResultsByDate       map[string][]Event        `json:"results_by_date"`
}

// RawEvent is a listing as the feed delivers it, before validation. The
// feed sends ids as numbers, hence json.Number.
type RawEvent struct {
	ID                  json.Number `json:"id"`
	VenueName           string      `json:"venue_name"`
	StartTime           string      `json:"start_time"`
	EndTime             string      `json:"end_time"`
	DescriptionStripped string      `json:"description_stripped"`
	Title               string      `json:"title"`
	ShareURL            string      `json:"share_url"`
	HubPageImageURL     string      `json:"hub_page_image_url"`
}

// MissingFields names the required fields this listing lacks. An event with
// any missing field is rejected by validation.
func (r RawEvent) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"id", r.ID.String()},
		{"venue_name", r.VenueName},
		{"start_time", r.StartTime},
		{"end_time", r.EndTime},
		{"description_stripped", r.DescriptionStripped},
		{"title", r.Title},
		{"share_url", r.ShareURL},
		{"hub_page_image_url", r.HubPageImageURL},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
