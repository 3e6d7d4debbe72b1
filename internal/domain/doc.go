// Package domain models Toronto event listings sourced from the BlogTO
// events API.
//
// # Data Source
//
// The upstream feed returns, per calendar date, a list of event objects.
// Only a fixed subset of fields is carried through the pipeline (see
// [RawEvent.MissingFields]); everything else is discarded during validation. Event
// ids arrive as numbers or strings depending on the feed version and are
// always coerced to strings.
//
// # Time Conventions
//
// Feed times are 12-hour strings like "9:30 PM" or "9 PM". They are kept
// verbatim and additionally converted to a numeric HHMM form (2130, 2100)
// for client-side sorting; see [ParseClockTime]. Sunset times from the
// weather provider arrive as "HH:MM:SS" and get the same numeric treatment
// via [SunsetToNumber].
//
// # Categories
//
// Events are classified into exactly one of [AllowedCategories] by an
// external AI model. The category set is editorial and revised far more
// often than venue coordinates, which is why the categorization cache TTL
// is much shorter than the geocoding one.
package domain
