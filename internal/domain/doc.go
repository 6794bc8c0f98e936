// Package domain models hourly weather-forecast data reshaped into a star
// schema for BI consumption.
//
// # Data Source
//
// Forecasts come from the Open-Meteo forecast API
// (https://api.open-meteo.com/v1/forecast), requested with
// hourly=precipitation_probability,precipitation,temperature_2m,wind_speed_10m
// and timezone=UTC. The payload carries the request coordinates plus an
// "hourly" block of parallel arrays, one entry per forecast hour:
//
//	time                      ISO-8601 without zone, e.g. "2026-01-24T15:00"
//	precipitation_probability percent, 0-100
//	precipitation             millimetres per hour
//	temperature_2m            degrees Celsius at 2m
//	wind_speed_10m            km/h at 10m
//
// The provider is an uncontrolled external dependency, so the payload is
// parsed field-by-field rather than trusted wholesale. An hourly entry with
// an unparseable timestamp is kept as a best-effort record with a zero
// timestamp so the validator can report it; entries are never silently
// dropped.
//
// # Star Schema
//
// [Normalize] flattens the payload into [HourlyRecord] facts and derives the
// [DimDate] and [DimLocation] dimensions. [Aggregate] rolls the hourly facts
// up to one [DailyAggregate] per date. Facts reference dimensions by
// location_id and date_id; date_id is the calendar date of the UTC timestamp
// expressed in the location's IANA timezone, and day_of_week uses Monday = 0.
//
// # Validation
//
// [Validate] runs a fixed, ordered list of independent checks over the facts
// and dimensions. Every check runs even after an earlier one fails. A check
// yields zero or more [Finding] values; run status is FAIL exactly when at
// least one finding has severity ERROR. WARNING findings (short hour counts,
// stale run dates) are recorded but never fail a run. Validation is pure:
// the fetch time is an input, not read from a clock, so re-running a date
// over the same raw payload reproduces the same report.
package domain
