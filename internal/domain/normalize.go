package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// rawPayload mirrors the subset of the Open-Meteo response the pipeline
// consumes. Pointer fields distinguish absent keys from zero values.
type rawPayload struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Timezone  *string    `json:"timezone"`
	Hourly    *rawHourly `json:"hourly"`
}

type rawHourly struct {
	Time       []string  `json:"time"`
	PrecipProb []float64 `json:"precipitation_probability"`
	Precip     []float64 `json:"precipitation"`
	Temp2M     []float64 `json:"temperature_2m"`
	Wind10M    []float64 `json:"wind_speed_10m"`
}

// hourlyTimeLayouts are accepted formats for entries in hourly.time.
// Open-Meteo emits minute precision without a zone designator when asked for
// timezone=UTC; full RFC 3339 is accepted for robustness.
var hourlyTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func parsePayload(payload []byte) (*rawPayload, error) {
	var p rawPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &DataShapeError{Context: "payload", Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if p.Latitude == nil || p.Longitude == nil || p.Timezone == nil {
		return nil, &DataShapeError{Context: "payload", Reason: "missing latitude, longitude, or timezone"}
	}
	if p.Hourly == nil {
		return nil, &DataShapeError{Context: "payload", Reason: "missing hourly block"}
	}
	n := len(p.Hourly.Time)
	if n == 0 {
		return nil, &DataShapeError{Context: "hourly", Reason: "time array is missing or empty"}
	}
	for name, l := range map[string]int{
		"precipitation_probability": len(p.Hourly.PrecipProb),
		"precipitation":             len(p.Hourly.Precip),
		"temperature_2m":            len(p.Hourly.Temp2M),
		"wind_speed_10m":            len(p.Hourly.Wind10M),
	} {
		if l != n {
			return nil, &DataShapeError{
				Context: "hourly",
				Reason:  fmt.Sprintf("%s has %d entries, want %d", name, l, n),
			}
		}
	}
	return &p, nil
}

// ValidateRawShape reports whether a payload carries the minimum hourly
// fields the pipeline needs. Used by the forecast client to reject malformed
// provider responses at fetch time.
func ValidateRawShape(payload []byte) error {
	_, err := parsePayload(payload)
	return err
}

// RawHourlyCount returns the number of hourly entries in the raw payload,
// independently of normalization, for the reconciliation check.
func RawHourlyCount(payload []byte) (int, error) {
	p, err := parsePayload(payload)
	if err != nil {
		return 0, err
	}
	return len(p.Hourly.Time), nil
}

// Normalize flattens a raw forecast into hourly fact records and derives the
// date and location dimensions. Every hourly entry in the payload produces
// exactly one record: an entry whose timestamp cannot be parsed is kept with
// a zero timestamp and empty date_id so the validator can report it.
func Normalize(raw RawForecast, loc LocationSpec) ([]HourlyRecord, []DimDate, DimLocation, error) {
	p, err := parsePayload(raw.Payload)
	if err != nil {
		return nil, nil, DimLocation{}, err
	}

	zone, err := time.LoadLocation(loc.Timezone)
	if err != nil {
		return nil, nil, DimLocation{}, fmt.Errorf("load location timezone %q: %w", loc.Timezone, err)
	}

	records := make([]HourlyRecord, 0, len(p.Hourly.Time))
	for i, ts := range p.Hourly.Time {
		rec := HourlyRecord{
			PrecipProb: p.Hourly.PrecipProb[i],
			PrecipMM:   p.Hourly.Precip[i],
			TempC:      p.Hourly.Temp2M[i],
			WindKPH:    p.Hourly.Wind10M[i],
			LocationID: loc.LocationID,
		}
		if t, ok := parseHourlyTime(ts); ok {
			rec.TimestampUTC = t
			rec.DateID = FormatDate(t.In(zone))
		}
		records = append(records, rec)
	}

	return records, buildDimDates(records), buildDimLocation(loc), nil
}

func parseHourlyTime(value string) (time.Time, bool) {
	for _, layout := range hourlyTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// buildDimDates returns one row per distinct date_id among the records,
// deduplicated and sorted ascending. Records without a date_id (unparseable
// timestamps) contribute no dimension row.
func buildDimDates(records []HourlyRecord) []DimDate {
	seen := make(map[string]struct{}, 4)
	ids := make([]string, 0, 4)
	for _, rec := range records {
		if rec.DateID == "" {
			continue
		}
		if _, ok := seen[rec.DateID]; ok {
			continue
		}
		seen[rec.DateID] = struct{}{}
		ids = append(ids, rec.DateID)
	}
	sort.Strings(ids)

	dims := make([]DimDate, 0, len(ids))
	for _, id := range ids {
		// date_id is produced by FormatDate, so it always parses.
		d, _ := time.Parse(DateLayout, id)
		dims = append(dims, DimDate{
			DateID:    id,
			Date:      id,
			Year:      d.Year(),
			Month:     int(d.Month()),
			Day:       d.Day(),
			DayOfWeek: mondayIndexed(d.Weekday()),
		})
	}
	return dims
}

func buildDimLocation(loc LocationSpec) DimLocation {
	return DimLocation{
		LocationID: loc.LocationID,
		City:       loc.City,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		Timezone:   loc.Timezone,
	}
}

// mondayIndexed converts Go's Sunday=0 weekday to the Monday=0 convention
// used by the date dimension.
func mondayIndexed(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
