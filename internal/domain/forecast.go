package domain

import "time"

// DateLayout is the calendar-date format used for run dates and date_id keys.
const DateLayout = "2006-01-02"

// TimestampLayout is the UTC timestamp format written to the fact tables.
const TimestampLayout = "2006-01-02T15:04:05Z"

// LocationSpec identifies the single location a run is scoped to.
// Static configuration, shared read-only by all stages.
type LocationSpec struct {
	LocationID string  `json:"location_id"`
	City       string  `json:"city"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Timezone   string  `json:"timezone"`
}

// RawForecast is the provider payload exactly as fetched, tagged with the
// run date and fetch timestamp. Immutable once fetched; persisted verbatim.
type RawForecast struct {
	RunDate   time.Time
	FetchedAt time.Time
	Payload   []byte
}

// HourlyRecord is one row of the hourly fact table.
type HourlyRecord struct {
	TimestampUTC time.Time
	PrecipProb   float64
	PrecipMM     float64
	TempC        float64
	WindKPH      float64
	LocationID   string
	DateID       string
}

// DailyAggregate is one row of the daily fact table: the hourly records of
// one date rolled up to sum/max/mean statistics.
type DailyAggregate struct {
	Date          string
	PrecipMMTotal float64
	PrecipProbMax float64
	TempCMean     float64
	WindKPHMean   float64
}

// DimDate is one row of the date dimension. DayOfWeek is Monday = 0.
type DimDate struct {
	DateID    string
	Date      string
	Year      int
	Month     int
	Day       int
	DayOfWeek int
}

// DimLocation is one row of the location dimension.
type DimLocation struct {
	LocationID string
	City       string
	Latitude   float64
	Longitude  float64
	Timezone   string
}

// ParseRunDate parses a YYYY-MM-DD run date into a UTC-midnight time.
func ParseRunDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// FormatDate renders a time as the YYYY-MM-DD key used across artifacts.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
