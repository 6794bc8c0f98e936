package domain

import "sort"

// Aggregate rolls hourly records up to one row per date: sum of precip_mm,
// max of precip_prob, mean of temp_c and wind_kph. Output is ordered by
// ascending date and independent of input ordering. Records without a
// date_id belong to no partition and are excluded; the validator reports
// them separately. A date with zero contributing hours is never emitted.
func Aggregate(hourly []HourlyRecord) []DailyAggregate {
	type accumulator struct {
		precipSum float64
		probMax   float64
		tempSum   float64
		windSum   float64
		hours     int
	}

	groups := make(map[string]*accumulator)
	for _, rec := range hourly {
		if rec.DateID == "" {
			continue
		}
		acc, ok := groups[rec.DateID]
		if !ok {
			acc = &accumulator{probMax: rec.PrecipProb}
			groups[rec.DateID] = acc
		} else if rec.PrecipProb > acc.probMax {
			acc.probMax = rec.PrecipProb
		}
		acc.precipSum += rec.PrecipMM
		acc.tempSum += rec.TempC
		acc.windSum += rec.WindKPH
		acc.hours++
	}

	dates := make([]string, 0, len(groups))
	for date := range groups {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	daily := make([]DailyAggregate, 0, len(dates))
	for _, date := range dates {
		acc := groups[date]
		daily = append(daily, DailyAggregate{
			Date:          date,
			PrecipMMTotal: acc.precipSum,
			PrecipProbMax: acc.probMax,
			TempCMean:     acc.tempSum / float64(acc.hours),
			WindKPHMean:   acc.windSum / float64(acc.hours),
		})
	}
	return daily
}
