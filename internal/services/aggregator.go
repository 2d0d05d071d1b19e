package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"weatherdash/internal/models"
)

// AggregateForecast reduces 3-hourly samples to one row per calendar date,
// ordered by ascending date. Temperature is the arithmetic mean; the
// condition is the mode of the day's condition strings, with frequency ties
// broken by first occurrence in input order.
func AggregateForecast(samples []models.RawSample) []models.DailyForecast {
	type bucket struct {
		tempSum float64
		count   int
		// condition -> frequency, plus the input position of each
		// condition's first appearance for the tie-break
		freq  map[string]int
		first map[string]int
	}

	buckets := make(map[time.Time]*bucket)
	order := 0

	for _, s := range samples {
		date := dateOf(s.Timestamp)
		b, ok := buckets[date]
		if !ok {
			b = &bucket{freq: make(map[string]int), first: make(map[string]int)}
			buckets[date] = b
		}

		b.tempSum += s.Temperature
		b.count++
		if _, seen := b.first[s.Condition]; !seen {
			b.first[s.Condition] = order
		}
		b.freq[s.Condition]++
		order++
	}

	days := make([]models.DailyForecast, 0, len(buckets))
	for date, b := range buckets {
		days = append(days, models.DailyForecast{
			Date:        date,
			Temperature: b.tempSum / float64(b.count),
			Condition:   dominantCondition(b.freq, b.first),
		})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

// AggregatePollution reduces pollution ticks to one row per calendar date.
// Pollutant concentrations are averaged; the AQI class is the rounded mean of
// the day's classes. A rounded class outside 1-5 is surfaced as an
// ErrIntegrity instead of being clamped away.
func AggregatePollution(samples []models.RawPollutionSample) ([]models.DailyPollution, error) {
	type bucket struct {
		aqi, pm25, pm10, no2, so2, o3, co float64
		count                             int
	}

	buckets := make(map[time.Time]*bucket)
	for _, s := range samples {
		date := dateOf(s.Timestamp)
		b, ok := buckets[date]
		if !ok {
			b = &bucket{}
			buckets[date] = b
		}
		b.aqi += float64(s.AQI)
		b.pm25 += s.PM25
		b.pm10 += s.PM10
		b.no2 += s.NO2
		b.so2 += s.SO2
		b.o3 += s.O3
		b.co += s.CO
		b.count++
	}

	days := make([]models.DailyPollution, 0, len(buckets))
	for date, b := range buckets {
		n := float64(b.count)
		aqi := int(math.Round(b.aqi / n))

		label, err := models.AQILabel(aqi)
		if err != nil {
			return nil, fmt.Errorf("aggregating pollution for %s: %w", date.Format("2006-01-02"), err)
		}

		days = append(days, models.DailyPollution{
			Date:     date,
			AQI:      aqi,
			AQILabel: label,
			PM25:     b.pm25 / n,
			PM10:     b.pm10 / n,
			NO2:      b.no2 / n,
			SO2:      b.so2 / n,
			O3:       b.o3 / n,
			CO:       b.co / n,
		})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}

// dateOf truncates a timestamp to its calendar date, keeping the provider's
// reporting timezone as parsed. No conversion is performed.
func dateOf(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

func dominantCondition(freq, first map[string]int) string {
	var best string
	bestCount := -1
	for cond, count := range freq {
		if count > bestCount || (count == bestCount && first[cond] < first[best]) {
			best = cond
			bestCount = count
		}
	}
	return best
}
