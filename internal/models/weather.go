package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrIntegrity marks data that violates a documented invariant, such as an
// AQI class outside the provider's 1-5 range. Callers are expected to surface
// it rather than coerce the value.
var ErrIntegrity = errors.New("data integrity violation")

// CurrentWeather is the normalized view of one current-conditions fetch.
type CurrentWeather struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature"`
	Condition   string  `json:"condition"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`

	// Next3hTemp and Next3hCondition come from the nearest upcoming forecast
	// sample. They are filled best-effort and may be absent.
	Next3hTemp      *float64 `json:"next_3h_temp,omitempty"`
	Next3hCondition string   `json:"next_3h_condition,omitempty"`
}

// RawSample is one 3-hourly forecast tick as delivered by the provider.
type RawSample struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Condition   string    `json:"condition"`
}

// RawPollutionSample is one pollution-forecast tick.
type RawPollutionSample struct {
	Timestamp time.Time `json:"timestamp"`
	AQI       int       `json:"aqi"`
	PM25      float64   `json:"pm2_5"`
	PM10      float64   `json:"pm10"`
	NO2       float64   `json:"no2"`
	SO2       float64   `json:"so2"`
	O3        float64   `json:"o3"`
	CO        float64   `json:"co"`
}

// DailyForecast is one reduced forecast row: mean temperature and the
// dominant condition across the day's samples.
type DailyForecast struct {
	Date        time.Time `json:"date"`
	Temperature float64   `json:"temperature"`
	Condition   string    `json:"condition"`
}

// DailyPollution is one reduced pollution row. AQILabel is always derived
// from AQI via the AQILabel function; the two are never set independently.
type DailyPollution struct {
	Date     time.Time `json:"date"`
	AQI      int       `json:"aqi"`
	AQILabel string    `json:"aqi_label"`
	PM25     float64   `json:"pm2_5"`
	PM10     float64   `json:"pm10"`
	NO2      float64   `json:"no2"`
	SO2      float64   `json:"so2"`
	O3       float64   `json:"o3"`
	CO       float64   `json:"co"`
}

var aqiLabels = map[int]string{
	1: "Good",
	2: "Fair",
	3: "Moderate",
	4: "Poor",
	5: "Very Poor",
}

// AQILabel maps an AQI class to its severity label. A class outside 1-5 is
// an ErrIntegrity, never a silent default.
func AQILabel(aqi int) (string, error) {
	label, ok := aqiLabels[aqi]
	if !ok {
		return "", fmt.Errorf("%w: AQI class %d outside 1-5", ErrIntegrity, aqi)
	}
	return label, nil
}
