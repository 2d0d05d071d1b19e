package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

const currentJSON = `{
	"name": "Pune",
	"coord": {"lat": 18.52, "lon": 73.85},
	"main": {"temp": 27.4, "humidity": 64},
	"wind": {"speed": 3.1},
	"weather": [{"main": "Clouds", "description": "scattered clouds"}]
}`

const forecastJSON = `{
	"list": [
		{"dt": 1748800800, "dt_txt": "2025-06-01 18:00:00",
		 "main": {"temp": 25.0}, "weather": [{"description": "clear sky"}]},
		{"dt": 1748811600, "dt_txt": "2025-06-01 21:00:00",
		 "main": {"temp": 23.0}, "weather": [{"description": "clear sky"}]}
	]
}`

const pollutionJSON = `{
	"list": [
		{"dt": 1748800800, "main": {"aqi": 3},
		 "components": {"pm2_5": 31.5, "pm10": 52.0, "no2": 8.1, "so2": 4.2, "o3": 61.0, "co": 400.5}}
	]
}`

func testConfig() ClientConfig {
	return ClientConfig{
		Timeout:        2 * time.Second,
		MaxRetries:     0,
		RetryDelay:     time.Millisecond,
		Multiplier:     2,
		BreakerTimeout: time.Second,
	}
}

func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(currentJSON))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(forecastJSON))
	})
	mux.HandleFunc("/air_pollution/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pollutionJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCurrentWeatherWithAugmentation(t *testing.T) {
	srv := upstream(t)
	c := NewOpenWeatherClient("key", srv.URL, "IN", testConfig(), zap.NewNop())

	current, err := c.CurrentWeather(context.Background(), LocationQuery{City: "Pune"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if current.City != "Pune" || current.Temperature != 27.4 {
		t.Errorf("current = %+v", current)
	}
	if current.Condition != "scattered clouds" {
		t.Errorf("condition = %q", current.Condition)
	}
	if current.Lat != 18.52 || current.Lon != 73.85 {
		t.Errorf("coords = %v, %v", current.Lat, current.Lon)
	}
	if current.Next3hTemp == nil || *current.Next3hTemp != 25.0 {
		t.Errorf("next 3h temp = %v, want 25.0", current.Next3hTemp)
	}
	if current.Next3hCondition != "clear sky" {
		t.Errorf("next 3h condition = %q", current.Next3hCondition)
	}
}

func TestCurrentWeatherAugmentationIsBestEffort(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(currentJSON))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewOpenWeatherClient("key", srv.URL, "IN", testConfig(), zap.NewNop())
	current, err := c.CurrentWeather(context.Background(), LocationQuery{City: "Pune"})
	if err != nil {
		t.Fatalf("forecast failure must not fail the current fetch: %v", err)
	}
	if current.Next3hTemp != nil || current.Next3hCondition != "" {
		t.Errorf("augmentation should be absent, got %+v", current)
	}
}

func TestMissingSelector(t *testing.T) {
	srv := upstream(t)
	c := NewOpenWeatherClient("key", srv.URL, "IN", testConfig(), zap.NewNop())

	_, err := c.CurrentWeather(context.Background(), LocationQuery{})
	if !errors.Is(err, ErrMissingLocation) {
		t.Fatalf("error = %v, want ErrMissingLocation", err)
	}
}

func TestNotFoundOnUpstream404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":"404"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("key", srv.URL, "IN", testConfig(), zap.NewNop())
	_, err := c.CurrentWeather(context.Background(), LocationQuery{City: "Nowhere"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestForecastSamplesOrderAndParsing(t *testing.T) {
	srv := upstream(t)
	c := NewOpenWeatherClient("key", srv.URL, "IN", testConfig(), zap.NewNop())

	samples, err := c.ForecastSamples(context.Background(), LocationQuery{Zip: "411001"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Timestamp.Hour() != 18 {
		t.Errorf("first sample hour = %d, want 18 from dt_txt", samples[0].Timestamp.Hour())
	}
	if !samples[0].Timestamp.Before(samples[1].Timestamp) {
		t.Error("samples not in provider order")
	}
}

func TestForecastSamplesParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"list": [{"dt": 1, "main": {"temp": 1}, "weather": []}]}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("key", srv.URL, "IN", testConfig(), zap.NewNop())
	_, err := c.ForecastSamples(context.Background(), LocationQuery{City: "Pune"})
	if !errors.Is(err, ErrParse) {
		t.Fatalf("error = %v, want ErrParse", err)
	}
}

func TestPollutionSamples(t *testing.T) {
	srv := upstream(t)
	c := NewOpenWeatherClient("key", srv.URL, "IN", testConfig(), zap.NewNop())

	samples, err := c.PollutionSamples(context.Background(), 18.52, 73.85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	s := samples[0]
	if s.AQI != 3 || s.PM25 != 31.5 || s.CO != 400.5 {
		t.Errorf("sample = %+v", s)
	}
}

func TestLocationQueryPrefersCoordinates(t *testing.T) {
	lat, lon := 18.52, 73.85
	q := LocationQuery{City: "Pune", Zip: "411001", Lat: &lat, Lon: &lon}
	if q.Key() != "18.5200,73.8500" {
		t.Errorf("Key = %q, coordinates should win", q.Key())
	}
}
