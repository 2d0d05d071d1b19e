package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"weatherdash/internal/services"
	"weatherdash/pkg/client"
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
		{"dt": 1748811600, "dt_txt": "2025-06-02 18:00:00",
		 "main": {"temp": 11.0}, "weather": [{"description": "light rain"}]}
	]
}`

const pollutionJSON = `{
	"list": [
		{"dt": 1748800800, "main": {"aqi": 2},
		 "components": {"pm2_5": 12.5, "pm10": 20.0, "no2": 8.1, "so2": 4.2, "o3": 61.0, "co": 400.5}}
	]
}`

// newTestApp wires a fiber app around a real service talking to a canned
// upstream. The history store is absent, which the flow must tolerate.
func newTestApp(t *testing.T, geoStatus int) *fiber.App {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/weather", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "Nowhere") {
			http.Error(w, `{"cod":"404"}`, http.StatusNotFound)
			return
		}
		if strings.Contains(r.URL.RawQuery, "Outage") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(currentJSON))
	})
	mux.HandleFunc("/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(forecastJSON))
	})
	mux.HandleFunc("/air_pollution/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pollutionJSON))
	})
	mux.HandleFunc("/geo", func(w http.ResponseWriter, r *http.Request) {
		if geoStatus != http.StatusOK {
			w.WriteHeader(geoStatus)
			return
		}
		w.Write([]byte(`{"lat":18.52,"lon":73.85}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := client.ClientConfig{
		Timeout:        2 * time.Second,
		MaxRetries:     0,
		RetryDelay:     time.Millisecond,
		Multiplier:     2,
		BreakerTimeout: time.Second,
	}
	logger := zap.NewNop()

	weatherClient := client.NewOpenWeatherClient("key", srv.URL, "IN", cfg, logger)
	geoClient := client.NewGeoIPClient(srv.URL+"/geo", cfg, logger)
	service := services.NewWeatherService(weatherClient, geoClient, nil, time.Minute, 10, logger)
	t.Cleanup(service.Close)

	app := fiber.New()
	SetupRoutes(app, NewHandler(service, nil, logger), logger)
	return app
}

func TestGetWeatherRequiresQuery(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetWeatherByCity(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather?q=Pune", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result struct {
		Current struct {
			City        string  `json:"city"`
			Temperature float64 `json:"temperature"`
		} `json:"current"`
		Advisories   []string `json:"advisories"`
		Forecast     []any    `json:"forecast"`
		Pollution    []any    `json:"pollution"`
		HistorySaved bool     `json:"history_saved"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if result.Current.City != "Pune" {
		t.Errorf("city = %q", result.Current.City)
	}
	if len(result.Advisories) == 0 {
		t.Error("expected at least one advisory")
	}
	if len(result.Forecast) != 2 {
		t.Errorf("forecast rows = %d, want 2", len(result.Forecast))
	}
	if len(result.Pollution) != 1 {
		t.Errorf("pollution rows = %d, want 1", len(result.Pollution))
	}
	if result.HistorySaved {
		t.Error("history_saved should be false without a store")
	}
}

func TestGetWeatherByCoordinates(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather?q=18.52,73.85", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGetWeatherBadCoordinates(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather?q=18.52,east", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetWeatherUnknownLocation(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather?q=Nowhere", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetWeatherUpstreamFailureReadsAsNotFound(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather?q=Outage", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for an unreachable provider", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "location not found") {
		t.Errorf("body = %s, want the location-not-found message", body)
	}
}

func TestGetNearbyDegradesWithoutGeolocation(t *testing.T) {
	app := newTestApp(t, http.StatusBadGateway)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/nearby", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetNearby(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/nearby", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestGetReport(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weather/report?q=Pune", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); ct != "application/pdf" {
		t.Errorf("content-type = %q", ct)
	}
	if cd := resp.Header.Get(fiber.HeaderContentDisposition); !strings.Contains(cd, "Pune_weather_report.pdf") {
		t.Errorf("content-disposition = %q", cd)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(string(body), "%PDF") {
		t.Error("body is not a PDF")
	}
}

func TestHistoryUnavailableWithoutStore(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestUnknownEndpoint(t *testing.T) {
	app := newTestApp(t, http.StatusOK)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v2/nothing", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
