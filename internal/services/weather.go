package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"weatherdash/internal/history"
	"weatherdash/internal/models"
	"weatherdash/pkg/client"
)

// ErrNoAmbientLocation is returned when the caller's location cannot be
// derived from its IP.
var ErrNoAmbientLocation = errors.New("no ambient location available")

// SearchResult bundles everything one location query produces.
type SearchResult struct {
	Current      *models.CurrentWeather  `json:"current"`
	Advisories   []string                `json:"advisories"`
	Forecast     []models.DailyForecast  `json:"forecast,omitempty"`
	Pollution    []models.DailyPollution `json:"pollution,omitempty"`
	HistorySaved bool                    `json:"history_saved"`
}

// NearbyResult is the "weather near me" view.
type NearbyResult struct {
	Current    *models.CurrentWeather `json:"current"`
	Advisories []string               `json:"advisories"`
}

// HistoryRecorder is the slice of the history store the search flow needs.
type HistoryRecorder interface {
	Add(ctx context.Context, rec *history.Record) error
}

// WeatherService runs the search chain: fetch current, forecast and
// pollution, aggregate, record the search, and hand structured data to the
// API and report layers. The history store may be nil; persistence is then
// skipped with a warning, never a failure.
type WeatherService struct {
	weather *client.OpenWeatherClient
	geo     *client.GeoIPClient
	store   HistoryRecorder
	cache   *searchCache
	logger  *zap.Logger
}

func NewWeatherService(weather *client.OpenWeatherClient, geo *client.GeoIPClient, store HistoryRecorder, cacheTTL time.Duration, cacheSize int, logger *zap.Logger) *WeatherService {
	return &WeatherService{
		weather: weather,
		geo:     geo,
		store:   store,
		cache:   newSearchCache(cacheTTL, cacheSize, logger),
		logger:  logger,
	}
}

// Search resolves one location query. The current-conditions fetch is
// mandatory; forecast and pollution are best-effort and their sections are
// omitted on upstream failure. An AQI integrity violation is the one
// downstream error that does propagate.
//
// The cache only short-circuits the provider fetches: every search writes
// its own history record and reports its own persistence outcome.
func (s *WeatherService) Search(ctx context.Context, q client.LocationQuery) (*SearchResult, error) {
	cached, ok := s.cache.Get(q.Key())
	if ok {
		s.logger.Debug("Search cache hit", zap.String("key", q.Key()))
	} else {
		var err error
		cached, err = s.lookup(ctx, q)
		if err != nil {
			return nil, err
		}
		s.cache.Set(q.Key(), cached)
	}

	result := *cached
	result.HistorySaved = s.recordSearch(ctx, &result)
	return &result, nil
}

// lookup runs the three provider fetches and the aggregation for one query.
func (s *WeatherService) lookup(ctx context.Context, q client.LocationQuery) (*SearchResult, error) {
	current, err := s.weather.CurrentWeather(ctx, q)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Current:    current,
		Advisories: Advise(current.Temperature, current.Condition),
	}

	if samples, err := s.weather.ForecastSamples(ctx, q); err != nil {
		s.logger.Warn("Forecast unavailable", zap.String("key", q.Key()), zap.Error(err))
	} else {
		result.Forecast = AggregateForecast(samples)
	}

	if samples, err := s.weather.PollutionSamples(ctx, current.Lat, current.Lon); err != nil {
		s.logger.Warn("Pollution forecast unavailable", zap.String("key", q.Key()), zap.Error(err))
	} else {
		pollution, err := AggregatePollution(samples)
		if err != nil {
			return nil, err
		}
		result.Pollution = pollution
	}

	return result, nil
}

// Nearby resolves the caller's IP to coordinates and returns current
// conditions with advice. Geolocation failure degrades to
// ErrNoAmbientLocation instead of surfacing transport detail.
func (s *WeatherService) Nearby(ctx context.Context) (*NearbyResult, error) {
	lat, lon, ok := s.geo.Locate(ctx)
	if !ok {
		return nil, ErrNoAmbientLocation
	}

	current, err := s.weather.CurrentWeather(ctx, client.LocationQuery{Lat: &lat, Lon: &lon})
	if err != nil {
		return nil, err
	}

	return &NearbyResult{
		Current:    current,
		Advisories: Advise(current.Temperature, current.Condition),
	}, nil
}

// Report runs the search chain and renders the result as a PDF.
func (s *WeatherService) Report(ctx context.Context, q client.LocationQuery) (string, []byte, error) {
	result, err := s.Search(ctx, q)
	if err != nil {
		return "", nil, err
	}

	pdf, err := BuildReport(result.Current.City, result.Current, result.Forecast, result.Pollution)
	if err != nil {
		return "", nil, fmt.Errorf("building report: %w", err)
	}

	return ReportFilename(result.Current.City), pdf, nil
}

// recordSearch writes the search to history. Failures are warnings: the
// interactive flow continues even when the search was not recorded.
func (s *WeatherService) recordSearch(ctx context.Context, result *SearchResult) bool {
	if s.store == nil {
		s.logger.Warn("History store not configured; search not recorded")
		return false
	}

	airQuality := "N/A"
	if len(result.Pollution) > 0 {
		airQuality = fmt.Sprintf("AQI %d", result.Pollution[0].AQI)
	}

	rec := &history.Record{
		Location:   result.Current.City,
		Weather:    result.Current.Condition,
		AirQuality: airQuality,
	}
	if err := s.store.Add(ctx, rec); err != nil {
		s.logger.Warn("Could not record search",
			zap.String("location", rec.Location),
			zap.Error(err))
		return false
	}
	return true
}

// Close releases background resources.
func (s *WeatherService) Close() {
	s.cache.Stop()
}
