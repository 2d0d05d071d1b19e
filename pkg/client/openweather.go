package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"weatherdash/internal/models"
)

// LocationQuery selects a place by exactly one of city name, postal code, or
// coordinate pair. Coordinates win when both a textual selector and a pair
// are present.
type LocationQuery struct {
	City string
	Zip  string
	Lat  *float64
	Lon  *float64
}

// Key returns a canonical cache key for the query.
func (q LocationQuery) Key() string {
	switch {
	case q.Lat != nil && q.Lon != nil:
		return fmt.Sprintf("%.4f,%.4f", *q.Lat, *q.Lon)
	case q.Zip != "":
		return "zip:" + q.Zip
	default:
		return "city:" + q.City
	}
}

// OpenWeatherClient talks to the OpenWeatherMap current, forecast and
// air-pollution endpoints.
type OpenWeatherClient struct {
	*BaseClient
	apiKey     string
	baseURL    string
	zipCountry string
	logger     *zap.Logger
}

func NewOpenWeatherClient(apiKey, baseURL, zipCountry string, cfg ClientConfig, logger *zap.Logger) *OpenWeatherClient {
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5"
	}
	return &OpenWeatherClient{
		BaseClient: NewBaseClient("openweather", cfg, logger),
		apiKey:     apiKey,
		baseURL:    baseURL,
		zipCountry: zipCountry,
		logger:     logger,
	}
}

func (c *OpenWeatherClient) endpoint(path string, q LocationQuery) (string, error) {
	values := url.Values{}
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")

	switch {
	case q.Lat != nil && q.Lon != nil:
		values.Set("lat", fmt.Sprintf("%f", *q.Lat))
		values.Set("lon", fmt.Sprintf("%f", *q.Lon))
	case q.Zip != "":
		values.Set("zip", fmt.Sprintf("%s,%s", q.Zip, c.zipCountry))
	case q.City != "":
		values.Set("q", q.City)
	default:
		return "", ErrMissingLocation
	}

	return fmt.Sprintf("%s/%s?%s", c.baseURL, path, values.Encode()), nil
}

type currentResponse struct {
	Name  string `json:"name"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		DtTxt string `json:"dt_txt"`
	} `json:"list"`
}

type pollutionResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components struct {
			PM25 float64 `json:"pm2_5"`
			PM10 float64 `json:"pm10"`
			NO2  float64 `json:"no2"`
			SO2  float64 `json:"so2"`
			O3   float64 `json:"o3"`
			CO   float64 `json:"co"`
		} `json:"components"`
	} `json:"list"`
}

// CurrentWeather fetches current conditions. When the accompanying forecast
// fetch succeeds, the nearest upcoming 3-hour sample is attached; that
// augmentation is best-effort and silently skipped on failure.
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, q LocationQuery) (*models.CurrentWeather, error) {
	u, err := c.endpoint("weather", q)
	if err != nil {
		return nil, err
	}

	body, err := c.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetching current weather: %w", err)
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(resp.Weather) == 0 {
		return nil, fmt.Errorf("%w: missing weather block", ErrParse)
	}

	current := &models.CurrentWeather{
		City:        resp.Name,
		Temperature: resp.Main.Temp,
		Condition:   resp.Weather[0].Description,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		Lat:         resp.Coord.Lat,
		Lon:         resp.Coord.Lon,
	}

	if samples, err := c.ForecastSamples(ctx, q); err != nil {
		c.logger.Debug("Forecast augmentation skipped", zap.Error(err))
	} else if len(samples) > 0 {
		next := samples[0]
		current.Next3hTemp = &next.Temperature
		current.Next3hCondition = next.Condition
	}

	return current, nil
}

// ForecastSamples fetches the 3-hourly forecast series in provider order.
func (c *OpenWeatherClient) ForecastSamples(ctx context.Context, q LocationQuery) ([]models.RawSample, error) {
	u, err := c.endpoint("forecast", q)
	if err != nil {
		return nil, err
	}

	body, err := c.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetching forecast: %w", err)
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	samples := make([]models.RawSample, 0, len(resp.List))
	for _, item := range resp.List {
		if len(item.Weather) == 0 {
			return nil, fmt.Errorf("%w: forecast tick missing weather block", ErrParse)
		}

		// dt_txt carries the provider's reporting timezone; fall back to the
		// unix timestamp when absent.
		ts, err := time.Parse("2006-01-02 15:04:05", item.DtTxt)
		if err != nil {
			ts = time.Unix(item.Dt, 0).UTC()
		}

		samples = append(samples, models.RawSample{
			Timestamp:   ts,
			Temperature: item.Main.Temp,
			Condition:   item.Weather[0].Description,
		})
	}

	return samples, nil
}

// PollutionSamples fetches the pollution forecast series for a coordinate
// pair.
func (c *OpenWeatherClient) PollutionSamples(ctx context.Context, lat, lon float64) ([]models.RawPollutionSample, error) {
	u, err := c.endpoint("air_pollution/forecast", LocationQuery{Lat: &lat, Lon: &lon})
	if err != nil {
		return nil, err
	}

	body, err := c.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetching pollution forecast: %w", err)
	}

	var resp pollutionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	samples := make([]models.RawPollutionSample, 0, len(resp.List))
	for _, item := range resp.List {
		samples = append(samples, models.RawPollutionSample{
			Timestamp: time.Unix(item.Dt, 0).UTC(),
			AQI:       item.Main.AQI,
			PM25:      item.Components.PM25,
			PM10:      item.Components.PM10,
			NO2:       item.Components.NO2,
			SO2:       item.Components.SO2,
			O3:        item.Components.O3,
			CO:        item.Components.CO,
		})
	}

	return samples, nil
}
