package client

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// GeoIPClient resolves the caller's approximate coordinates from its public
// IP. Any failure yields an absent location rather than an error: ambient
// location is a nicety, not a requirement.
type GeoIPClient struct {
	*BaseClient
	url    string
	logger *zap.Logger
}

func NewGeoIPClient(url string, cfg ClientConfig, logger *zap.Logger) *GeoIPClient {
	if url == "" {
		url = "http://ip-api.com/json/"
	}
	return &GeoIPClient{
		BaseClient: NewBaseClient("geoip", cfg, logger),
		url:        url,
		logger:     logger,
	}
}

// Locate returns (lat, lon, true) on success and (0, 0, false) on any
// failure.
func (c *GeoIPClient) Locate(ctx context.Context) (float64, float64, bool) {
	body, err := c.Get(ctx, c.url)
	if err != nil {
		c.logger.Debug("IP geolocation unavailable", zap.Error(err))
		return 0, 0, false
	}

	var resp struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Lat == nil || resp.Lon == nil {
		c.logger.Debug("IP geolocation response unusable", zap.Error(err))
		return 0, 0, false
	}

	return *resp.Lat, *resp.Lon, true
}
