package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"weatherdash/internal/history"
	"weatherdash/internal/models"
	"weatherdash/internal/services"
	"weatherdash/pkg/client"
)

var validate = validator.New()

type Handler struct {
	service *services.WeatherService
	store   *history.Store
	logger  *zap.Logger
}

func NewHandler(service *services.WeatherService, store *history.Store, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		store:   store,
		logger:  logger,
	}
}

// parseLocation turns the free-form q parameter into a location selector:
// "lat,lon" when it splits into two floats, a postal code when all digits,
// a city name otherwise.
func parseLocation(raw string) (client.LocationQuery, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return client.LocationQuery{}, client.ErrMissingLocation
	}

	if strings.Contains(raw, ",") {
		parts := strings.SplitN(raw, ",", 2)
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if latErr != nil || lonErr != nil {
			return client.LocationQuery{}, errors.New("invalid latitude/longitude format, use: lat,lon")
		}
		return client.LocationQuery{Lat: &lat, Lon: &lon}, nil
	}

	if isDigits(raw) {
		return client.LocationQuery{Zip: raw}, nil
	}

	return client.LocationQuery{City: raw}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// GetWeather handles GET /api/v1/weather
func (h *Handler) GetWeather(c *fiber.Ctx) error {
	q, err := parseLocation(c.Query("q"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	h.logger.Info("Searching weather", zap.String("query", q.Key()))

	result, err := h.service.Search(c.Context(), q)
	if err != nil {
		return h.searchError(c, q, err)
	}
	return c.JSON(result)
}

// GetNearby handles GET /api/v1/weather/nearby
func (h *Handler) GetNearby(c *fiber.Ctx) error {
	result, err := h.service.Nearby(c.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoAmbientLocation) {
			return fiber.NewError(fiber.StatusNotFound, services.ErrNoAmbientLocation.Error())
		}
		return h.searchError(c, client.LocationQuery{}, err)
	}
	return c.JSON(result)
}

// GetReport handles GET /api/v1/weather/report
func (h *Handler) GetReport(c *fiber.Ctx) error {
	q, err := parseLocation(c.Query("q"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	filename, pdf, err := h.service.Report(c.Context(), q)
	if err != nil {
		return h.searchError(c, q, err)
	}

	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdf)
}

func (h *Handler) searchError(c *fiber.Ctx, q client.LocationQuery, err error) error {
	switch {
	case errors.Is(err, client.ErrMissingLocation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, client.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "location not found")
	case errors.Is(err, models.ErrIntegrity):
		h.logger.Error("Integrity violation in upstream data",
			zap.String("query", q.Key()),
			zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	default:
		// Transport-level and parse failures read the same as a missing
		// location to the caller; the detail goes to the log.
		h.logger.Warn("Weather lookup failed",
			zap.String("query", q.Key()),
			zap.Error(err))
		return fiber.NewError(fiber.StatusNotFound, "location not found")
	}
}

type historyPayload struct {
	Location   string `json:"location" validate:"required"`
	Weather    string `json:"weather"`
	AirQuality string `json:"air_quality"`
	RecordTime string `json:"record_time" validate:"omitempty,datetime=15:04:05"`
	Date       string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ListHistory handles GET /api/v1/history
func (h *Handler) ListHistory(c *fiber.Ctx) error {
	if h.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "history store unavailable")
	}

	var filter history.Filter
	filter.Location = c.Query("location")

	if from := c.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid from date, use YYYY-MM-DD")
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid to date, use YYYY-MM-DD")
		}
		filter.To = &t
	}

	records, err := h.store.List(c.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list history", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to list history")
	}
	return c.JSON(fiber.Map{"records": records})
}

// AddHistory handles POST /api/v1/history
func (h *Handler) AddHistory(c *fiber.Ctx) error {
	if h.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "history store unavailable")
	}

	var payload historyPayload
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	rec := &history.Record{
		Location:   payload.Location,
		Weather:    payload.Weather,
		AirQuality: payload.AirQuality,
		RecordTime: payload.RecordTime,
	}
	if payload.Date != "" {
		date, _ := time.Parse("2006-01-02", payload.Date)
		rec.Date = date
	}

	if err := h.store.Add(c.Context(), rec); err != nil {
		h.logger.Error("Failed to add history record", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to add record")
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// UpdateHistory handles PUT /api/v1/history/:id
func (h *Handler) UpdateHistory(c *fiber.Ctx) error {
	if h.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "history store unavailable")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid record id")
	}

	var payload struct {
		Location   *string `json:"location"`
		Weather    *string `json:"weather"`
		AirQuality *string `json:"air_quality"`
		RecordTime *string `json:"record_time"`
		Date       *string `json:"date"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	update := history.Update{
		Location:   payload.Location,
		Weather:    payload.Weather,
		AirQuality: payload.AirQuality,
		RecordTime: payload.RecordTime,
	}
	if payload.Date != nil {
		date, err := time.Parse("2006-01-02", *payload.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid date, use YYYY-MM-DD")
		}
		update.Date = &date
	}

	if err := h.store.UpdateRecord(c.Context(), uint(id), update); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "record not found")
		}
		h.logger.Error("Failed to update history record", zap.Uint64("id", id), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to update record")
	}
	return c.JSON(fiber.Map{"updated": id})
}

// DeleteHistory handles DELETE /api/v1/history/:id
func (h *Handler) DeleteHistory(c *fiber.Ctx) error {
	if h.store == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "history store unavailable")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid record id")
	}

	if err := h.store.Delete(c.Context(), uint(id)); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "record not found")
		}
		h.logger.Error("Failed to delete history record", zap.Uint64("id", id), zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "failed to delete record")
	}
	return c.JSON(fiber.Map{"deleted": id})
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":        "healthy",
		"timestamp":     time.Now(),
		"history_store": h.store != nil,
	})
}
