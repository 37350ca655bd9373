package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/i474232898/weather-query-pipeline/internal/pipeline"
	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

var validate = validator.New()

// QueryPipeline is the part of *pipeline.Pipeline the API drives.
type QueryPipeline interface {
	Submit(ctx context.Context, query string) error
	Phase() pipeline.Phase
	Snapshot() pipeline.Snapshot
}

// WeatherLookup performs a single, undebounced lookup. *weather.Service
// implements it.
type WeatherLookup interface {
	FetchWeather(ctx context.Context, city string) (weather.WeatherData, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, pipe QueryPipeline, lookup WeatherLookup) {
	v1 := app.Group("/api/v1")

	v1.Post("/query", func(c *fiber.Ctx) error {
		var req queryRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := pipe.Submit(c.UserContext(), *req.City); err != nil {
			log.Warnf("api: submitting query %q: %v", *req.City, err)
			return fiber.NewError(fiber.StatusServiceUnavailable, "query pipeline is not accepting input")
		}

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"accepted": true,
			"city":     *req.City,
		})
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(stateResponse{
			Phase:    pipe.Phase().String(),
			Snapshot: pipe.Snapshot(),
		})
	})

	v1.Get("/weather/lookup", func(c *fiber.Ctx) error {
		q := locationQuery{City: c.Query("city")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		data, err := lookup.FetchWeather(c.UserContext(), q.City)
		if err != nil {
			var re *weather.ResolveError
			if errors.As(err, &re) {
				return fiber.NewError(fiber.StatusBadRequest, re.Message())
			}
			var fe *weather.FetchError
			if errors.As(err, &fe) {
				log.Errorf("api: lookup for %q failed: %v", q.City, err)
				return fiber.NewError(fiber.StatusBadGateway, "failed to fetch weather data")
			}
			log.Errorf("api: lookup for %q failed: %v", q.City, err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}

		return c.JSON(fiber.Map{
			"city":    q.City,
			"weather": data,
		})
	})
}

// queryRequest is the body of POST /query. City may be empty; the pipeline
// reports that to the user, so only its presence is required.
type queryRequest struct {
	City *string `json:"city" validate:"required"`
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	City string `validate:"required"`
}

type stateResponse struct {
	Phase string `json:"phase"`
	pipeline.Snapshot
}
