package weather

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Service turns a city name into weather data: geocode first, then fetch.
type Service struct {
	resolver Resolver
	provider Provider
	tracer   trace.Tracer
}

// NewService creates a new Service.
func NewService(resolver Resolver, provider Provider) *Service {
	return &Service{
		resolver: resolver,
		provider: provider,
		tracer:   otel.Tracer("weather-query-pipeline/weather"),
	}
}

// FetchWeather resolves city and fetches weather for the result. A resolve
// failure is returned as is and the provider is never called.
func (s *Service) FetchWeather(ctx context.Context, city string) (WeatherData, error) {
	ctx, span := s.tracer.Start(ctx, "weather.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("city", city))

	if s.provider == nil {
		return WeatherData{}, fmt.Errorf("no weather provider configured")
	}

	coords, err := s.resolver.Resolve(ctx, city)
	if err != nil {
		span.RecordError(err)
		return WeatherData{}, err
	}
	span.SetAttributes(attribute.Float64("lat", coords.Lat), attribute.Float64("lon", coords.Lon))

	log.Debugf("weather: fetching %s for %q at %s", s.provider.Name(), city, coords)
	data, err := s.provider.FetchWeather(ctx, coords)
	if err != nil {
		span.RecordError(err)
		return WeatherData{}, fmt.Errorf("provider %s: %w", s.provider.Name(), err)
	}
	return data, nil
}
