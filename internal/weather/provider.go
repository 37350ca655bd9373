package weather

import (
	"context"
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap OneCall, Open-Meteo).
type Provider interface {
	Name() string
	FetchWeather(ctx context.Context, coords Coordinates) (WeatherData, error)
}

// Resolver turns a free-text city name into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, city string) (Coordinates, error)
}
