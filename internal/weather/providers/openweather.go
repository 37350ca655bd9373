package providers

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

// DefaultOpenWeatherBaseURL hosts the OneCall endpoint.
const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org/data/2.5"

var errMissingAPIKey = errors.New("openweather api key is not configured")

// OpenWeatherProvider implements the weather.Provider interface for the
// OpenWeatherMap OneCall API.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	fetcher *Fetcher
}

func NewOpenWeatherProvider(fetcher *Fetcher, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		fetcher: fetcher,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// OneCallRequest builds the OneCall descriptor for coords.
func OneCallRequest(coords weather.Coordinates, apiKey string) Request {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	values.Set("appid", apiKey)
	values.Set("exclude", "minutely")
	values.Set("units", "metric")

	return Request{Path: "/onecall", Query: values}
}

func (p *OpenWeatherProvider) FetchWeather(ctx context.Context, coords weather.Coordinates) (weather.WeatherData, error) {
	if p.apiKey == "" {
		return weather.WeatherData{}, errMissingAPIKey
	}

	payload, err := Fetch[oneCallPayload](ctx, p.fetcher, OneCallRequest(coords, p.apiKey))
	if err != nil {
		return weather.WeatherData{}, err
	}
	return payload.toWeatherData(), nil
}

type oneCallCondition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// oneCallCurrent is the current block; temperature, humidity and wind are
// mandatory.
type oneCallCurrent struct {
	Dt        int64              `json:"dt"`
	Temp      *float64           `json:"temp" validate:"required"`
	FeelsLike float64            `json:"feels_like"`
	Pressure  int                `json:"pressure"`
	Humidity  *int               `json:"humidity" validate:"required"`
	DewPoint  float64            `json:"dew_point"`
	WindSpeed *float64           `json:"wind_speed" validate:"required"`
	Weather   []oneCallCondition `json:"weather"`
}

type oneCallHourly struct {
	Dt        int64              `json:"dt"`
	Temp      float64            `json:"temp"`
	FeelsLike float64            `json:"feels_like"`
	Pressure  int                `json:"pressure"`
	Humidity  int                `json:"humidity"`
	DewPoint  float64            `json:"dew_point"`
	WindSpeed float64            `json:"wind_speed"`
	Weather   []oneCallCondition `json:"weather"`
}

type oneCallDaily struct {
	Dt   int64 `json:"dt"`
	Temp struct {
		Day float64 `json:"day"`
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"temp"`
	Humidity  int                `json:"humidity"`
	DewPoint  float64            `json:"dew_point"`
	WindSpeed float64            `json:"wind_speed"`
	Weather   []oneCallCondition `json:"weather"`
}

type oneCallPayload struct {
	Lat      float64         `json:"lat"`
	Lon      float64         `json:"lon"`
	Timezone string          `json:"timezone"`
	Current  *oneCallCurrent `json:"current" validate:"required"`
	Hourly   []oneCallHourly `json:"hourly"`
	Daily    []oneCallDaily  `json:"daily"`
}

func (p oneCallPayload) toWeatherData() weather.WeatherData {
	c := p.Current
	data := weather.WeatherData{
		Coordinates: weather.Coordinates{Lat: p.Lat, Lon: p.Lon},
		Timezone:    p.Timezone,
		Current: weather.Conditions{
			Timestamp:   unixUTC(c.Dt),
			Temperature: *c.Temp,
			FeelsLike:   c.FeelsLike,
			Humidity:    *c.Humidity,
			WindSpeed:   *c.WindSpeed,
			DewPoint:    c.DewPoint,
			Pressure:    c.Pressure,
			Weather:     mapOneCallConditions(c.Weather),
		},
	}

	for _, h := range p.Hourly {
		data.Hourly = append(data.Hourly, weather.Conditions{
			Timestamp:   unixUTC(h.Dt),
			Temperature: h.Temp,
			FeelsLike:   h.FeelsLike,
			Humidity:    h.Humidity,
			WindSpeed:   h.WindSpeed,
			DewPoint:    h.DewPoint,
			Pressure:    h.Pressure,
			Weather:     mapOneCallConditions(h.Weather),
		})
	}

	for _, d := range p.Daily {
		data.Daily = append(data.Daily, weather.DailyConditions{
			Timestamp: unixUTC(d.Dt),
			Temperature: weather.DailyTemperature{
				Day: d.Temp.Day,
				Min: d.Temp.Min,
				Max: d.Temp.Max,
			},
			Humidity:  d.Humidity,
			WindSpeed: d.WindSpeed,
			DewPoint:  d.DewPoint,
			Weather:   mapOneCallConditions(d.Weather),
		})
	}

	return data
}

func mapOneCallConditions(items []oneCallCondition) []weather.Condition {
	out := make([]weather.Condition, 0, len(items))
	for _, it := range items {
		out = append(out, weather.Condition{
			ID:          it.ID,
			Main:        it.Main,
			Description: it.Description,
			Icon:        it.Icon,
		})
	}
	return out
}

func unixUTC(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
