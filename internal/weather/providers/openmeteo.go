package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

// DefaultOpenMeteoBaseURL hosts the Open-Meteo forecast endpoint.
const DefaultOpenMeteoBaseURL = "https://api.open-meteo.com/v1"

const (
	openMeteoCurrentVars = "temperature_2m,apparent_temperature,relative_humidity_2m,dew_point_2m,wind_speed_10m,pressure_msl,weather_code,is_day"
	openMeteoHourlyVars  = "temperature_2m,apparent_temperature,relative_humidity_2m,dew_point_2m,wind_speed_10m,pressure_msl,weather_code,is_day"
	openMeteoDailyVars   = "weather_code,temperature_2m_max,temperature_2m_min,relative_humidity_2m_mean,dew_point_2m_mean,wind_speed_10m_max"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key.
type OpenMeteoProvider struct {
	name    string
	fetcher *Fetcher
}

func NewOpenMeteoProvider(fetcher *Fetcher) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		fetcher: fetcher,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func openMeteoRequest(coords weather.Coordinates) Request {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	values.Set("current", openMeteoCurrentVars)
	values.Set("hourly", openMeteoHourlyVars)
	values.Set("daily", openMeteoDailyVars)
	values.Set("timeformat", "unixtime")
	values.Set("timezone", "auto")
	values.Set("wind_speed_unit", "ms")

	return Request{Path: "/forecast", Query: values}
}

func (p *OpenMeteoProvider) FetchWeather(ctx context.Context, coords weather.Coordinates) (weather.WeatherData, error) {
	payload, err := Fetch[openMeteoPayload](ctx, p.fetcher, openMeteoRequest(coords))
	if err != nil {
		return weather.WeatherData{}, err
	}
	return payload.toWeatherData()
}

type openMeteoCurrent struct {
	Time        int64    `json:"time"`
	Temperature *float64 `json:"temperature_2m" validate:"required"`
	Apparent    float64  `json:"apparent_temperature"`
	Humidity    *float64 `json:"relative_humidity_2m" validate:"required"`
	DewPoint    float64  `json:"dew_point_2m"`
	WindSpeed   *float64 `json:"wind_speed_10m" validate:"required"`
	Pressure    float64  `json:"pressure_msl"`
	WeatherCode int      `json:"weather_code"`
	IsDay       int      `json:"is_day"`
}

// Series are column-oriented: one slice per variable, aligned on Time.
type openMeteoHourly struct {
	Time        []int64   `json:"time"`
	Temperature []float64 `json:"temperature_2m"`
	Apparent    []float64 `json:"apparent_temperature"`
	Humidity    []float64 `json:"relative_humidity_2m"`
	DewPoint    []float64 `json:"dew_point_2m"`
	WindSpeed   []float64 `json:"wind_speed_10m"`
	Pressure    []float64 `json:"pressure_msl"`
	WeatherCode []int     `json:"weather_code"`
	IsDay       []int     `json:"is_day"`
}

type openMeteoDaily struct {
	Time        []int64   `json:"time"`
	WeatherCode []int     `json:"weather_code"`
	TempMax     []float64 `json:"temperature_2m_max"`
	TempMin     []float64 `json:"temperature_2m_min"`
	Humidity    []float64 `json:"relative_humidity_2m_mean"`
	DewPoint    []float64 `json:"dew_point_2m_mean"`
	WindSpeed   []float64 `json:"wind_speed_10m_max"`
}

type openMeteoPayload struct {
	Latitude  float64           `json:"latitude"`
	Longitude float64           `json:"longitude"`
	Timezone  string            `json:"timezone"`
	Current   *openMeteoCurrent `json:"current" validate:"required"`
	Hourly    openMeteoHourly   `json:"hourly"`
	Daily     openMeteoDaily    `json:"daily"`
}

func (p openMeteoPayload) toWeatherData() (weather.WeatherData, error) {
	c := p.Current
	data := weather.WeatherData{
		Coordinates: weather.Coordinates{Lat: p.Latitude, Lon: p.Longitude},
		Timezone:    p.Timezone,
		Current: weather.Conditions{
			Timestamp:   unixUTC(c.Time),
			Temperature: *c.Temperature,
			FeelsLike:   c.Apparent,
			Humidity:    int(*c.Humidity + 0.5),
			WindSpeed:   *c.WindSpeed,
			DewPoint:    c.DewPoint,
			Pressure:    int(c.Pressure + 0.5),
			Weather:     []weather.Condition{mapOpenMeteoCondition(c.WeatherCode, c.IsDay != 0)},
		},
	}

	h := p.Hourly
	if err := sameLength(len(h.Time), len(h.Temperature), len(h.Apparent), len(h.Humidity), len(h.DewPoint), len(h.WindSpeed), len(h.Pressure), len(h.WeatherCode), len(h.IsDay)); err != nil {
		return weather.WeatherData{}, &weather.FetchError{Kind: weather.FetchDecode, Err: fmt.Errorf("hourly series: %w", err)}
	}
	for i := range h.Time {
		data.Hourly = append(data.Hourly, weather.Conditions{
			Timestamp:   unixUTC(h.Time[i]),
			Temperature: h.Temperature[i],
			FeelsLike:   h.Apparent[i],
			Humidity:    int(h.Humidity[i] + 0.5),
			WindSpeed:   h.WindSpeed[i],
			DewPoint:    h.DewPoint[i],
			Pressure:    int(h.Pressure[i] + 0.5),
			Weather:     []weather.Condition{mapOpenMeteoCondition(h.WeatherCode[i], h.IsDay[i] != 0)},
		})
	}

	d := p.Daily
	if err := sameLength(len(d.Time), len(d.WeatherCode), len(d.TempMax), len(d.TempMin), len(d.Humidity), len(d.DewPoint), len(d.WindSpeed)); err != nil {
		return weather.WeatherData{}, &weather.FetchError{Kind: weather.FetchDecode, Err: fmt.Errorf("daily series: %w", err)}
	}
	for i := range d.Time {
		data.Daily = append(data.Daily, weather.DailyConditions{
			Timestamp: unixUTC(d.Time[i]),
			Temperature: weather.DailyTemperature{
				Day: (d.TempMax[i] + d.TempMin[i]) / 2,
				Min: d.TempMin[i],
				Max: d.TempMax[i],
			},
			Humidity:  int(d.Humidity[i] + 0.5),
			WindSpeed: d.WindSpeed[i],
			DewPoint:  d.DewPoint[i],
			Weather:   []weather.Condition{mapOpenMeteoCondition(d.WeatherCode[i], true)},
		})
	}

	return data, nil
}

func sameLength(n int, others ...int) error {
	for _, m := range others {
		if m != n {
			return fmt.Errorf("column length %d does not match %d timestamps", m, n)
		}
	}
	return nil
}

// mapOpenMeteoCondition translates a WMO weather code into a descriptor
// using OpenWeatherMap icon codes, so both providers render the same way.
func mapOpenMeteoCondition(code int, isDay bool) weather.Condition {
	var main, icon string
	switch {
	case code == 0:
		main, icon = "Clear", "01"
	case code == 1 || code == 2:
		main, icon = "Clouds", "02"
	case code == 3:
		main, icon = "Clouds", "04"
	case code == 45 || code == 48:
		main, icon = "Fog", "50"
	case code >= 51 && code <= 57:
		main, icon = "Drizzle", "09"
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		main, icon = "Rain", "10"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		main, icon = "Snow", "13"
	case code >= 95:
		main, icon = "Thunderstorm", "11"
	default:
		return weather.Condition{ID: code, Main: "Unknown", Description: "unknown"}
	}

	suffix := "n"
	if isDay {
		suffix = "d"
	}
	return weather.Condition{
		ID:          code,
		Main:        main,
		Description: strings.ToLower(main),
		Icon:        icon + suffix,
	}
}
