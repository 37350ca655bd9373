package weather

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Coordinates is a resolved latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite and within range.
func (c Coordinates) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%g,%g", c.Lat, c.Lon)
}

// Condition is a single weather descriptor: a machine-readable icon code
// plus a human label.
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Conditions is the current-conditions record. Hourly entries share it.
type Conditions struct {
	Timestamp   time.Time   `json:"timestamp"` // always UTC
	Temperature float64     `json:"temperatureC"`
	FeelsLike   float64     `json:"feelsLikeC"`
	Humidity    int         `json:"humidityPercent"`
	WindSpeed   float64     `json:"windSpeed"`
	DewPoint    float64     `json:"dewPointC"`
	Pressure    int         `json:"pressureHpa"`
	Weather     []Condition `json:"weather"`
}

// DailyTemperature is the day's temperature envelope.
type DailyTemperature struct {
	Day float64 `json:"day"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// DailyConditions is one entry of the daily series.
type DailyConditions struct {
	Timestamp   time.Time        `json:"timestamp"`
	Temperature DailyTemperature `json:"temperatureC"`
	Humidity    int              `json:"humidityPercent"`
	WindSpeed   float64          `json:"windSpeed"`
	DewPoint    float64          `json:"dewPointC"`
	Weather     []Condition      `json:"weather"`
}

// WeatherData is the decoded weather result for one location.
type WeatherData struct {
	Coordinates Coordinates       `json:"coordinates"`
	Timezone    string            `json:"timezone,omitempty"`
	Current     Conditions        `json:"current"`
	Hourly      []Conditions      `json:"hourly,omitempty"`
	Daily       []DailyConditions `json:"daily,omitempty"`
}

// Empty returns the placeholder shown before the first successful fetch.
func Empty() WeatherData {
	return WeatherData{
		Current: Conditions{Weather: []Condition{}},
	}
}

// IsEmpty reports whether w is still the placeholder from Empty.
func (w WeatherData) IsEmpty() bool {
	return w.Current.Timestamp.IsZero() && len(w.Current.Weather) == 0 && len(w.Hourly) == 0 && len(w.Daily) == 0
}

// Primary returns the first condition descriptor, if any.
func (c Conditions) Primary() (Condition, bool) {
	if len(c.Weather) == 0 {
		return Condition{}, false
	}
	return c.Weather[0], true
}

// Label is the description in title case, e.g. "Broken Clouds".
func (c Condition) Label() string {
	return cases.Title(language.English).String(c.Description)
}

// Clone returns a copy of w that shares no slices with it.
func (w WeatherData) Clone() WeatherData {
	out := w
	out.Current = w.Current.clone()
	if w.Hourly != nil {
		out.Hourly = make([]Conditions, len(w.Hourly))
		for i, h := range w.Hourly {
			out.Hourly[i] = h.clone()
		}
	}
	if w.Daily != nil {
		out.Daily = make([]DailyConditions, len(w.Daily))
		for i, d := range w.Daily {
			d.Weather = cloneConditions(d.Weather)
			out.Daily[i] = d
		}
	}
	return out
}

func (c Conditions) clone() Conditions {
	c.Weather = cloneConditions(c.Weather)
	return c
}

func cloneConditions(in []Condition) []Condition {
	if in == nil {
		return nil
	}
	return append(make([]Condition, 0, len(in)), in...)
}
