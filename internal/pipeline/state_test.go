package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

func TestStateStartsEmpty(t *testing.T) {
	s := NewState()

	assert.True(t, s.Weather().IsEmpty())
	assert.Empty(t, s.ErrorMessage())
	assert.True(t, s.Snapshot().UpdatedAt.IsZero())
}

func TestStateApply(t *testing.T) {
	london := weather.WeatherData{Timezone: "Europe/London"}
	at := time.Date(2024, 5, 24, 12, 0, 0, 0, time.UTC)

	s := NewState()
	s.Apply(Result{Query: "London", Weather: london, DeliveredAt: at})
	assert.Equal(t, london, s.Weather())
	assert.Empty(t, s.ErrorMessage())

	s.Apply(Result{Query: "Lon", Err: &weather.ResolveError{Kind: weather.ResolveQueryTooShort}, DeliveredAt: at.Add(time.Second)})
	assert.Equal(t, london, s.Weather(), "resolve failures keep the last weather")
	assert.Equal(t, "City name must be at least 4 characters long.", s.ErrorMessage())

	s.Apply(Result{Query: "Berlin", Err: &weather.FetchError{Kind: weather.FetchServerError, StatusCode: 503}})
	assert.Equal(t, london, s.Weather())
	assert.Empty(t, s.ErrorMessage(), "fetch failures clear the message")

	s.Apply(Result{Query: "Paris", Err: errors.New("boom")})
	snap := s.Snapshot()
	assert.Equal(t, "Paris", snap.Query)
	assert.Equal(t, london, snap.Weather)
	assert.Empty(t, snap.ErrorMessage)
}

func TestStateReadsAreCopies(t *testing.T) {
	s := NewState()
	delivered := weather.WeatherData{
		Current: weather.Conditions{Weather: []weather.Condition{{Main: "Clear"}}},
		Hourly:  []weather.Conditions{{Temperature: 10, Weather: []weather.Condition{{Main: "Rain"}}}},
		Daily:   []weather.DailyConditions{{Weather: []weather.Condition{{Main: "Snow"}}}},
	}
	s.Apply(Result{Query: "Oslo", Weather: delivered})

	delivered.Current.Weather[0].Main = "changed by producer"

	snap := s.Snapshot()
	snap.Weather.Current.Weather[0].Main = "changed"
	snap.Weather.Hourly[0].Temperature = 99
	snap.Weather.Daily[0].Weather[0].Main = "changed"

	w := s.Weather()
	w.Hourly[0].Weather[0].Main = "changed"

	got := s.Weather()
	assert.Equal(t, "Clear", got.Current.Weather[0].Main)
	assert.Equal(t, 10.0, got.Hourly[0].Temperature)
	assert.Equal(t, "Rain", got.Hourly[0].Weather[0].Main)
	assert.Equal(t, "Snow", got.Daily[0].Weather[0].Main)
}
