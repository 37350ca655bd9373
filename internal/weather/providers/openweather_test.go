package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

func TestOpenWeatherProviderRequestsOneCall(t *testing.T) {
	var got url.URL
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = *r.URL
		_, _ = w.Write([]byte(oneCallFixture))
	}))
	defer srv.Close()

	f, _ := newTestFetcher(t, srv, defaultRetry())
	p := NewOpenWeatherProvider(f, "secret")

	data, err := p.FetchWeather(context.Background(), weather.Coordinates{Lat: 51.5, Lon: -0.12})
	require.NoError(t, err)

	assert.Equal(t, "/data/2.5/onecall", got.Path)
	q := got.Query()
	assert.Equal(t, "51.5", q.Get("lat"))
	assert.Equal(t, "-0.12", q.Get("lon"))
	assert.Equal(t, "secret", q.Get("appid"))
	assert.Equal(t, "minutely", q.Get("exclude"))
	assert.Equal(t, "metric", q.Get("units"))

	assert.Equal(t, weather.Coordinates{Lat: 51.5, Lon: -0.12}, data.Coordinates)
	assert.Equal(t, "Europe/London", data.Timezone)
	assert.Equal(t, time.Unix(1684929490, 0).UTC(), data.Current.Timestamp)
	assert.Equal(t, 14.2, data.Current.Temperature)
	assert.Equal(t, 72, data.Current.Humidity)
	assert.Equal(t, 4.1, data.Current.WindSpeed)
	assert.Equal(t, 9.3, data.Current.DewPoint)

	primary, ok := data.Current.Primary()
	require.True(t, ok)
	assert.Equal(t, weather.Condition{ID: 803, Main: "Clouds", Description: "broken clouds", Icon: "04d"}, primary)

	require.Len(t, data.Hourly, 1)
	assert.Equal(t, "10d", data.Hourly[0].Weather[0].Icon)
	require.Len(t, data.Daily, 1)
	assert.Equal(t, weather.DailyTemperature{Day: 15.1, Min: 9.8, Max: 17.3}, data.Daily[0].Temperature)
}

func TestOpenWeatherProviderRequiresAPIKey(t *testing.T) {
	p := NewOpenWeatherProvider(nil, "")
	_, err := p.FetchWeather(context.Background(), weather.Coordinates{Lat: 1, Lon: 2})
	assert.ErrorIs(t, err, errMissingAPIKey)
}
