package pipeline_test

import (
	"context"
	"net/http"
	"net/url"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-query-pipeline/internal/geo"
	"github.com/i474232898/weather-query-pipeline/internal/pipeline"
	"github.com/i474232898/weather-query-pipeline/internal/weather"
	"github.com/i474232898/weather-query-pipeline/internal/weather/providers"
)

const londonOneCall = `{
  "lat": 51.5, "lon": -0.12, "timezone": "Europe/London",
  "current": {"dt": 1684929490, "temp": 14.2, "humidity": 72, "wind_speed": 4.1,
    "weather": [{"id": 800, "main": "Clear", "description": "clear sky", "icon": "01d"}]}
}`

type londonGeocoder struct{}

func (londonGeocoder) Geocode(context.Context, string) ([]geo.Placemark, error) {
	return []geo.Placemark{{Name: "London", Coordinates: &weather.Coordinates{Lat: 51.5, Lon: -0.12}}}, nil
}

// upstream serves the OneCall fixture after failing the first n requests
// with 503. A negative n fails forever.
type upstream struct {
	fail      atomic.Int32
	malformed atomic.Bool
	attempts  atomic.Int32
	lastQuery atomic.Value
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.attempts.Add(1)
	u.lastQuery.Store(r.URL.Query())
	if n := u.fail.Load(); n != 0 {
		if n > 0 {
			u.fail.Add(-1)
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if u.malformed.Load() {
		_, _ = w.Write([]byte(`{"current": {"temp": "warm"`))
		return
	}
	_, _ = w.Write([]byte(londonOneCall))
}

func startPipeline(t *testing.T, up *upstream) (*pipeline.Pipeline, <-chan pipeline.Result) {
	t.Helper()
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	fetcher, err := providers.NewFetcher(providers.FetcherConfig{
		Name:    "openweathermap",
		BaseURL: srv.URL + "/data/2.5",
		Client:  srv.Client(),
		Retry:   providers.RetryConfig{MaxRetries: providers.DefaultMaxRetries, Delay: time.Millisecond},
	})
	require.NoError(t, err)

	service := weather.NewService(
		geo.NewResolver(londonGeocoder{}),
		providers.NewOpenWeatherProvider(fetcher, "key"),
	)

	results := make(chan pipeline.Result, 8)
	pipe := pipeline.New(service, nil,
		pipeline.WithDebounce(0),
		pipeline.WithListener(func(r pipeline.Result) { results <- r }),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pipe.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return pipe, results
}

func await(t *testing.T, results <-chan pipeline.Result) pipeline.Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
		return pipeline.Result{}
	}
}

func TestPipelineFetchesGeocodedCoordinates(t *testing.T) {
	up := &upstream{}
	pipe, results := startPipeline(t, up)

	require.NoError(t, pipe.Submit(context.Background(), "London"))
	require.NoError(t, await(t, results).Err)

	q, ok := up.lastQuery.Load().(url.Values)
	require.True(t, ok)
	assert.Equal(t, "51.5", q.Get("lat"))
	assert.Equal(t, "-0.12", q.Get("lon"))
	assert.Equal(t, "key", q.Get("appid"))
	assert.Equal(t, "minutely", q.Get("exclude"))
	assert.Equal(t, "metric", q.Get("units"))
}

func TestPipelineRecoversFromTransientServerErrors(t *testing.T) {
	up := &upstream{}
	up.fail.Store(3)
	pipe, results := startPipeline(t, up)

	require.NoError(t, pipe.Submit(context.Background(), "London"))
	res := await(t, results)

	require.NoError(t, res.Err)
	assert.EqualValues(t, 4, up.attempts.Load())
	assert.Equal(t, 14.2, pipe.State().Weather().Current.Temperature)
	assert.Empty(t, pipe.State().ErrorMessage())
}

func TestPipelineGivesUpAfterRetryLimit(t *testing.T) {
	up := &upstream{}
	up.fail.Store(-1)
	pipe, results := startPipeline(t, up)

	require.NoError(t, pipe.Submit(context.Background(), "London"))
	res := await(t, results)

	assert.True(t, weather.IsFetchKind(res.Err, weather.FetchServerError), "got %v", res.Err)
	assert.EqualValues(t, 11, up.attempts.Load())
	assert.True(t, pipe.State().Weather().IsEmpty())
	assert.Empty(t, pipe.State().ErrorMessage())
}

func TestPipelineDecodeFailureKeepsWeather(t *testing.T) {
	up := &upstream{}
	pipe, results := startPipeline(t, up)

	require.NoError(t, pipe.Submit(context.Background(), "London"))
	require.NoError(t, await(t, results).Err)

	up.malformed.Store(true)
	require.NoError(t, pipe.Submit(context.Background(), "Greater London"))
	res := await(t, results)

	assert.True(t, weather.IsFetchKind(res.Err, weather.FetchDecode), "got %v", res.Err)
	assert.Equal(t, "Europe/London", pipe.State().Weather().Timezone)
	assert.Empty(t, pipe.State().ErrorMessage())
}

func TestPipelineSurfacesValidationMessage(t *testing.T) {
	up := &upstream{}
	pipe, results := startPipeline(t, up)

	require.NoError(t, pipe.Submit(context.Background(), "  "))
	res := await(t, results)

	assert.True(t, weather.IsResolveKind(res.Err, weather.ResolveEmptyQuery))
	assert.Equal(t, "Please enter a city name.", pipe.State().ErrorMessage())
	assert.Zero(t, up.attempts.Load())
}
