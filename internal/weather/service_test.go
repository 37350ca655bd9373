package weather

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	coords Coordinates
	err    error
	calls  []string
}

func (r *stubResolver) Resolve(_ context.Context, city string) (Coordinates, error) {
	r.calls = append(r.calls, city)
	return r.coords, r.err
}

type stubProvider struct {
	data  WeatherData
	err   error
	calls []Coordinates
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) FetchWeather(_ context.Context, coords Coordinates) (WeatherData, error) {
	p.calls = append(p.calls, coords)
	return p.data, p.err
}

func TestServiceFetchWeather(t *testing.T) {
	coords := Coordinates{Lat: 51.5, Lon: -0.12}
	resolver := &stubResolver{coords: coords}
	provider := &stubProvider{data: WeatherData{Coordinates: coords, Timezone: "Europe/London"}}

	got, err := NewService(resolver, provider).FetchWeather(context.Background(), "London")
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", got.Timezone)
	assert.Equal(t, []string{"London"}, resolver.calls)
	assert.Equal(t, []Coordinates{coords}, provider.calls)
}

func TestServiceResolveFailureSkipsProvider(t *testing.T) {
	resolver := &stubResolver{err: &ResolveError{Kind: ResolveQueryTooShort, Query: "Lon"}}
	provider := &stubProvider{}

	_, err := NewService(resolver, provider).FetchWeather(context.Background(), "Lon")

	assert.True(t, IsResolveKind(err, ResolveQueryTooShort))
	assert.Empty(t, provider.calls)
}

func TestServiceWrapsProviderErrors(t *testing.T) {
	provider := &stubProvider{err: &FetchError{Kind: FetchServerError, StatusCode: 503}}

	_, err := NewService(&stubResolver{}, provider).FetchWeather(context.Background(), "Berlin")
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 503, fe.StatusCode)
	assert.Contains(t, err.Error(), "provider stub")
	assert.Empty(t, UserMessage(err))
}

func TestServiceWithoutProvider(t *testing.T) {
	_, err := NewService(&stubResolver{}, nil).FetchWeather(context.Background(), "Berlin")
	assert.Error(t, err)
}
