package geo

import (
	"context"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-query-pipeline/internal/common"
	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

// GoogleGeocoder implements Geocoder with the Google Geocoding API.
type GoogleGeocoder struct {
	lookup func(geocoder.Address) (geocoder.Location, error)
}

// NewGoogleGeocoder sets the package-wide key of the geocoder library, so
// only one key can be in use per process.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey

	return &GoogleGeocoder{lookup: geocoder.Geocoding}
}

type geocodeReply struct {
	loc geocoder.Location
	err error
}

// Geocode returns at most one placemark. The underlying call is not
// cancellable, so it runs in its own goroutine and is abandoned if ctx ends.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) ([]Placemark, error) {
	ch := make(chan geocodeReply, 1)
	go func() {
		loc, err := g.lookup(geocoder.Address{City: address})
		ch <- geocodeReply{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			if isNoResults(r.err) {
				return nil, nil
			}
			return nil, r.err
		}
		place := Placemark{Name: address}
		if r.loc.Latitude != 0 || r.loc.Longitude != 0 {
			place.Coordinates = &weather.Coordinates{Lat: r.loc.Latitude, Lon: r.loc.Longitude}
		}
		return []Placemark{place}, nil
	}
}

func isNoResults(err error) bool {
	return common.ContainsAnyFold(err.Error(), "ZERO_RESULTS", "no results")
}
