// Package geo validates free-text city queries and resolves them to
// coordinates through an external geocoding service.
package geo

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/text/unicode/norm"

	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

// MinQueryLength is the shortest query, in characters, sent to the geocoder.
const MinQueryLength = 4

// Placemark is one geocoder match. Coordinates is nil when the service
// returned a place without a location.
type Placemark struct {
	Name        string
	Coordinates *weather.Coordinates
}

// Geocoder is the external address-to-coordinate service.
type Geocoder interface {
	Geocode(ctx context.Context, address string) ([]Placemark, error)
}

var validate = validator.New()

var minLengthTag = "min=" + strconv.Itoa(MinQueryLength)

// Resolver implements weather.Resolver on top of a Geocoder.
type Resolver struct {
	geocoder Geocoder
}

func NewResolver(g Geocoder) *Resolver {
	return &Resolver{geocoder: g}
}

// Resolve validates city and returns the coordinates of the first match.
// The query is trimmed and NFC-normalized, so length is counted in
// composed characters.
// Failures are *weather.ResolveError, except cancellation of ctx which is
// returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, city string) (weather.Coordinates, error) {
	q := norm.NFC.String(strings.TrimSpace(city))

	if err := validate.Var(q, "required"); err != nil {
		return weather.Coordinates{}, &weather.ResolveError{Kind: weather.ResolveEmptyQuery, Query: q}
	}
	if err := validate.Var(q, minLengthTag); err != nil {
		return weather.Coordinates{}, &weather.ResolveError{Kind: weather.ResolveQueryTooShort, Query: q}
	}

	places, err := r.geocoder.Geocode(ctx, q)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return weather.Coordinates{}, err
		}
		log.Warnf("geo: geocoding %q failed: %v", q, err)
		return weather.Coordinates{}, &weather.ResolveError{Kind: weather.ResolveNotFound, Query: q, Err: err}
	}
	if len(places) == 0 {
		return weather.Coordinates{}, &weather.ResolveError{Kind: weather.ResolveNotFound, Query: q}
	}

	first := places[0]
	if first.Coordinates == nil || !first.Coordinates.Valid() {
		return weather.Coordinates{}, &weather.ResolveError{Kind: weather.ResolveNoLocation, Query: q}
	}
	return *first.Coordinates, nil
}
