package weather

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies failures of the HTTP fetch layer.
type FetchErrorKind int

const (
	FetchTransport FetchErrorKind = iota + 1
	FetchInvalidResponse
	FetchClientError
	FetchServerError
	FetchDecode
)

var fetchErrorText = map[FetchErrorKind]string{
	FetchTransport:       "transport failure",
	FetchInvalidResponse: "invalid response",
	FetchClientError:     "client error",
	FetchServerError:     "server error",
	FetchDecode:          "decoding failed",
}

func (k FetchErrorKind) String() string {
	if s, ok := fetchErrorText[k]; ok {
		return s
	}
	return "unknown fetch error"
}

// FetchError is returned by weather providers. Only FetchServerError is
// retried by the fetcher.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	// RetryAfter is the raw Retry-After header of a 5xx response.
	RetryAfter string
	Err        error
}

func (e *FetchError) Error() string {
	msg := e.Kind.String()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient.
func (e *FetchError) Retryable() bool { return e.Kind == FetchServerError }

// ResolveErrorKind classifies failures to turn a query into coordinates.
type ResolveErrorKind int

const (
	ResolveEmptyQuery ResolveErrorKind = iota + 1
	ResolveQueryTooShort
	ResolveNotFound
	ResolveNoLocation
)

// resolveMessages holds the user-facing text for each resolve failure.
var resolveMessages = map[ResolveErrorKind]string{
	ResolveEmptyQuery:    "Please enter a city name.",
	ResolveQueryTooShort: "City name must be at least 4 characters long.",
	ResolveNotFound:      "City not found. Check the spelling and try again.",
	ResolveNoLocation:    "Could not determine the location of this city.",
}

// Message returns the user-facing text for k.
func (k ResolveErrorKind) Message() string {
	return resolveMessages[k]
}

func (k ResolveErrorKind) String() string {
	switch k {
	case ResolveEmptyQuery:
		return "empty query"
	case ResolveQueryTooShort:
		return "query too short"
	case ResolveNotFound:
		return "not found"
	case ResolveNoLocation:
		return "no location"
	default:
		return "unknown resolve error"
	}
}

// ResolveError is returned when a query cannot be turned into coordinates.
type ResolveError struct {
	Kind  ResolveErrorKind
	Query string
	Err   error
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("resolve %q: %s", e.Query, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Message returns the user-facing text for the failure.
func (e *ResolveError) Message() string { return e.Kind.Message() }

// UserMessage returns the text to surface for err. Only resolve failures
// carry one; every other error yields "".
func UserMessage(err error) string {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Message()
	}
	return ""
}

// IsResolveKind reports whether err is a ResolveError of the given kind.
func IsResolveKind(err error, kind ResolveErrorKind) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Kind == kind
}

// IsFetchKind reports whether err is a FetchError of the given kind.
func IsFetchKind(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}
