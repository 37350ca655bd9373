package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

// Defaults used when a FetcherConfig leaves the field unset.
const (
	DefaultMaxRetries       = 10
	DefaultRetryDelay       = 3 * time.Second
	DefaultMaxRetryAfter    = 30 * time.Second
	DefaultBreakerThreshold = 30
)

// RetryConfig controls the fixed-delay retry of 5xx responses.
type RetryConfig struct {
	MaxRetries int
	Delay      time.Duration

	// HonorRetryAfter stretches the delay to the server's Retry-After
	// header, capped at MaxRetryAfter.
	HonorRetryAfter bool
	MaxRetryAfter   time.Duration
}

// FetcherConfig bundles the HTTP client and resilience settings.
type FetcherConfig struct {
	Name             string
	BaseURL          string
	Client           *http.Client
	Retry            RetryConfig
	BreakerThreshold uint32
}

// Request describes a GET against the fetcher's base URL.
type Request struct {
	Path   string
	Query  url.Values
	Header http.Header
}

var (
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid retry configuration")
)

var validate = validator.New()

// Fetcher issues GET requests, retries server errors with a fixed delay and
// decodes JSON payloads.
type Fetcher struct {
	name    string
	baseURL *url.URL
	client  *http.Client
	retry   RetryConfig
	circuit *gobreaker.CircuitBreaker
	tracer  trace.Tracer

	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher validates cfg and builds a Fetcher.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Retry.MaxRetries < 0 || cfg.Retry.Delay < 0 || cfg.Retry.MaxRetryAfter < 0 {
		return nil, errInvalidConfig
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", cfg.BaseURL)
	}
	if cfg.Name == "" {
		cfg.Name = base.Host
	}
	if cfg.Retry.MaxRetryAfter == 0 {
		cfg.Retry.MaxRetryAfter = DefaultMaxRetryAfter
	}

	threshold := cfg.BreakerThreshold
	if threshold == 0 {
		threshold = DefaultBreakerThreshold
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("fetcher %s: circuit breaker %s -> %s", name, from, to)
		},
	})

	return &Fetcher{
		name:    cfg.Name,
		baseURL: base,
		client:  cfg.Client,
		retry:   cfg.Retry,
		circuit: cb,
		tracer:  otel.Tracer("weather-query-pipeline/providers"),
		sleep:   sleepContext,
	}, nil
}

// Name returns the fetcher's name, used for logs and the circuit breaker.
func (f *Fetcher) Name() string {
	return f.name
}

// BuildRequest turns the descriptor into a GET request against the base URL.
func (f *Fetcher) BuildRequest(ctx context.Context, r Request) (*http.Request, error) {
	u := f.baseURL.JoinPath(r.Path)
	u.RawQuery = r.Query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// Fetch performs r and decodes the 2xx body into out.
func (f *Fetcher) Fetch(ctx context.Context, r Request, out any) error {
	body, err := f.doWithRetry(ctx, r)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Fetch is the typed form of Fetcher.Fetch.
func Fetch[T any](ctx context.Context, f *Fetcher, r Request) (T, error) {
	var v T
	if err := f.Fetch(ctx, r, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// doWithRetry executes the request, resubmitting it after a fixed delay
// while the server answers 5xx.
func (f *Fetcher) doWithRetry(ctx context.Context, r Request) ([]byte, error) {
	var attempt int

	for {
		body, err := f.attempt(ctx, r, attempt)
		if err == nil {
			return body, nil
		}

		var fe *weather.FetchError
		if !errors.As(err, &fe) || !fe.Retryable() {
			return nil, err
		}
		if attempt >= f.retry.MaxRetries {
			log.Warnf("fetcher %s: giving up on %s after %d retries: %v", f.name, r.Path, attempt, err)
			return nil, err
		}

		delay := f.retryDelay(fe, time.Now())
		log.Debugf("fetcher %s: %s answered %d, retry %d/%d in %s", f.name, r.Path, fe.StatusCode, attempt+1, f.retry.MaxRetries, delay)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, &weather.FetchError{Kind: weather.FetchTransport, Err: err}
		}

		attempt++
	}
}

// attemptResult carries a classified response out of the circuit breaker.
// Client-side failures and cancelled requests travel here instead of as
// breaker errors so they do not count towards tripping it.
type attemptResult struct {
	body []byte
	err  error
}

func (f *Fetcher) attempt(ctx context.Context, r Request, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &weather.FetchError{Kind: weather.FetchTransport, Err: err}
	}

	ctx, span := f.tracer.Start(ctx, "http.get")
	defer span.End()
	span.SetAttributes(
		attribute.String("fetcher", f.name),
		attribute.String("http.path", r.Path),
		attribute.Int("retry.attempt", n),
	)

	req, err := f.BuildRequest(ctx, r)
	if err != nil {
		span.RecordError(err)
		return nil, &weather.FetchError{Kind: weather.FetchTransport, Err: err}
	}

	result, err := f.circuit.Execute(func() (interface{}, error) {
		resp, execErr := f.client.Do(req)
		if execErr != nil {
			fe := &weather.FetchError{Kind: weather.FetchTransport, Err: execErr}
			if req.Context().Err() != nil {
				// Abandoned by the caller, not an upstream failure.
				return attemptResult{err: fe}, nil
			}
			return nil, fe
		}
		defer resp.Body.Close()
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return attemptResult{err: &weather.FetchError{Kind: weather.FetchInvalidResponse, StatusCode: resp.StatusCode, Err: readErr}}, nil
			}
			return attemptResult{body: body}, nil
		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, &weather.FetchError{
				Kind:       weather.FetchServerError,
				StatusCode: resp.StatusCode,
				RetryAfter: resp.Header.Get("Retry-After"),
			}
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return attemptResult{err: &weather.FetchError{Kind: weather.FetchClientError, StatusCode: resp.StatusCode}}, nil
		default:
			return attemptResult{err: &weather.FetchError{Kind: weather.FetchInvalidResponse, StatusCode: resp.StatusCode}}, nil
		}
	})
	if err != nil {
		// If circuit is open, fail fast without retrying.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &weather.FetchError{Kind: weather.FetchTransport, Err: err}
		}
		span.RecordError(err)
		return nil, err
	}

	res, ok := result.(attemptResult)
	if !ok {
		return nil, &weather.FetchError{Kind: weather.FetchInvalidResponse, Err: fmt.Errorf("unexpected result type from circuit breaker")}
	}
	if res.err != nil {
		span.RecordError(res.err)
		return nil, res.err
	}
	return res.body, nil
}

// retryDelay is the fixed delay, stretched by Retry-After when enabled.
func (f *Fetcher) retryDelay(fe *weather.FetchError, now time.Time) time.Duration {
	delay := f.retry.Delay
	if !f.retry.HonorRetryAfter || fe.RetryAfter == "" {
		return delay
	}
	if d, ok := parseRetryAfter(fe.RetryAfter, now); ok && d > delay {
		delay = d
	}
	if f.retry.MaxRetryAfter > 0 && delay > f.retry.MaxRetryAfter {
		delay = f.retry.MaxRetryAfter
	}
	if delay < f.retry.Delay {
		delay = f.retry.Delay
	}
	return delay
}

// parseRetryAfter accepts both delay-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if ts, err := http.ParseTime(v); err == nil {
		d := ts.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// decode unmarshals body into out and enforces its `validate` tags.
// encoding/json matches the snake_case wire names case-insensitively.
func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &weather.FetchError{Kind: weather.FetchDecode, Err: err}
	}
	if err := validate.Struct(out); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// out is not a struct; nothing to enforce.
			return nil
		}
		return &weather.FetchError{Kind: weather.FetchDecode, Err: err}
	}
	return nil
}
