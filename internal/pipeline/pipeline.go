// Package pipeline turns a stream of city queries into weather results.
//
// Queries are debounced, repeated values are dropped, and a new query
// cancels whatever resolution is still in flight. All of this state is
// owned by the goroutine running Pipeline.Run; other goroutines only talk
// to it through channels.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

// DefaultDebounce is the quiet period a query must survive before it is
// resolved.
const DefaultDebounce = 800 * time.Millisecond

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("pipeline is already running")

// Phase is the pipeline's position in the query lifecycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseDebouncing
	PhaseResolving
	PhaseDelivered
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDebouncing:
		return "debouncing"
	case PhaseResolving:
		return "resolving"
	case PhaseDelivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// Fetcher resolves a city name into weather data. weather.Service
// implements it.
type Fetcher interface {
	FetchWeather(ctx context.Context, city string) (weather.WeatherData, error)
}

// Result is the terminal outcome delivered for one stabilized query.
type Result struct {
	AttemptID   string
	Query       string
	Weather     weather.WeatherData
	Err         error
	DeliveredAt time.Time
}

// OK reports whether the result carries weather data.
func (r Result) OK() bool { return r.Err == nil }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDebounce sets the quiet period. Zero resolves on the next loop turn.
func WithDebounce(d time.Duration) Option {
	return func(p *Pipeline) { p.window = d }
}

// WithClock replaces the wall clock used for debounce timers.
func WithClock(c Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithListener registers fn to receive every delivered result. Listeners
// run on the pipeline goroutine after the state has been written and must
// not block.
func WithListener(fn func(Result)) Option {
	return func(p *Pipeline) { p.listeners = append(p.listeners, fn) }
}

// Pipeline debounces, de-duplicates and resolves city queries, writing
// each outcome into its State.
type Pipeline struct {
	fetcher   Fetcher
	state     *State
	clock     Clock
	window    time.Duration
	listeners []func(Result)

	queries chan string
	refresh chan struct{}

	phase   atomic.Int32
	running sync.Mutex
}

func New(fetcher Fetcher, state *State, opts ...Option) *Pipeline {
	if state == nil {
		state = NewState()
	}
	p := &Pipeline{
		fetcher: fetcher,
		state:   state,
		clock:   realClock{},
		window:  DefaultDebounce,
		queries: make(chan string, 16),
		refresh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the pipeline's observable state.
func (p *Pipeline) State() *State { return p.state }

// Snapshot is shorthand for p.State().Snapshot().
func (p *Pipeline) Snapshot() Snapshot { return p.state.Snapshot() }

// Phase returns the current lifecycle phase.
func (p *Pipeline) Phase() Phase { return Phase(p.phase.Load()) }

// Submit hands a query to the pipeline. It blocks only while the intake
// buffer is full.
func (p *Pipeline) Submit(ctx context.Context, query string) error {
	select {
	case p.queries <- query:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh asks the pipeline to resolve the last delivered query again,
// bypassing de-duplication. It is ignored while a query is pending or in
// flight. Refresh never blocks; concurrent requests collapse into one.
func (p *Pipeline) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.refresh <- struct{}{}:
	default:
	}
	return nil
}

// attempt is one in-flight resolution.
type attempt struct {
	id     string
	query  string
	cancel context.CancelFunc
}

type attemptResult struct {
	id    string
	query string
	data  weather.WeatherData
	err   error
}

// loop is the state owned by a single Run call.
type loop struct {
	p       *Pipeline
	ctx     context.Context
	results chan attemptResult
	workers sync.WaitGroup

	pending    string
	hasPending bool
	timer      Timer
	timerC     <-chan time.Time

	inflight     *attempt
	delivered    string
	hasDelivered bool
}

// Run processes queries until ctx is done. Only one Run may be active at a
// time.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.TryLock() {
		return ErrAlreadyRunning
	}
	defer p.running.Unlock()

	l := &loop{
		p:       p,
		ctx:     ctx,
		results: make(chan attemptResult),
	}
	defer l.shutdown()

	p.setPhase(PhaseIdle)
	log.Infof("pipeline: started (debounce %s)", p.window)

	for {
		select {
		case <-ctx.Done():
			log.Infof("pipeline: stopping: %v", ctx.Err())
			return ctx.Err()
		case q := <-p.queries:
			l.onQuery(q)
		case <-l.timerC:
			l.onTimer()
		case res := <-l.results:
			l.onResult(res)
		case <-p.refresh:
			l.onRefresh()
		}
	}
}

func (p *Pipeline) setPhase(ph Phase) { p.phase.Store(int32(ph)) }

// onQuery restarts the debounce window for q. A query that differs from
// the one in flight cancels it; the same query is dropped.
func (l *loop) onQuery(q string) {
	if l.inflight != nil {
		if q == l.inflight.query {
			log.Debugf("pipeline: %q already in flight, dropping", q)
			return
		}
		log.Debugf("pipeline: %q supersedes in-flight %q", q, l.inflight.query)
		l.cancelInflight()
	}

	l.pending = q
	l.hasPending = true
	l.resetTimer()
	l.p.setPhase(PhaseDebouncing)
}

// onTimer stabilizes the pending query.
func (l *loop) onTimer() {
	l.timer = nil
	l.timerC = nil
	if !l.hasPending {
		return
	}
	q := l.pending
	l.pending = ""
	l.hasPending = false

	if last, ok := l.lastValue(); ok && last == q {
		log.Debugf("pipeline: %q unchanged, skipping", q)
		l.p.setPhase(PhaseIdle)
		return
	}
	l.start(q)
}

func (l *loop) onResult(res attemptResult) {
	if l.inflight == nil || res.id != l.inflight.id {
		log.Debugf("pipeline: discarding superseded result for %q", res.query)
		return
	}
	if l.ctx.Err() != nil {
		return
	}
	l.inflight.cancel()
	l.inflight = nil

	l.delivered = res.query
	l.hasDelivered = true

	result := Result{
		AttemptID:   res.id,
		Query:       res.query,
		Weather:     res.data,
		Err:         res.err,
		DeliveredAt: l.p.clock.Now().UTC(),
	}

	l.p.setPhase(PhaseDelivered)
	l.p.state.Apply(result)
	for _, fn := range l.p.listeners {
		fn(result)
	}
	l.p.setPhase(PhaseIdle)
}

func (l *loop) onRefresh() {
	if l.inflight != nil || l.hasPending || !l.hasDelivered {
		log.Debugf("pipeline: refresh skipped (%s)", l.p.Phase())
		return
	}
	log.Debugf("pipeline: refreshing %q", l.delivered)
	l.start(l.delivered)
}

// lastValue is the in-flight query, or else the last delivered one.
func (l *loop) lastValue() (string, bool) {
	if l.inflight != nil {
		return l.inflight.query, true
	}
	return l.delivered, l.hasDelivered
}

func (l *loop) start(q string) {
	ctx, cancel := context.WithCancel(l.ctx)
	a := &attempt{id: uuid.NewString(), query: q, cancel: cancel}
	l.inflight = a
	l.p.setPhase(PhaseResolving)
	log.Debugf("pipeline: resolving %q (attempt %s)", q, a.id)

	l.workers.Add(1)
	go func() {
		defer l.workers.Done()
		data, err := l.p.fetcher.FetchWeather(ctx, q)
		select {
		case l.results <- attemptResult{id: a.id, query: q, data: data, err: err}:
		case <-l.ctx.Done():
		}
	}()
}

func (l *loop) cancelInflight() {
	if l.inflight == nil {
		return
	}
	l.inflight.cancel()
	l.inflight = nil
}

func (l *loop) resetTimer() {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = l.p.clock.NewTimer(l.p.window)
	l.timerC = l.timer.C()
}

func (l *loop) shutdown() {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.cancelInflight()
	l.workers.Wait()
	l.p.setPhase(PhaseIdle)
}
