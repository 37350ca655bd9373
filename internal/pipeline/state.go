package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/i474232898/weather-query-pipeline/internal/weather"
)

// Snapshot is a copy of the observable pipeline state.
type Snapshot struct {
	Weather      weather.WeatherData `json:"weather"`
	ErrorMessage string              `json:"errorMessage"`
	Query        string              `json:"query"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// State holds the latest delivered weather and error message. Apply is
// called only by the pipeline loop; everything else is read-only.
type State struct {
	mu        sync.RWMutex
	weather   weather.WeatherData
	message   string
	query     string
	updatedAt time.Time
}

func NewState() *State {
	return &State{weather: weather.Empty()}
}

// Apply overwrites the state with r. Successes replace the weather and
// clear the message. Resolve failures set their message. Any other failure
// is logged, clears the message and keeps the previous weather.
func (s *State) Apply(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.query = r.Query
	s.updatedAt = r.DeliveredAt

	if r.Err == nil {
		s.weather = r.Weather.Clone()
		s.message = ""
		return
	}

	var re *weather.ResolveError
	if errors.As(r.Err, &re) {
		s.message = re.Message()
		return
	}

	log.Errorf("pipeline: fetching weather for %q failed: %v", r.Query, r.Err)
	s.message = ""
}

// Weather returns a copy of the latest weather; callers may modify it.
func (s *State) Weather() weather.WeatherData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weather.Clone()
}

func (s *State) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.message
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Weather:      s.weather.Clone(),
		ErrorMessage: s.message,
		Query:        s.query,
		UpdatedAt:    s.updatedAt,
	}
}
