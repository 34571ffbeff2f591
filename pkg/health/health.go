package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"squash-venue-enrichment/pkg/circuit"
	"squash-venue-enrichment/pkg/logging"
)

// Status is the health of one component or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ComponentHealth is the outcome of one check.
type ComponentHealth struct {
	Name     string         `json:"name"`
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration time.Duration  `json:"duration"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Report is the aggregate served on /health.
type Report struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
}

// Checker checks one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) ComponentHealth
}

// CheckFunc adapts a function to Checker.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) ComponentHealth
}

func NewCheckFunc(name string, fn func(ctx context.Context) ComponentHealth) CheckFunc {
	return CheckFunc{name: name, fn: fn}
}

func (c CheckFunc) Name() string                              { return c.name }
func (c CheckFunc) Check(ctx context.Context) ComponentHealth { return c.fn(ctx) }

// Manager runs registered checks concurrently under a shared timeout.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	started  time.Time
	timeout  time.Duration
	log      *logging.ComponentLogger
}

func NewManager(timeout time.Duration, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{started: time.Now(), timeout: timeout, log: log.WithComponent("health")}
}

func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// CheckAll runs every check and folds the results: any unhealthy component
// makes the process unhealthy, any degraded one degrades it.
func (m *Manager) CheckAll(ctx context.Context) Report {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	results := make([]ComponentHealth, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			start := time.Now()
			r := c.Check(ctx)
			r.Name = c.Name()
			if r.Duration == 0 {
				r.Duration = time.Since(start)
			}
			results[i] = r
		}(i, c)
	}
	wg.Wait()

	rep := Report{
		Status:     fold(results),
		Timestamp:  time.Now().UTC(),
		Uptime:     time.Since(m.started).Round(time.Second).String(),
		Components: make(map[string]ComponentHealth, len(results)),
	}
	for _, r := range results {
		rep.Components[r.Name] = r
	}
	m.log.Debug("health checked", logging.String("status", string(rep.Status)), logging.Int("components", len(results)))
	return rep
}

func fold(results []ComponentHealth) Status {
	if len(results) == 0 {
		return StatusUnknown
	}
	st := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusUnknown:
			st = StatusDegraded
		}
	}
	return st
}

// Handler serves the report as JSON; 503 when unhealthy.
func (m *Manager) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep := m.CheckAll(r.Context())
		code := http.StatusOK
		if rep.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(rep)
	}
}

// Database pings the connection pool and reports its stats.
func Database(name string, db *sql.DB) Checker {
	return NewCheckFunc(name, func(ctx context.Context) ComponentHealth {
		res := ComponentHealth{Status: StatusHealthy, Message: "database reachable"}
		if err := db.PingContext(ctx); err != nil {
			res.Status = StatusUnhealthy
			res.Message = "database ping failed"
			res.Error = err.Error()
			return res
		}
		st := db.Stats()
		res.Metadata = map[string]any{
			"open_connections": st.OpenConnections,
			"in_use":           st.InUse,
			"idle":             st.Idle,
			"wait_count":       st.WaitCount,
		}
		return res
	})
}

// Breakers reports the state of the upstream circuit breakers. An open
// breaker degrades the service; it is still able to answer from the database.
func Breakers(name string, breakers ...*circuit.Breaker) Checker {
	return NewCheckFunc(name, func(ctx context.Context) ComponentHealth {
		res := ComponentHealth{Status: StatusHealthy, Metadata: map[string]any{}}
		var open []string
		for _, b := range breakers {
			if b == nil {
				continue
			}
			st := b.State()
			res.Metadata[b.Name()] = st.String()
			if st == circuit.Open {
				open = append(open, b.Name())
			}
		}
		if len(open) > 0 {
			sort.Strings(open)
			res.Status = StatusDegraded
			res.Message = "open circuits: " + strings.Join(open, ", ")
		}
		return res
	})
}
