package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"squash-venue-enrichment/pkg/logging"
	"squash-venue-enrichment/pkg/metrics"
)

// State represents the circuit breaker state
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config tunes a circuit breaker instance.
type Config struct {
	Name string

	OperationTimeout  time.Duration // per-call timeout
	OpenFor           time.Duration // how long to stay open before probing
	MaxConsecFailures int           // consecutive failures to open
	WindowSize        int           // sliding window of recent calls
	FailureRate       float64       // 0..1 fraction in window to open
	MinSamples        int           // failure rate is ignored below this many samples
	SlowCallThreshold time.Duration
}

// ErrOpen indicates the breaker is open and calls are short-circuited.
var ErrOpen = errors.New("circuit open")

// IsPermanent marks errors that say nothing about upstream health
// (e.g. NOT_FOUND for a stale Place ID) and must not trip the breaker.
type IsPermanent func(error) bool

type Breaker struct {
	cfg        Config
	permanent  IsPermanent
	mu         sync.Mutex
	st         State
	nextProbe  time.Time
	consecFail int

	win  []bool // true = failure
	idx  int
	used int

	log *logging.ComponentLogger

	mState   *metrics.Gauge
	mOpen    *metrics.Counter
	mFailure *metrics.Counter
	mSlow    *metrics.Counter
	mLatency *metrics.Histogram
}

func New(cfg Config, log *logging.Logger) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 5
	}
	if log == nil {
		log = logging.Nop()
	}
	b := &Breaker{
		cfg:      cfg,
		st:       Closed,
		win:      make([]bool, cfg.WindowSize),
		log:      log.WithComponent("circuit"),
		mState:   metrics.Default.Gauge("cb_"+cfg.Name+"_state", "Circuit breaker state (0=closed,1=open,2=half-open)"),
		mOpen:    metrics.Default.Counter("cb_"+cfg.Name+"_opens_total", "Circuit opened events"),
		mFailure: metrics.Default.Counter("cb_"+cfg.Name+"_failures_total", "Failed calls through circuit"),
		mSlow:    metrics.Default.Counter("cb_"+cfg.Name+"_slow_total", "Slow calls"),
		mLatency: metrics.Default.Histogram("cb_"+cfg.Name+"_latency_ms", "Latency of calls (ms)", []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}),
	}
	b.mState.SetFloat64(0)
	return b
}

// WithPermanent installs a classifier for errors that should not count as failures.
func (b *Breaker) WithPermanent(fn IsPermanent) *Breaker {
	b.permanent = fn
	return b
}

// Name returns the configured breaker name.
func (b *Breaker) Name() string { return b.cfg.Name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

func (b *Breaker) setStateLocked(st State) {
	if b.st == st {
		return
	}
	b.st = st
	b.mState.SetFloat64(float64(st))
	if st == Open {
		b.mOpen.Inc(1)
		b.nextProbe = time.Now().Add(b.cfg.OpenFor)
	}
	b.log.Info("breaker state change", logging.String("name", b.cfg.Name), logging.String("state", st.String()))
}

func (b *Breaker) recordLocked(failed bool) {
	b.win[b.idx] = failed
	b.idx = (b.idx + 1) % len(b.win)
	if b.used < len(b.win) {
		b.used++
	}
	if failed {
		b.consecFail++
	} else {
		b.consecFail = 0
	}

	switch b.st {
	case HalfOpen:
		if failed {
			b.setStateLocked(Open)
		} else {
			b.setStateLocked(Closed)
		}
	case Closed:
		if b.cfg.MaxConsecFailures > 0 && b.consecFail >= b.cfg.MaxConsecFailures {
			b.setStateLocked(Open)
			return
		}
		if b.cfg.FailureRate > 0 && b.used >= b.cfg.MinSamples {
			n := 0
			for i := 0; i < b.used; i++ {
				if b.win[i] {
					n++
				}
			}
			if float64(n)/float64(b.used) >= b.cfg.FailureRate {
				b.setStateLocked(Open)
			}
		}
	}
}

// Do runs op under the breaker. When open it returns ErrOpen without calling op.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.st == Open {
		if time.Now().Before(b.nextProbe) {
			b.mu.Unlock()
			return ErrOpen
		}
		b.setStateLocked(HalfOpen)
	}
	b.mu.Unlock()

	if b.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.OperationTimeout)
		defer cancel()
	}

	start := time.Now()
	err := op(ctx)
	dur := time.Since(start)
	b.mLatency.Observe(float64(dur / time.Millisecond))
	if b.cfg.SlowCallThreshold > 0 && dur > b.cfg.SlowCallThreshold {
		b.mSlow.Inc(1)
	}

	failed := err != nil && (b.permanent == nil || !b.permanent(err))
	if failed {
		b.mFailure.Inc(1)
	}

	b.mu.Lock()
	b.recordLocked(failed)
	b.mu.Unlock()
	return err
}

// Call is Do for operations that produce a value.
func Call[T any](ctx context.Context, b *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
