package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds the scheduling tunables. The cadence is a constant of the
// deployment, not a contract.
type Config struct {
	TickInterval time.Duration
	MinDwell     time.Duration
	MinEvents    int
	Cooldown     time.Duration
}

// State is the scheduler's bookkeeping. It is owned exclusively by the
// Scheduler; other components feed it through Touch and read it through
// Snapshot.
type State struct {
	StartTime    time.Time
	LastActivity time.Time
	LastAnalysis time.Time // zero until the first analysis fires
	EventCount   int
}

// Scheduler periodically decides when enough signal has accumulated to ask
// the decision service for a judgment. It is a rate limiter: the analysis
// timestamp is stamped before the request is dispatched, so a tick firing
// while a previous request is still in flight sees the stamp and declines.
type Scheduler struct {
	cfg        Config
	queueDepth func() int
	request    func(context.Context)
	now        func() time.Time

	mu    sync.Mutex
	state State

	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// New creates a scheduler. queueDepth reports the tracked-event queue size;
// request issues one analysis round trip and delivers any decision itself.
func New(cfg Config, queueDepth func() int, request func(context.Context)) *Scheduler {
	s := &Scheduler{
		cfg:        cfg,
		queueDepth: queueDepth,
		request:    request,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	now := s.now()
	s.state.StartTime = now
	s.state.LastActivity = now
	return s
}

// Start runs the periodic tick until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) {
	s.ticker = time.NewTicker(s.cfg.TickInterval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-s.ticker.C:
				// Each tick runs independently; a slow request must not
				// delay the next evaluation.
				go s.Tick(ctx, s.now())
			}
		}
	}()
}

// Stop halts the periodic tick.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.done)
	})
}

// Touch refreshes the activity timestamp and bumps the event count.
func (s *Scheduler) Touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastActivity = t
	s.state.EventCount++
}

// Refresh updates the activity timestamp without counting an event. Liveness
// signals such as the page becoming visible again go through here.
func (s *Scheduler) Refresh(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastActivity = t
}

// Snapshot returns a copy of the scheduler state for inspection.
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tick evaluates the firing conditions at time now and, when they all hold,
// stamps LastAnalysis and dispatches exactly one analysis request. It
// reports whether a request was fired.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) bool {
	depth := s.queueDepth()

	s.mu.Lock()
	elapsed := now.Sub(s.state.StartTime)
	sinceAnalysis := s.cfg.Cooldown + 1 // never analyzed: treat as past cooldown
	if !s.state.LastAnalysis.IsZero() {
		sinceAnalysis = now.Sub(s.state.LastAnalysis)
	}

	fire := elapsed > s.cfg.MinDwell &&
		depth >= s.cfg.MinEvents &&
		sinceAnalysis > s.cfg.Cooldown
	if fire {
		// Stamp before dispatch: overlapping ticks must not double-fire.
		s.state.LastAnalysis = now
	}
	s.mu.Unlock()

	if !fire {
		log.Debug().
			Str("component", "scheduler").
			Dur("elapsed", elapsed).
			Int("queue_depth", depth).
			Msg("Tick below analysis thresholds")
		return false
	}

	log.Debug().
		Str("component", "scheduler").
		Dur("elapsed", elapsed).
		Int("queue_depth", depth).
		Msg("Requesting analysis")
	s.request(ctx)
	return true
}
