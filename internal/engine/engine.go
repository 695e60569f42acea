package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/EricCohen9/melingo/internal/config"
	"github.com/EricCohen9/melingo/internal/decision"
	"github.com/EricCohen9/melingo/internal/page"
	"github.com/EricCohen9/melingo/internal/popup"
	"github.com/EricCohen9/melingo/internal/scheduler"
	"github.com/EricCohen9/melingo/internal/session"
	"github.com/EricCohen9/melingo/internal/tracker"
)

// Engine is the per-page bootstrap: it owns the session manager, the event
// tracker, the analysis scheduler and the popup controller for one page
// lifetime, and wires page interactions between them.
type Engine struct {
	sessions  *session.Manager
	tracker   *tracker.Tracker
	sched     *scheduler.Scheduler
	popup     *popup.Controller
	decisions *decision.Client

	started bool
}

// New assembles an engine for a single page. scope identifies the visitor's
// storage scope; renderer receives popup lifecycle commands.
func New(cfg config.AgentConfig, store session.Store, scope string, renderer popup.Renderer) *Engine {
	e := &Engine{}

	e.sessions = session.NewManager(store, scope, cfg.SessionTimeout())
	e.tracker = tracker.New(e.sessions, cfg.APIBaseURL)
	e.decisions = decision.NewClient(cfg.APIBaseURL)

	e.popup = popup.NewController(renderer, popup.Config{
		AutoDismiss: cfg.Popup.AutoDismiss(),
		Transition:  cfg.Popup.Transition(),
		EnterDelay:  cfg.Popup.EnterDelay(),
	}, func(data map[string]any) {
		e.tracker.TrackInteraction(context.Background(), data)
	})

	e.sched = scheduler.New(scheduler.Config{
		TickInterval: cfg.Scheduler.TickInterval(),
		MinDwell:     cfg.Scheduler.MinDwell(),
		MinEvents:    cfg.Scheduler.MinEvents,
		Cooldown:     cfg.Scheduler.Cooldown(),
	}, e.tracker.QueueLen, e.analyze)

	e.tracker.OnActivity(e.sched.Touch)

	return e
}

// Start emits the initial page view and begins periodic analysis. The page
// view fires exactly once per page load, before any listener traffic is
// handled.
func (e *Engine) Start(ctx context.Context, url string) {
	if e.started {
		return
	}
	e.started = true

	e.tracker.SetLocation(url)
	e.tracker.TrackPageView(ctx)
	e.sched.Start(ctx)

	log.Debug().Str("component", "engine").Str("url", url).Msg("Engine started")
}

// Stop halts the scheduler. In-flight network calls are left to finish.
func (e *Engine) Stop() {
	e.sched.Stop()
	log.Debug().Str("component", "engine").Msg("Engine stopped")
}

// HandleNavigation reclassifies the page and tracks a page view.
func (e *Engine) HandleNavigation(ctx context.Context, url string) {
	e.tracker.SetLocation(url)
	e.tracker.TrackPageView(ctx)
}

// HandleClick matches the interaction target against the add-to-cart and
// interactive selector sets. Both may fire for the same click.
func (e *Engine) HandleClick(ctx context.Context, target page.Element) {
	if page.IsAddToCart(target) {
		e.tracker.TrackAddToCart(ctx, map[string]any{
			"element_tag": target.Tag,
		})
	}
	if page.IsInteractive(target) {
		e.tracker.TrackClick(ctx, target, nil)
	}
}

// HandleVisibility refreshes the scheduler's liveness signal when the page
// becomes visible again. No event is emitted.
func (e *Engine) HandleVisibility(visible bool) {
	if visible {
		e.sched.Refresh(time.Now())
	}
}

// HandlePopupAction forwards a user action on the popup.
func (e *Engine) HandlePopupAction(action string) {
	e.popup.HandleAction(action)
}

// Tracker exposes the event queue for local inspection.
func (e *Engine) Tracker() *tracker.Tracker {
	return e.tracker
}

// Popup exposes the popup controller.
func (e *Engine) Popup() *popup.Controller {
	return e.popup
}

// analyze performs one analysis round trip and delivers the judgment to the
// popup controller. Failures and negative judgments end here.
func (e *Engine) analyze(ctx context.Context) {
	sessionID := e.sessions.Current()
	if sessionID == "" {
		var err error
		sessionID, err = e.sessions.GetOrCreate(ctx)
		if err != nil {
			log.Warn().Err(err).Str("component", "engine").Msg("No session for analysis")
			return
		}
	}

	resp, err := e.decisions.Analyze(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("component", "engine").Msg("Analysis request failed")
		return
	}

	if !resp.ShouldShowMessage || resp.Message == "" {
		log.Debug().Str("component", "engine").Bool("should_show", resp.ShouldShowMessage).Msg("Nothing to show")
		return
	}

	e.popup.Show(resp.Message, resp.TriggerType)
}
