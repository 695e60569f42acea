package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/EricCohen9/melingo/internal/page"
	"github.com/EricCohen9/melingo/internal/session"
)

// element_text payload cap, in characters.
const maxElementText = 100

// Tracker constructs typed interaction events, appends them to a local queue
// and transmits them to the collector. Transmission is best-effort: delivery
// failures are logged and swallowed, never retried, and never reach the
// caller.
type Tracker struct {
	sessions *session.Manager
	baseURL  string
	client   *http.Client
	now      func() time.Time

	// onActivity feeds the scheduler's liveness signal.
	onActivity func(time.Time)

	mu       sync.Mutex
	queue    []Event
	pageURL  string
	pageType page.Type
}

func New(sessions *session.Manager, baseURL string) *Tracker {
	return &Tracker{
		sessions:   sessions,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		onActivity: func(time.Time) {},
	}
}

// OnActivity registers the hook invoked on every tracked event.
func (t *Tracker) OnActivity(fn func(time.Time)) {
	if fn != nil {
		t.onActivity = fn
	}
}

// SetLocation records the current page; its type feeds every following event.
func (t *Tracker) SetLocation(rawURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageURL = rawURL
	t.pageType = page.Classify(rawURL)
}

func (t *Tracker) TrackPageView(ctx context.Context) {
	t.track(ctx, EventPageView, nil)
}

func (t *Tracker) TrackClick(ctx context.Context, target page.Element, extra map[string]any) {
	data := elementData(target)
	for k, v := range extra {
		data[k] = v
	}
	t.track(ctx, EventClick, data)
}

// TrackInteraction records a click event with caller-supplied data only.
// Used for synthetic interactions such as popup acceptance, so they land in
// the same event stream as organic clicks.
func (t *Tracker) TrackInteraction(ctx context.Context, data map[string]any) {
	t.track(ctx, EventClick, data)
}

func (t *Tracker) TrackAddToCart(ctx context.Context, extra map[string]any) {
	data := make(map[string]any, len(extra))
	for k, v := range extra {
		data[k] = v
	}
	t.track(ctx, EventAddToCart, data)
}

// QueueLen reports the number of locally queued events.
func (t *Tracker) QueueLen() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Events returns a copy of the local queue, oldest first. The queue is an
// observability aid only; nothing is ever replayed from it.
func (t *Tracker) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, len(t.queue))
	copy(out, t.queue)
	return out
}

func (t *Tracker) track(ctx context.Context, eventType string, data map[string]any) {
	now := t.now()

	sessionID, err := t.sessions.GetOrCreate(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", "tracker").Str("event_type", eventType).Msg("Failed to resolve session, dropping event")
		return
	}

	t.mu.Lock()
	ev := Event{
		SessionID: sessionID,
		EventType: eventType,
		PageType:  string(t.pageType),
		PageURL:   t.pageURL,
		Timestamp: float64(now.UnixMicro()) / 1e6,
		Data:      data,
	}
	t.queue = append(t.queue, ev)
	t.mu.Unlock()

	t.onActivity(now)

	log.Debug().Str("component", "tracker").Str("event_type", eventType).Str("session_id", sessionID).Msg("Tracked event")

	go t.send(ev)
}

// send posts the event to the collector. Failure is a dead end for this call
// only.
func (t *Tracker) send(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("component", "tracker").Msg("Failed to encode event")
		return
	}

	req, err := http.NewRequest(http.MethodPost, t.baseURL+"/track", bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("component", "tracker").Msg("Failed to build track request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("component", "tracker").Str("event_type", ev.EventType).Msg("Track delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Int("status", resp.StatusCode).Str("component", "tracker").Str("event_type", ev.EventType).Msg("Track rejected by collector")
		return
	}
	log.Debug().Str("component", "tracker").Str("event_type", ev.EventType).Msg("Event delivered")
}

func elementData(el page.Element) map[string]any {
	data := map[string]any{
		"element_tag": strings.ToLower(el.Tag),
	}
	if el.ID != "" {
		data["element_id"] = el.ID
	}
	if len(el.Classes) > 0 {
		data["element_classes"] = strings.Join(el.Classes, " ")
	}
	if el.Text != "" {
		data["element_text"] = truncate(el.Text, maxElementText)
	}
	return data
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
