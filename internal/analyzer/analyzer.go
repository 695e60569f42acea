package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/EricCohen9/melingo/internal/enricher"
	"github.com/EricCohen9/melingo/internal/page"
	"github.com/EricCohen9/melingo/internal/tracker"
)

// ErrSessionNotFound is returned when no events were recorded for a session.
var ErrSessionNotFound = errors.New("analyzer: session not found")

// recentKeep bounds the per-session recent-event list in Redis.
const recentKeep = 20

// recentSummarized is how many trailing events a summary carries.
const recentSummarized = 5

// Aggregator accumulates per-session behavior in Redis hashes with a TTL, so
// the analyze endpoint can judge a session without replaying its history.
type Aggregator struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewAggregator(rdb *redis.Client, ttl time.Duration) *Aggregator {
	return &Aggregator{redis: rdb, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "melingo:session:" + sessionID
}

func recentKey(sessionID string) string {
	return "melingo:recent:" + sessionID
}

// Record folds one event into the session's aggregate.
func (a *Aggregator) Record(ctx context.Context, ev *enricher.Event) error {
	key := sessionKey(ev.SessionID)

	pipe := a.redis.Pipeline()

	pipe.HIncrBy(ctx, key, "events_count", 1)
	pipe.HSetNX(ctx, key, "first_ts", formatTS(ev.Timestamp))
	pipe.HSet(ctx, key, "last_ts", formatTS(ev.Timestamp))
	pipe.HSet(ctx, key, "current_page", ev.PageType)

	switch ev.EventType {
	case tracker.EventPageView:
		pipe.HIncrBy(ctx, key, "page_views", 1)
		switch page.Type(ev.PageType) {
		case page.TypeProduct:
			pipe.HIncrBy(ctx, key, "product_page_views", 1)
		case page.TypeCart:
			pipe.HIncrBy(ctx, key, "cart_page_views", 1)
		}
	case tracker.EventClick:
		pipe.HIncrBy(ctx, key, "clicks", 1)
	case tracker.EventAddToCart:
		pipe.HIncrBy(ctx, key, "cart_actions", 1)
	}

	if raw, err := json.Marshal(ev.Event); err == nil {
		pipe.RPush(ctx, recentKey(ev.SessionID), raw)
		pipe.LTrim(ctx, recentKey(ev.SessionID), -recentKeep, -1)
		pipe.Expire(ctx, recentKey(ev.SessionID), a.ttl)
	}

	pipe.Expire(ctx, key, a.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("session_id", ev.SessionID).Msg("Failed to update session aggregate")
		return err
	}
	return nil
}

// Summary describes a session's accumulated behavior.
type Summary struct {
	SessionID        string
	TotalEvents      int
	PageViews        int
	Clicks           int
	CartActions      int
	SessionDuration  float64 // seconds
	ProductPageViews int
	CartPageViews    int
	CurrentPage      string
	HasCartItems     bool
	Recent           []tracker.Event
}

// Summarize builds the behavior summary the decision engine judges.
func (a *Aggregator) Summarize(ctx context.Context, sessionID string) (*Summary, error) {
	data, err := a.redis.HGetAll(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrSessionNotFound
	}

	sum := parseSummary(sessionID, data)

	raws, err := a.redis.LRange(ctx, recentKey(sessionID), -recentSummarized, -1).Result()
	if err == nil {
		for _, raw := range raws {
			var ev tracker.Event
			if err := json.Unmarshal([]byte(raw), &ev); err == nil {
				sum.Recent = append(sum.Recent, ev)
			}
		}
	}

	return sum, nil
}

// Clear drops a session's aggregate.
func (a *Aggregator) Clear(ctx context.Context, sessionID string) error {
	return a.redis.Del(ctx, sessionKey(sessionID), recentKey(sessionID)).Err()
}

func parseSummary(sessionID string, data map[string]string) *Summary {
	sum := &Summary{SessionID: sessionID}

	sum.TotalEvents = parseInt(data["events_count"])
	sum.PageViews = parseInt(data["page_views"])
	sum.Clicks = parseInt(data["clicks"])
	sum.CartActions = parseInt(data["cart_actions"])
	sum.ProductPageViews = parseInt(data["product_page_views"])
	sum.CartPageViews = parseInt(data["cart_page_views"])
	sum.CurrentPage = data["current_page"]
	sum.HasCartItems = sum.CartActions > 0

	first := parseFloat(data["first_ts"])
	last := parseFloat(data["last_ts"])
	if last > first {
		sum.SessionDuration = last - first
	}

	return sum
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func formatTS(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}
