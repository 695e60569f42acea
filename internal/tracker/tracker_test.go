package tracker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EricCohen9/melingo/internal/page"
	"github.com/EricCohen9/melingo/internal/session"
)

func newTestTracker(t *testing.T, baseURL string) (*Tracker, *session.MemoryStore) {
	t.Helper()

	store := session.NewMemoryStore()
	sessions := session.NewManager(store, "visitor1", 30*time.Minute)
	tr := New(sessions, baseURL)
	tr.SetLocation("https://shop.example.com/products/blue-shirt")
	return tr, store
}

func TestTrackQueuesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, _ := newTestTracker(t, srv.URL)
	ctx := context.Background()

	tr.TrackPageView(ctx)
	tr.TrackClick(ctx, page.Element{Tag: "BUTTON", ID: "buy", Classes: []string{"btn"}, Text: "Buy now"}, nil)
	tr.TrackAddToCart(ctx, map[string]any{"product": "blue-shirt"})

	events := tr.Events()
	require.Len(t, events, 3)

	assert.Equal(t, EventPageView, events[0].EventType)
	assert.Equal(t, EventClick, events[1].EventType)
	assert.Equal(t, EventAddToCart, events[2].EventType)

	for _, ev := range events {
		assert.Equal(t, "product", ev.PageType)
		assert.Equal(t, "https://shop.example.com/products/blue-shirt", ev.PageURL)
		assert.NotEmpty(t, ev.SessionID)
		assert.Greater(t, ev.Timestamp, 0.0)
	}
	assert.Equal(t, events[0].SessionID, events[2].SessionID)

	assert.Equal(t, "button", events[1].Data["element_tag"])
	assert.Equal(t, "buy", events[1].Data["element_id"])
	assert.Equal(t, "Buy now", events[1].Data["element_text"])
	assert.Equal(t, "blue-shirt", events[2].Data["product"])
}

func TestTrackTruncatesElementText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, _ := newTestTracker(t, srv.URL)

	long := strings.Repeat("x", 500)
	tr.TrackClick(context.Background(), page.Element{Tag: "a", Text: long}, nil)

	events := tr.Events()
	require.Len(t, events, 1)
	text, ok := events[0].Data["element_text"].(string)
	require.True(t, ok)
	assert.Len(t, text, 100)
}

func TestTrackDeliveryFailureIsSilent(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr, _ := newTestTracker(t, srv.URL)

	// Neither a 5xx response nor a dead endpoint may surface anywhere or
	// touch the queue.
	tr.TrackPageView(context.Background())
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, tr.QueueLen())

	srv.Close()
	tr.TrackPageView(context.Background())
	assert.Equal(t, 2, tr.QueueLen())
}

func TestTrackUpdatesActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, _ := newTestTracker(t, srv.URL)

	var touches atomic.Int64
	tr.OnActivity(func(time.Time) { touches.Add(1) })

	ctx := context.Background()
	tr.TrackPageView(ctx)
	tr.TrackClick(ctx, page.Element{Tag: "a"}, nil)
	tr.TrackAddToCart(ctx, nil)

	assert.Equal(t, int64(3), touches.Load())
}

func TestTrackExtendsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, store := newTestTracker(t, srv.URL)
	ctx := context.Background()

	tr.TrackPageView(ctx)
	first := storedExpiry(t, store)

	// Stored expiry has millisecond resolution.
	time.Sleep(5 * time.Millisecond)

	tr.TrackClick(ctx, page.Element{Tag: "a"}, nil)
	second := storedExpiry(t, store)

	assert.True(t, second.After(first), "every tracked event must slide the session expiry forward")
}

func TestTrackInteraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr, _ := newTestTracker(t, srv.URL)
	tr.TrackInteraction(context.Background(), map[string]any{
		"custom_event": "popup_interaction",
		"popup_action": "accept",
	})

	events := tr.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventClick, events[0].EventType)
	assert.Equal(t, "popup_interaction", events[0].Data["custom_event"])
	assert.Equal(t, "accept", events[0].Data["popup_action"])
}

func storedExpiry(t *testing.T, store *session.MemoryStore) time.Time {
	t.Helper()

	raw, err := store.Get(context.Background(), "melingo:visitor1:session_expires")
	require.NoError(t, err)
	millis, err := strconv.ParseInt(raw, 10, 64)
	require.NoError(t, err)
	return time.UnixMilli(millis)
}
