package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/EricCohen9/melingo/internal/ai"
	"github.com/EricCohen9/melingo/internal/analyzer"
	"github.com/EricCohen9/melingo/internal/enricher"
	"github.com/EricCohen9/melingo/internal/tracker"
)

// Recorder folds tracked events into per-session aggregates.
type Recorder interface {
	Record(ctx context.Context, ev *enricher.Event) error
}

// Summarizer produces the behavior summary for a session.
type Summarizer interface {
	Summarize(ctx context.Context, sessionID string) (*analyzer.Summary, error)
}

// Decider judges a summarized session.
type Decider interface {
	Decide(ctx context.Context, sum *analyzer.Summary) *ai.Decision
}

// KeyValidator authenticates storefront keys. A nil validator leaves the
// endpoints open, matching single-store deployments.
type KeyValidator interface {
	ValidateKey(ctx context.Context, key string) (string, error)
	CheckRateLimit(ctx context.Context, storeID string) bool
}

// EventSink receives enriched events for downstream pipelines; failures
// there never affect the request.
type EventSink interface {
	ProduceEvent(ctx context.Context, ev *enricher.Event) error
}

// EventArchiver receives enriched events for durable archival.
type EventArchiver interface {
	Archive(ev *enricher.Event)
}

type Handlers struct {
	enricher   *enricher.Enricher
	recorder   Recorder
	summarizer Summarizer
	decider    Decider
	validator  KeyValidator
	sink       EventSink
	archiver   EventArchiver
}

func New(e *enricher.Enricher, recorder Recorder, summarizer Summarizer, decider Decider) *Handlers {
	return &Handlers{
		enricher:   e,
		recorder:   recorder,
		summarizer: summarizer,
		decider:    decider,
	}
}

// WithValidator enables storefront key authentication and rate limiting.
func (h *Handlers) WithValidator(v KeyValidator) *Handlers {
	h.validator = v
	return h
}

// WithSink mirrors accepted events to a streaming sink.
func (h *Handlers) WithSink(s EventSink) *Handlers {
	h.sink = s
	return h
}

// WithArchiver mirrors accepted events to durable archival.
func (h *Handlers) WithArchiver(a EventArchiver) *Handlers {
	h.archiver = a
	return h
}

type trackResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleTrack receives one tracking event from a storefront page.
func (h *Handlers) HandleTrack(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var ev tracker.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}
	if ev.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	if h.validator != nil {
		storeID, err := h.validator.ValidateKey(r.Context(), r.Header.Get("X-Storefront-Key"))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid storefront key"})
			return
		}
		if !h.validator.CheckRateLimit(r.Context(), storeID) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
	}

	enriched := h.enricher.Enrich(ev, r.Header.Get("User-Agent"), clientIP(r))

	if err := h.recorder.Record(r.Context(), enriched); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to record event"})
		return
	}

	// Downstream mirrors are best-effort.
	if h.sink != nil {
		if err := h.sink.ProduceEvent(r.Context(), enriched); err != nil {
			log.Warn().Err(err).Str("session_id", ev.SessionID).Msg("Event sink write failed")
		}
	}
	if h.archiver != nil {
		h.archiver.Archive(enriched)
	}

	log.Debug().Str("session_id", ev.SessionID).Str("event_type", ev.EventType).Msg("Tracked event")

	writeJSON(w, http.StatusOK, trackResponse{Status: "success", SessionID: ev.SessionID})
}

type analyzeRequest struct {
	SessionID string `json:"session_id"`
}

type analyzeResponse struct {
	ShouldShowMessage bool   `json:"should_show_message"`
	Message           string `json:"message,omitempty"`
	TriggerType       string `json:"trigger_type,omitempty"`
}

// HandleAnalyze summarizes a session and returns the engagement judgment.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	sum, err := h.summarizer.Summarize(r.Context(), req.SessionID)
	if err == analyzer.ErrSessionNotFound {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if err != nil {
		// The decision path never hard-fails the caller: degrade to the
		// generic offer.
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("Summarize failed")
		writeJSON(w, http.StatusOK, analyzeResponse{
			ShouldShowMessage: true,
			Message:           "Thanks for browsing! Get 15% off your first order!",
			TriggerType:       "discount",
		})
		return
	}

	log.Debug().
		Str("session_id", req.SessionID).
		Int("total_events", sum.TotalEvents).
		Float64("duration_s", sum.SessionDuration).
		Msg("Analyzing session")

	decision := h.decider.Decide(r.Context(), sum)

	writeJSON(w, http.StatusOK, analyzeResponse{
		ShouldShowMessage: decision.ShouldShowMessage,
		Message:           decision.Message,
		TriggerType:       decision.TriggerType,
	})
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Storefront-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
