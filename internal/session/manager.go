package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	idKeySuffix     = "session_id"
	expiryKeySuffix = "session_expires"
)

// Manager maintains a single browsing session per scope with a sliding
// expiry window. Every touch rewrites the expiry to now + timeout; a session
// only dies by going untouched past its window.
type Manager struct {
	store   Store
	scope   string
	timeout time.Duration
	now     func() time.Time

	current string
}

// NewManager creates a session manager for one storage scope (one visitor).
func NewManager(store Store, scope string, timeout time.Duration) *Manager {
	return &Manager{
		store:   store,
		scope:   scope,
		timeout: timeout,
		now:     time.Now,
	}
}

func (m *Manager) idKey() string {
	return fmt.Sprintf("melingo:%s:%s", m.scope, idKeySuffix)
}

func (m *Manager) expiryKey() string {
	return fmt.Sprintf("melingo:%s:%s", m.scope, expiryKeySuffix)
}

// GetOrCreate returns the active session id, extending its expiry window.
// An expired or corrupt persisted session is cleared and replaced.
func (m *Manager) GetOrCreate(ctx context.Context) (string, error) {
	now := m.now()

	id, err := m.store.Get(ctx, m.idKey())
	if err == nil && id != "" {
		if m.expiryAfter(ctx, now) {
			if err := m.persist(ctx, id, now); err != nil {
				return "", err
			}
			m.current = id
			log.Debug().Str("component", "session").Str("session_id", id).Msg("Reusing existing session")
			return id, nil
		}
		// Expired or unparseable expiry: never trust stale state.
		if err := m.Clear(ctx); err != nil {
			return "", err
		}
		log.Debug().Str("component", "session").Str("session_id", id).Msg("Session expired, creating a new one")
	} else if err != nil && err != ErrNotFound {
		return "", err
	}

	id = newSessionID(now)
	if err := m.persist(ctx, id, now); err != nil {
		return "", err
	}
	m.current = id
	log.Debug().Str("component", "session").Str("session_id", id).Msg("Created new session")
	return id, nil
}

// Extend rewrites the expiry to now + timeout and rewrites both keys so
// their storage TTLs slide with the window. This is the only way a session
// outlives its window; the storage layer must never end one on its own.
func (m *Manager) Extend(ctx context.Context) error {
	id, err := m.store.Get(ctx, m.idKey())
	if err != nil {
		return err
	}
	return m.persist(ctx, id, m.now())
}

// Clear removes the persisted id and expiry together.
func (m *Manager) Clear(ctx context.Context) error {
	m.current = ""
	return m.store.Del(ctx, m.idKey(), m.expiryKey())
}

// Current returns the last session id handed out by GetOrCreate, or "" if
// none was created yet in this page lifetime.
func (m *Manager) Current() string {
	return m.current
}

// expiryAfter reports whether the persisted expiry parses and lies after t.
// A missing or malformed expiry counts as expired.
func (m *Manager) expiryAfter(ctx context.Context, t time.Time) bool {
	raw, err := m.store.Get(ctx, m.expiryKey())
	if err != nil {
		return false
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return false
	}
	return t.Before(time.UnixMilli(millis))
}

func (m *Manager) persist(ctx context.Context, id string, now time.Time) error {
	if err := m.store.Set(ctx, m.idKey(), id, m.keyTTL()); err != nil {
		return err
	}
	expiresAt := now.Add(m.timeout)
	return m.store.Set(ctx, m.expiryKey(), strconv.FormatInt(expiresAt.UnixMilli(), 10), m.keyTTL())
}

// keyTTL is a storage-level safety net well past the logical expiry; the
// expiry comparison above is what actually ends a session.
func (m *Manager) keyTTL() time.Duration {
	return 2 * m.timeout
}

// newSessionID builds a collision-resistant id from the creation time and a
// random suffix.
func newSessionID(now time.Time) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("sess_%d_%s", now.UnixMilli(), suffix)
}
