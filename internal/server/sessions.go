package server

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/quantumtrader/academy/internal/app"
)

const (
	learnerHeader = "X-Learner-ID"
	learnerCookie = "learner"
	cookieMaxAge  = 365 * 24 * time.Hour

	DefaultMaxSessions = 10000
	DefaultSessionIdle = 30 * time.Minute
)

var learnerIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Sessions keeps one started App per learner. At most maxSessions apps are
// held; the least recently used one is dropped first and any app idle for
// longer than the idle timeout expires. A dropped learner is bootstrapped
// again from durable storage on the next request.
type Sessions struct {
	newApp func(learnerID string) *app.App

	apps  *expirable.LRU[string, *app.App]
	group singleflight.Group
}

// NewSessions creates a session registry. newApp builds an unstarted App.
// Non-positive limits fall back to DefaultMaxSessions and DefaultSessionIdle.
func NewSessions(newApp func(learnerID string) *app.App, maxSessions int, idle time.Duration) *Sessions {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	onEvict := func(learnerID string, _ *app.App) {
		slog.Debug("session dropped", "learner_id", learnerID)
	}
	return &Sessions{
		newApp: newApp,
		apps:   expirable.NewLRU[string, *app.App](maxSessions, onEvict, idle),
	}
}

// Get returns the learner's App, starting it on first use. An App whose
// bootstrap failed is returned partially initialised and is not cached, so
// the next request retries.
func (s *Sessions) Get(ctx context.Context, learnerID string) *app.App {
	if a, ok := s.apps.Get(learnerID); ok {
		// Re-adding restarts the idle timer.
		s.apps.Add(learnerID, a)
		return a
	}

	v, _, _ := s.group.Do(learnerID, func() (any, error) {
		if existing, ok := s.apps.Peek(learnerID); ok {
			return existing, nil
		}

		a := s.newApp(learnerID)
		// Bootstrap outlives the request that triggered it.
		if err := a.Start(context.WithoutCancel(ctx)); err != nil {
			return a, nil
		}
		s.apps.Add(learnerID, a)
		return a, nil
	})
	return v.(*app.App)
}

// Len returns the number of held sessions.
func (s *Sessions) Len() int {
	return s.apps.Len()
}

// learnerID identifies the learner from the X-Learner-ID header or the
// learner cookie, issuing a new cookie when neither is present or valid.
func learnerID(w http.ResponseWriter, r *http.Request) string {
	if id := r.Header.Get(learnerHeader); learnerIDRe.MatchString(id) {
		return id
	}
	if c, err := r.Cookie(learnerCookie); err == nil && learnerIDRe.MatchString(c.Value) {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     learnerCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
