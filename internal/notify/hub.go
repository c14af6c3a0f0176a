// Package notify fans progress updates out to each learner's live
// subscribers (browser tabs connected over WebSocket).
package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/quantumtrader/academy/internal/progress"
)

const (
	subscriberBuffer = 8
	writeTimeout     = 5 * time.Second
)

type subscriber struct {
	ch chan progress.Progress
}

// Hub routes progress updates to subscribers by learner.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers a subscriber for learnerID. The returned cancel
// function unregisters it and closes the channel.
func (h *Hub) Subscribe(learnerID string) (<-chan progress.Progress, func()) {
	s := &subscriber{ch: make(chan progress.Progress, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[learnerID] == nil {
		h.subs[learnerID] = make(map[*subscriber]struct{})
	}
	h.subs[learnerID][s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[learnerID], s)
			if len(h.subs[learnerID]) == 0 {
				delete(h.subs, learnerID)
			}
			h.mu.Unlock()
			close(s.ch)
		})
	}
}

// Publish sends p to every subscriber of learnerID without blocking. A
// subscriber whose buffer is full drops its oldest pending update.
func (h *Hub) Publish(learnerID string, p progress.Progress) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for s := range h.subs[learnerID] {
		for {
			select {
			case s.ch <- p:
			default:
				select {
				case <-s.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribers returns the number of live subscribers of learnerID.
func (h *Hub) Subscribers(learnerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[learnerID])
}

// ServeWS upgrades the request to a WebSocket, sends current and then every
// published update for learnerID until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, learnerID string, current progress.Progress, originPatterns []string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
	if err != nil {
		slog.Warn("websocket accept failed", "learner_id", learnerID, "error", err)
		return
	}
	defer conn.CloseNow()

	updates, cancel := h.Subscribe(learnerID)
	defer cancel()

	// Clients never send; CloseRead handles control frames and cancels
	// ctx when the peer disconnects.
	ctx := conn.CloseRead(r.Context())

	if err := write(ctx, conn, current); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			if err := write(ctx, conn, p); err != nil {
				slog.Debug("websocket write failed", "learner_id", learnerID, "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, p progress.Progress) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, p)
}
