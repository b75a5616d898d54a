package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	LastEventTime     time.Time `json:"last_event_time"`
	EventsPublished   uint64    `json:"events_published"`
	PendingEvents     int       `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type pendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

type connectedChecker interface {
	Connected() bool
}

type listenerStats interface {
	Stats() (uint64, time.Time, bool)
}

// HealthChecker reports on the relay: database, NATS, listener loop and the
// size of the unsent backlog.
type HealthChecker struct {
	listener     listenerStats
	db           Pinger
	pending      pendingCounter
	nats         connectedChecker
	threshold    time.Duration // How long without events before unhealthy
	pendingAlert int
	now          func() time.Time
}

func NewHealthChecker(listener *Listener, db Pinger, repo *Repository, publisher *JetStreamPublisher, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		listener:     listener,
		db:           db,
		pending:      repo,
		nats:         publisher,
		threshold:    threshold,
		pendingAlert: 1000,
		now:          time.Now,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	published, lastTime, running := h.listener.Stats()
	status.EventsPublished = published
	status.LastEventTime = lastTime
	status.ListenerActive = running
	if !running {
		status.Healthy = false
		status.Errors = append(status.Errors, "listener not active")
	}

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.nats != nil {
		status.NATSConnected = h.nats.Connected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if status.DatabaseConnected {
		pending, err := h.pending.CountPending(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > h.pendingAlert {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	// a backlog that is not draining means the relay is stuck
	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		if since := h.now().Sub(status.LastEventTime); since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events published for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}
