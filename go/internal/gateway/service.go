// Package gateway is the HTTP and websocket surface of fokusd: REST commands
// for the shared timer and per-client focus sessions, and a websocket feed
// pushing timer state, ticks and relayed session events to browsers.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/focus"
	"github.com/mcdev12/fokus/go/internal/sharedtimer"
)

// TimerWatcher is a TimerController that reports applied changes.
type TimerWatcher interface {
	TimerController
	OnChange(fn func(sharedtimer.Snapshot))
}

// Service wires the handlers to one connection pool
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	timerHandler      *TimerHandler
	focusHandler      *FocusHandler
	taskHandler       *TaskHandler
	eventConsumer     *EventConsumer

	timer  TimerWatcher
	focus  *focus.Manager
	clock  clockwork.Clock
	config Config
}

type Config struct {
	ConnectionConfig ConnectionConfig
	// TickInterval is how often TimerTick is pushed to websocket clients.
	TickInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		TickInterval:     time.Second,
	}
}

// NewService creates the gateway. A nil clock means the real clock.
func NewService(config Config, clock clockwork.Clock, timer TimerWatcher, manager *focus.Manager) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	cm := NewConnectionManager(config.ConnectionConfig)
	s := &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm, timer, clock),
		timerHandler:      NewTimerHandler(timer),
		focusHandler:      NewFocusHandler(manager),
		timer:             timer,
		focus:             manager,
		clock:             clock,
		config:            config,
	}

	timer.OnChange(s.broadcastState)
	return s
}

// Connections exposes the pool so an EventConsumer can broadcast into it.
func (s *Service) Connections() *ConnectionManager {
	return s.connectionManager
}

// SetEventConsumer attaches a consumer that Start runs alongside the pool.
func (s *Service) SetEventConsumer(ec *EventConsumer) {
	s.eventConsumer = ec
}

// SetTaskLister enables GET /api/tasks. Call before RegisterRoutes.
func (s *Service) SetTaskLister(tasks TaskLister) {
	s.taskHandler = NewTaskHandler(tasks)
}

// Start runs the connection pool, the tick broadcaster and the event
// consumer, if any, until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Dur("tick_interval", s.config.TickInterval).Msg("starting gateway service")

	go s.connectionManager.Start(ctx)

	if s.eventConsumer != nil {
		go func() {
			if err := s.eventConsumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("event consumer failed")
			}
		}()
	}

	ticker := s.clock.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway service shutting down")
			return s.Stop()
		case <-ticker.Chan():
			s.broadcastTick()
		}
	}
}

func (s *Service) Stop() error {
	if s.eventConsumer != nil {
		if err := s.eventConsumer.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop event consumer")
		}
	}
	log.Info().Msg("gateway service stopped")
	return nil
}

func (s *Service) broadcastState(snap sharedtimer.Snapshot) {
	event, err := timerStateEvent(snap, s.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to build timer state event")
		return
	}
	s.connectionManager.Broadcast(event)
}

func (s *Service) broadcastTick() {
	if s.connectionManager.GetConnectionStats().TotalConnections == 0 {
		return
	}
	event, err := timerTickEvent(s.timer.Snapshot(), s.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to build timer tick event")
		return
	}
	s.connectionManager.Broadcast(event)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status       string                 `json:"status"`
	TimerSync    sharedtimer.SyncStatus `json:"timer_sync"`
	FocusEngines int                    `json:"focus_engines"`
	Connections  int                    `json:"connections"`
}

// HandleHealth reports "degraded" while the shared timer store is
// unreachable; the focus endpoints keep working either way.
func (s *Service) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.timer.Snapshot()
	status := HealthStatus{
		Status:       "ok",
		TimerSync:    snap.Status,
		FocusEngines: s.focus.Len(),
		Connections:  s.connectionManager.GetConnectionStats().TotalConnections,
	}
	if !snap.Synced {
		status.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.timerHandler.RegisterRoutes(mux)
	s.focusHandler.RegisterRoutes(mux)
	if s.taskHandler != nil {
		s.taskHandler.RegisterRoutes(mux)
	}
	mux.HandleFunc("GET /health", s.HandleHealth)
	log.Info().Msg("gateway routes registered")
}
