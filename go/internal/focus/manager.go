package focus

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/models"
)

// Manager holds one Engine per client that has a session, and drives all of
// them from a single ticker. Engines exist only between Start and the
// Stop/Reset that ends their session, so reads never allocate.
type Manager struct {
	clock    Clock
	settings models.Settings
	ledger   Ledger
	tasks    TaskLookup
	sessions SessionRepository

	mu      sync.Mutex
	engines map[string]*managedEngine
}

type managedEngine struct {
	engine   *Engine
	starting int // Start calls in progress; the entry is kept while > 0
}

func NewManager(clock Clock, settings models.Settings, ledger Ledger, taskLookup TaskLookup, sessions SessionRepository) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		clock:    clock,
		settings: settings,
		ledger:   ledger,
		tasks:    taskLookup,
		sessions: sessions,
		engines:  make(map[string]*managedEngine),
	}
}

// Start begins a session for clientID, creating its engine if needed. A
// failed start leaves no engine behind unless one was already running.
func (m *Manager) Start(ctx context.Context, clientID string, targetMinutes int, taskID *string) (*Engine, error) {
	m.mu.Lock()
	me, ok := m.engines[clientID]
	if !ok {
		me = &managedEngine{engine: NewEngine(m.clock, m.settings, m.ledger, m.tasks, m.sessions)}
		m.engines[clientID] = me
		log.Debug().Str("client_id", clientID).Msg("focus engine created")
	}
	me.starting++
	m.mu.Unlock()

	err := me.engine.Start(ctx, targetMinutes, taskID)

	m.mu.Lock()
	me.starting--
	m.mu.Unlock()

	if err != nil {
		m.Release(clientID)
		return nil, err
	}
	return me.engine, nil
}

// Lookup returns the engine for clientID without creating one.
func (m *Manager) Lookup(clientID string) (*Engine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	me, ok := m.engines[clientID]
	if !ok {
		return nil, false
	}
	return me.engine, true
}

// Release drops the engine for clientID once it has no active session and no
// Start is in progress. It is called after Stop and Reset.
func (m *Manager) Release(clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	me, ok := m.engines[clientID]
	if !ok || me.starting > 0 || me.engine.State().IsActive {
		return
	}
	delete(m.engines, clientID)
	log.Debug().Str("client_id", clientID).Msg("focus engine released")
}

// Len returns the number of engines currently held.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.engines)
}

// Run ticks every engine once per TickInterval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("focus manager shutting down")
			return
		case <-ticker.Chan():
			m.mu.Lock()
			engines := make([]*Engine, 0, len(m.engines))
			for _, me := range m.engines {
				engines = append(engines, me.engine)
			}
			m.mu.Unlock()

			for _, e := range engines {
				e.Tick()
			}
		}
	}
}
