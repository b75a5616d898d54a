package main

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/config"
	"github.com/mcdev12/fokus/go/internal/focus"
	"github.com/mcdev12/fokus/go/internal/gateway"
	"github.com/mcdev12/fokus/go/internal/rewards"
	"github.com/mcdev12/fokus/go/internal/sharedtimer"
	"github.com/mcdev12/fokus/go/internal/sharedtimer/natskv"
	"github.com/mcdev12/fokus/go/internal/tasks"
)

type Services struct {
	Timer   *sharedtimer.Reconciler
	Focus   *focus.Manager
	Gateway *gateway.Service

	kv *natskv.Store
}

func setupServices(ctx context.Context, cfg config.Config, database *sql.DB) *Services {
	// Wire up dependency injection chain
	// Database layer → Repository layer → Engine layer → Gateway
	clock := clockwork.NewRealClock()
	services := &Services{}

	// Shared timer
	var store sharedtimer.Store
	if cfg.NATS.Disabled {
		log.Warn().Msg("NATS disabled, shared timer is local to this process")
		store = sharedtimer.NewMemoryStore()
	} else {
		kv, err := natskv.Connect(ctx, cfg.NATSKV("fokusd"))
		if err != nil {
			// the reconciler stays inert and the API reports it
			log.Error().Err(err).Str("url", cfg.NATS.URL).Msg("shared timer store unavailable")
		} else {
			services.kv = kv
			store = kv
		}
	}
	services.Timer = sharedtimer.NewReconciler(store, clock, cfg.Reconciler())

	// Focus sessions
	var (
		ledger   focus.Ledger
		taskRepo *tasks.Repository
		sessions focus.SessionRepository
	)
	if database != nil {
		ledger = rewards.NewPostgresLedger(database)
		taskRepo = tasks.NewRepository(database)
		sessions = focus.NewRepository(database)
	}

	var taskLookup focus.TaskLookup
	if taskRepo != nil {
		taskLookup = taskRepo
	}
	services.Focus = focus.NewManager(clock, cfg.Settings, ledger, taskLookup, sessions)

	// Gateway
	gwCfg := gateway.DefaultConfig()
	gwCfg.TickInterval = cfg.Timer.TickInterval
	services.Gateway = gateway.NewService(gwCfg, clock, services.Timer, services.Focus)
	if taskRepo != nil {
		services.Gateway.SetTaskLister(taskRepo)
	}

	if !cfg.NATS.Disabled {
		consumerCfg := gateway.DefaultJetStreamConsumerConfig()
		consumerCfg.URL = cfg.NATS.URL
		consumer, err := gateway.NewEventConsumer(services.Gateway.Connections(), consumerCfg)
		if err != nil {
			// the stream appears once the relay has run
			log.Warn().Err(err).Msg("session events will not be pushed to websocket clients")
		} else {
			services.Gateway.SetEventConsumer(consumer)
		}
	}

	return services
}

// Start runs the background loops. They stop when ctx is cancelled.
func (s *Services) Start(ctx context.Context) {
	go func() {
		if err := s.Timer.Run(ctx); err != nil {
			if errors.Is(err, sharedtimer.ErrStoreUnavailable) {
				log.Warn().Msg("shared timer disabled, store unavailable")
				return
			}
			log.Error().Err(err).Msg("shared timer reconciler failed")
		}
	}()

	go s.Focus.Run(ctx)

	go func() {
		if err := s.Gateway.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()
}

func (s *Services) Close() {
	if s.kv != nil {
		if err := s.kv.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close timer store")
		}
	}
}
