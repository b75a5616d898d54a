// Package natskv backs the shared timer with a NATS JetStream key-value
// bucket. Watch is the change feed and Put is the last-write-wins write.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fokus/go/internal/sharedtimer"
)

// ErrWatchClosed is delivered when the bucket watcher stops unexpectedly.
var ErrWatchClosed = errors.New("timer watch closed")

type Config struct {
	URL           string
	Bucket        string
	ClientName    string
	History       uint8
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Bucket:        "FOKUS_TIMER",
		ClientName:    "fokus",
		History:       5,
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

type Store struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	bucket string
}

var _ sharedtimer.Store = (*Store)(nil)

// Connect dials NATS and binds the bucket, creating it if needed.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		// fail publishes while disconnected instead of flushing them on reconnect
		nats.ReconnectBufSize(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Shared focus timer",
		History:     cfg.History,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bind key-value bucket %s: %w", cfg.Bucket, err)
	}

	log.Info().
		Str("url", nc.ConnectedUrl()).
		Str("bucket", cfg.Bucket).
		Msg("shared timer bucket ready")

	return &Store{nc: nc, kv: kv, bucket: cfg.Bucket}, nil
}

// Available reports whether the bucket is bound and the connection has not
// been closed. A connection that is only reconnecting still counts.
func (s *Store) Available() bool {
	return s != nil && s.kv != nil && s.nc != nil && !s.nc.IsClosed()
}

// Subscribe watches key. The current value is delivered first; an empty
// bucket is reported as a nil record once the initial values are done.
func (s *Store) Subscribe(ctx context.Context, key string, fn func(sharedtimer.Notification)) (sharedtimer.Subscription, error) {
	wctx, cancel := context.WithCancel(ctx)
	w, err := s.kv.Watch(wctx, key)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}

	sub := &subscription{watcher: w, cancel: cancel, done: make(chan struct{})}
	go sub.loop(wctx, fn)
	return sub, nil
}

// Write puts data under key. A cancelled ctx is checked before publishing so
// an abandoned write is never sent.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get returns the current value of key, nil when the key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (s *Store) Close() error {
	if s.nc != nil {
		return s.nc.Drain()
	}
	return nil
}

type subscription struct {
	watcher jetstream.KeyWatcher
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	stopErr error
}

func (s *subscription) loop(ctx context.Context, fn func(sharedtimer.Notification)) {
	defer close(s.done)

	seen := false
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-s.watcher.Updates():
			if !ok {
				if ctx.Err() == nil {
					fn(sharedtimer.Notification{Err: ErrWatchClosed})
				}
				return
			}
			if entry == nil {
				// end of initial values
				if !seen {
					fn(sharedtimer.Notification{})
				}
				seen = true
				continue
			}
			seen = true
			switch entry.Operation() {
			case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
				fn(sharedtimer.Notification{})
			default:
				fn(sharedtimer.Notification{Data: entry.Value()})
			}
		}
	}
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.cancel()
		s.stopErr = s.watcher.Stop()
		<-s.done
	})
	return s.stopErr
}
