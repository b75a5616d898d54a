package natskv

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/fokus/go/internal/sharedtimer"
)

func TestAvailable_Unbound(t *testing.T) {
	var s *Store
	assert.False(t, s.Available())
	assert.False(t, (&Store{}).Available())
}

// connectTest needs a JetStream-enabled server, e.g. `nats-server -js`.
func connectTest(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("FOKUS_TEST_NATS_URL")
	if url == "" {
		t.Skip("FOKUS_TEST_NATS_URL not set")
	}

	cfg := DefaultConfig()
	cfg.URL = url
	cfg.Bucket = "FOKUS_TIMER_TEST"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type recorder struct {
	mu    sync.Mutex
	notes []sharedtimer.Notification
}

func (r *recorder) add(n sharedtimer.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) all() []sharedtimer.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sharedtimer.Notification(nil), r.notes...)
}

func TestStore_EchoesOwnWrites(t *testing.T) {
	s := connectTest(t)
	require.True(t, s.Available())

	key := "timer-" + uuid.NewString()
	ctx := context.Background()
	rec := &recorder{}

	sub, err := s.Subscribe(ctx, key, rec.add)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	// empty key reports a nil record first
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Nil(t, rec.all()[0].Data)

	require.NoError(t, s.Write(ctx, key, []byte(`{"status":"idle","durationMs":60000}`)))
	require.Eventually(t, func() bool { return len(rec.all()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `{"status":"idle","durationMs":60000}`, string(rec.all()[1].Data))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"idle","durationMs":60000}`, string(got))

	missing, err := s.Get(ctx, key+"-missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
