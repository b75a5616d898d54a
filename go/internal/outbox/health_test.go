package outbox

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeStats struct {
	published uint64
	last      time.Time
	running   bool
}

func (f fakeStats) Stats() (uint64, time.Time, bool) { return f.published, f.last, f.running }

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakePending struct{ n int }

func (f fakePending) CountPending(context.Context) (int, error) { return f.n, nil }

type fakeConn bool

func (f fakeConn) Connected() bool { return bool(f) }

func newTestHealth(stats fakeStats, ping error, pending int, connected bool, now time.Time) *HealthChecker {
	return &HealthChecker{
		listener:     stats,
		db:           fakePinger{err: ping},
		pending:      fakePending{n: pending},
		nats:         fakeConn(connected),
		threshold:    time.Minute,
		pendingAlert: 1000,
		now:          func() time.Time { return now },
	}
}

func TestHealthCheck_Healthy(t *testing.T) {
	now := time.Now()
	h := newTestHealth(fakeStats{published: 3, last: now, running: true}, nil, 0, true, now)

	status := h.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Empty(t, status.Errors)
	assert.Equal(t, uint64(3), status.EventsPublished)
}

func TestHealthCheck_StuckBacklog(t *testing.T) {
	now := time.Now()
	h := newTestHealth(fakeStats{published: 3, last: now.Add(-5 * time.Minute), running: true}, nil, 12, true, now)

	status := h.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, 12, status.PendingEvents)
}

func TestHealthCheck_DatabaseDown(t *testing.T) {
	now := time.Now()
	h := newTestHealth(fakeStats{running: true}, errors.New("dial tcp: refused"), 0, true, now)

	status := h.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.False(t, status.DatabaseConnected)
}

func TestHealthServeHTTP_Unhealthy(t *testing.T) {
	h := newTestHealth(fakeStats{running: false}, nil, 0, false, time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "listener not active")
}
