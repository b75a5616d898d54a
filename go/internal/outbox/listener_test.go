package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FetchUnsent(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	args := m.Called(ctx, limit)
	events, _ := args.Get(0).([]OutboxEvent)
	return events, args.Error(1)
}

func (m *mockStore) FetchByID(ctx context.Context, id uuid.UUID) (*OutboxEvent, error) {
	args := m.Called(ctx, id)
	event, _ := args.Get(0).(*OutboxEvent)
	return event, args.Error(1)
}

func (m *mockStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func newTestListener(store EventStore, pub Publisher) *Listener {
	cfg := DefaultListenerConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond
	return &Listener{store: store, publisher: pub, cfg: cfg}
}

func testEvent() OutboxEvent {
	return OutboxEvent{
		ID:          uuid.New(),
		AggregateID: uuid.NewString(),
		EventType:   EventFocusSessionClosed,
		Payload:     []byte(`{"points_earned":25}`),
	}
}

func TestHandleNotification_PublishesAndMarksSent(t *testing.T) {
	ctx := context.Background()
	event := testEvent()

	store := &mockStore{}
	store.On("FetchByID", ctx, event.ID).Return(&event, nil)
	store.On("MarkSent", ctx, event.ID).Return(nil)
	pub := &mockPublisher{}
	pub.On("Publish", ctx, event).Return(nil)

	l := newTestListener(store, pub)
	require.NoError(t, l.handleNotification(ctx, event.ID.String()))

	store.AssertExpectations(t)
	pub.AssertExpectations(t)

	published, last, _ := l.Stats()
	assert.Equal(t, uint64(1), published)
	assert.False(t, last.IsZero())
}

func TestHandleNotification_InvalidID(t *testing.T) {
	l := newTestListener(&mockStore{}, &mockPublisher{})
	assert.Error(t, l.handleNotification(context.Background(), "not-a-uuid"))
}

func TestHandleNotification_AlreadySent(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	store := &mockStore{}
	store.On("FetchByID", ctx, id).Return(nil, ErrEventNotFound)
	pub := &mockPublisher{}

	l := newTestListener(store, pub)
	require.NoError(t, l.handleNotification(ctx, id.String()))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPublishWithRetry_SucceedsAfterFailure(t *testing.T) {
	ctx := context.Background()
	event := testEvent()

	store := &mockStore{}
	store.On("MarkSent", ctx, event.ID).Return(nil).Once()
	pub := &mockPublisher{}
	pub.On("Publish", ctx, event).Return(errors.New("nats: timeout")).Once()
	pub.On("Publish", ctx, event).Return(nil).Once()

	l := newTestListener(store, pub)
	require.NoError(t, l.publishWithRetry(ctx, event))

	pub.AssertNumberOfCalls(t, "Publish", 2)
	store.AssertExpectations(t)
}

func TestPublishWithRetry_GivesUp(t *testing.T) {
	ctx := context.Background()
	event := testEvent()

	store := &mockStore{}
	pub := &mockPublisher{}
	pub.On("Publish", ctx, event).Return(errors.New("nats: no responders"))

	l := newTestListener(store, pub)
	err := l.publishWithRetry(ctx, event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")

	pub.AssertNumberOfCalls(t, "Publish", 3)
	store.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything)
}

func TestProcessUnsent_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	bad := testEvent()
	good := testEvent()

	store := &mockStore{}
	store.On("FetchUnsent", ctx, int32(100)).Return([]OutboxEvent{bad, good}, nil)
	store.On("MarkSent", ctx, good.ID).Return(nil)
	pub := &mockPublisher{}
	pub.On("Publish", ctx, bad).Return(errors.New("rejected"))
	pub.On("Publish", ctx, good).Return(nil)

	l := newTestListener(store, pub)
	require.NoError(t, l.processUnsent(ctx))

	store.AssertCalled(t, "MarkSent", ctx, good.ID)
	store.AssertNotCalled(t, "MarkSent", ctx, bad.ID)
}

func TestProcessUnsent_FetchError(t *testing.T) {
	ctx := context.Background()

	store := &mockStore{}
	store.On("FetchUnsent", ctx, int32(100)).Return(nil, errors.New("connection refused"))

	l := newTestListener(store, &mockPublisher{})
	assert.Error(t, l.processUnsent(ctx))
}
