package sharedtimer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SubscribeDeliversCurrentValue(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, "k", []byte("v1")))

	var got []Notification
	sub, err := store.Subscribe(ctx, "k", func(n Notification) { got = append(got, n) })
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, []byte("v1"), got[0].Data)

	require.NoError(t, store.Write(ctx, "k", []byte("v2")))
	require.NoError(t, store.Write(ctx, "other", []byte("x")))
	require.Len(t, got, 2)
	assert.Equal(t, []byte("v2"), got[1].Data)

	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, store.Write(ctx, "k", []byte("v3")))
	assert.Len(t, got, 2)
	assert.Equal(t, []byte("v3"), store.Get("k"))
}

func TestMemoryStore_MissingKeyIsNil(t *testing.T) {
	store := NewMemoryStore()

	var got []Notification
	_, err := store.Subscribe(context.Background(), "missing", func(n Notification) { got = append(got, n) })
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Data)
	assert.Nil(t, store.Get("missing"))
}

func TestMemoryStore_FailWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	store.FailWrites(boom)
	assert.ErrorIs(t, store.Write(ctx, "k", []byte("v")), boom)
	assert.Nil(t, store.Get("k"))

	store.FailWrites(nil)
	assert.NoError(t, store.Write(ctx, "k", []byte("v")))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Write(ctx, "k", []byte("v")), context.Canceled)
	_, err := store.Subscribe(ctx, "k", func(Notification) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Write(context.Background(), "k", []byte("abc")))

	b := store.Get("k")
	b[0] = 'z'
	assert.Equal(t, []byte("abc"), store.Get("k"))
}
