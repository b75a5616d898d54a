package sharedtimer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/fokus/go/internal/models"
)

const now = int64(1_700_000_000_000)

func TestDecode_EmptyIsIdle(t *testing.T) {
	for _, data := range [][]byte{nil, {}, []byte("null"), []byte("{}")} {
		got, err := Decode(data, now)
		require.NoError(t, err, "data=%q", data)
		assert.Equal(t, models.NewIdleTimer(now), got)
	}
}

func TestDecode_MalformedIsIdle(t *testing.T) {
	for _, data := range []string{`{"status":`, `[1,2,3]`, `{"durationMs":"soon"}`, `{"status":"exploded"}`} {
		got, err := Decode([]byte(data), now)
		assert.Error(t, err, "data=%s", data)
		assert.Equal(t, models.NewIdleTimer(now), got)
	}
}

func TestDecode_BrowserRecord(t *testing.T) {
	data := []byte(`{
		"timerId": "default",
		"durationMs": 1500000,
		"startedAt": 1699999990000,
		"pausedAt": 0,
		"pausedDuration": 2500,
		"status": "running",
		"updatedBy": "tab-7",
		"lastUpdated": 1699999990001
	}`)

	got, err := Decode(data, now)
	require.NoError(t, err)

	assert.Equal(t, int64(1500000), got.DurationMs)
	require.NotNil(t, got.StartedAt)
	assert.Equal(t, int64(1699999990000), *got.StartedAt)
	assert.Nil(t, got.PausedAt, "zero timestamps decode as unset")
	assert.Equal(t, int64(2500), got.PausedDurationMs)
	assert.Equal(t, models.TimerStatusRunning, got.Status)
	assert.Equal(t, "tab-7", got.UpdatedBy)
	assert.Equal(t, int64(1699999990001), got.LastUpdated)
}

func TestDecode_Defaults(t *testing.T) {
	got, err := Decode([]byte(`{"durationMs":60000,"startedAt":null,"status":""}`), now)
	require.NoError(t, err)

	assert.Equal(t, models.DefaultTimerID, got.TimerID)
	assert.Equal(t, models.TimerStatusIdle, got.Status)
	assert.Equal(t, now, got.LastUpdated)
	assert.Nil(t, got.StartedAt)
}

func TestEncode_WireNames(t *testing.T) {
	timer := models.SharedTimer{
		TimerID:          models.DefaultTimerID,
		DurationMs:       60000,
		StartedAt:        models.Millis(now),
		PausedDurationMs: 1000,
		Status:           models.TimerStatusRunning,
		LastUpdated:      now,
	}

	data, err := Encode(timer)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "pausedDuration")
	assert.Contains(t, fields, "pausedAt")
	assert.Nil(t, fields["pausedAt"])
	assert.NotContains(t, fields, "updatedBy")

	back, err := Decode(data, now+5)
	require.NoError(t, err)
	assert.Equal(t, keyOf(timer), keyOf(back))
}
