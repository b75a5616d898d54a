package sqlutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/sqlc-dev/pqtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringConverters(t *testing.T) {
	assert.False(t, ToSqlString(nil).Valid)

	s := "task-1"
	ns := ToSqlString(&s)
	require.True(t, ns.Valid)
	assert.Equal(t, "task-1", *FromSqlStringPtr(ns))

	assert.Nil(t, FromSqlStringPtr(sql.NullString{}))
	assert.Equal(t, "fallback", FromSqlString(sql.NullString{}, "fallback"))
}

func TestTimeConverters(t *testing.T) {
	assert.False(t, ToSqlTime(nil).Valid)
	assert.Nil(t, FromSqlTime(sql.NullTime{}))

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	got := FromSqlTime(ToSqlTime(&now))
	require.NotNil(t, got)
	assert.True(t, got.Equal(now))
}

func TestNullRawMessage(t *testing.T) {
	type snap struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	empty, err := ToNullRawMessage(nil)
	require.NoError(t, err)
	assert.False(t, empty.Valid)

	var nilSnap *snap
	empty, err = ToNullRawMessage(nilSnap)
	require.NoError(t, err)
	assert.False(t, empty.Valid)

	raw, err := ToNullRawMessage(&snap{ID: "t1", Title: "write report"})
	require.NoError(t, err)
	require.True(t, raw.Valid)
	assert.JSONEq(t, `{"id":"t1","title":"write report"}`, string(raw.RawMessage))

	var out snap
	ok, err := FromNullRawMessage(raw, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "write report", out.Title)

	ok, err = FromNullRawMessage(pqtype.NullRawMessage{}, &out)
	require.NoError(t, err)
	assert.False(t, ok)
}
