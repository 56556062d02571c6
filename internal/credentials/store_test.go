package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordExpired(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name    string
		expires int64
		skew    time.Duration
		want    bool
	}{
		{"unknown expiry never expires", 0, 0, false},
		{"future expiry", now.Add(time.Minute).UnixMilli(), 0, false},
		{"exactly now is expired", now.UnixMilli(), 0, true},
		{"past expiry", now.Add(-time.Second).UnixMilli(), 0, true},
		{"skew pulls expiry forward", now.Add(30 * time.Second).UnixMilli(), time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{AccessToken: "a", ExpiresAt: tt.expires}
			assert.Equal(t, tt.want, rec.Expired(now, tt.skew))
		})
	}
}

func TestRecordUntil(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	assert.Equal(t, time.Duration(0), Record{}.Until(now))
	assert.Equal(t, 5*time.Minute, Record{ExpiresAt: now.Add(5 * time.Minute).UnixMilli()}.Until(now))
	assert.Less(t, Record{ExpiresAt: now.Add(-time.Minute).UnixMilli()}.Until(now), time.Duration(0))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	rec, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Write(ctx, Record{AccessToken: "a", RefreshToken: "r"}))

	rec, err = store.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a", rec.AccessToken)

	// Snapshots are copies.
	rec.AccessToken = "mutated"
	again, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", again.AccessToken)

	require.NoError(t, store.Clear(ctx))
	rec, err = store.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
