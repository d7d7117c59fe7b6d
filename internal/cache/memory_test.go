package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider()

	_, err := m.Get(ctx, "eeg:analysis:a")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("payload")
	require.NoError(t, m.Set(ctx, "eeg:analysis:a", value, 0))
	value[0] = 'X'

	got, err := m.Get(ctx, "eeg:analysis:a")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got), "stored values are copied")

	require.NoError(t, m.Del(ctx, "eeg:analysis:a"))
	_, err = m.Get(ctx, "eeg:analysis:a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryProviderExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	m := NewMemoryProvider()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, 1, m.Len())

	now = now.Add(59 * time.Second)
	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, m.Len())
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider()

	type result struct {
		Recording string    `json:"recording"`
		Mean      []float64 `json:"mean"`
	}
	in := result{Recording: "chb01_03.edf", Mean: []float64{0.25, 0.5}}
	require.NoError(t, SetJSON(ctx, m, "k", in, 0))

	var out result
	require.NoError(t, GetJSON(ctx, m, "k", &out))
	assert.Equal(t, in, out)

	require.NoError(t, m.Set(ctx, "bad", []byte("{"), 0))
	assert.Error(t, GetJSON(ctx, m, "bad", &out))
	assert.ErrorIs(t, GetJSON(ctx, m, "missing", &out), ErrCacheMiss)
	assert.ErrorIs(t, GetJSON(ctx, NoopProvider{}, "k", &out), ErrCacheMiss)
}
