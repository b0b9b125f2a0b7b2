package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetMissIsNotError(t *testing.T) {
	m := NewMemory()
	v, found, err := m.Get(context.Background(), "current:Delhi")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, v)
}

func TestMemory_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "current:Delhi", []byte(`{"a":1}`), DefaultTTL))

	now = now.Add(DefaultTTL - time.Second)
	v, found, err := m.Get(ctx, "current:Delhi")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"a":1}`, string(v))

	now = now.Add(time.Second)
	_, found, err = m.Get(ctx, "current:Delhi")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, found, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "abc", string(got))
}

func TestBadger_InMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := NewBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, found, err := b.Get(ctx, "forecast:Delhi")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Set(ctx, "forecast:Delhi", []byte(`{"list":[]}`), time.Minute))
	v, found, err := b.Get(ctx, "forecast:Delhi")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"list":[]}`, string(v))
}

func TestCompressed_StoresEncodedValues(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	c, err := NewCompressed(inner)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	payload := bytes.Repeat([]byte(`{"weather":[{"main":"Clear"}]}`), 50)
	require.NoError(t, c.Set(ctx, "current:Delhi", payload, DefaultTTL))

	raw, found, err := inner.Get(ctx, "current:Delhi")
	require.NoError(t, err)
	require.True(t, found)
	assert.Less(t, len(raw), len(payload))

	got, found, err := c.Get(ctx, "current:Delhi")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload, got)

	_, found, err = c.Get(ctx, "current:Mumbai")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCompressed_CorruptValueIsError(t *testing.T) {
	ctx := context.Background()
	inner := NewMemory()
	c, err := NewCompressed(inner)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.NoError(t, inner.Set(ctx, "k", []byte("not zstd"), 0))
	_, found, err := c.Get(ctx, "k")
	require.Error(t, err)
	assert.False(t, found)
}
