package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	times map[string]int
	calls int
}

func (p *stubProvider) TravelMinutes(_ context.Context, origin, destination string) (int, error) {
	p.calls++
	m, ok := p.times[origin+"|"+destination]
	if !ok {
		return 0, errors.New("no route")
	}
	return m, nil
}

type memCache struct {
	entries map[string]int
}

func (c *memCache) Get(_ context.Context, key string) (int, bool, error) {
	m, ok := c.entries[key]
	return m, ok, nil
}

func (c *memCache) Put(_ context.Context, key string, minutes int) error {
	c.entries[key] = minutes
	return nil
}

func TestOracleCachesLookups(t *testing.T) {
	provider := &stubProvider{times: map[string]int{"a|b": 25}}
	cache := &memCache{entries: map[string]int{}}
	o := NewTravelOracle(provider, cache)
	ctx := context.Background()

	m, err := o.Minutes(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 25, m)

	m, err = o.Minutes(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 25, m)

	assert.Equal(t, 1, provider.calls)

	stats := o.Stats()
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.ExternalCalls)
}

func TestOracleKeyNormalization(t *testing.T) {
	provider := &stubProvider{times: map[string]int{"a street|b street": 10}}
	cache := &memCache{entries: map[string]int{}}
	o := NewTravelOracle(provider, cache)
	ctx := context.Background()

	_, err := o.Minutes(ctx, "a street", "b street")
	require.NoError(t, err)

	// Same pair with different casing and spacing hits the cache.
	m, err := o.Minutes(ctx, "  A   Street ", "B  STREET")
	require.NoError(t, err)
	assert.Equal(t, 10, m)
	assert.Equal(t, 1, provider.calls)
}

func TestOracleSameAddressIsFree(t *testing.T) {
	provider := &stubProvider{times: map[string]int{}}
	o := NewTravelOracle(provider, nil)

	m, err := o.Minutes(context.Background(), "Same Place", "same  place")
	require.NoError(t, err)
	assert.Equal(t, 0, m)
	assert.Equal(t, 0, provider.calls)
}

func TestOracleCancellationAborts(t *testing.T) {
	provider := &stubProvider{times: map[string]int{}}
	o := NewTravelOracle(provider, &memCache{entries: map[string]int{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Minutes(ctx, "a", "b")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int64(0), o.Stats().Failures)
}

func TestOracleDegradesToUnreachable(t *testing.T) {
	provider := &stubProvider{times: map[string]int{}}
	o := NewTravelOracle(provider, &memCache{entries: map[string]int{}})

	_, err := o.Minutes(context.Background(), "a", "nowhere")
	require.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, int64(1), o.Stats().Failures)
}
