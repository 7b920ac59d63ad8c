package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/supportdesk/pkg/model"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache() (*MemoryCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewMemoryCache(TTL{Online: 15 * time.Second, Typing: 5 * time.Second}).WithClock(clock.now), clock
}

func TestMemoryCache_TypingExpires(t *testing.T) {
	ctx := context.Background()
	cache, clock := newTestCache()

	require.NoError(t, cache.SetTyping(ctx, 42, model.RoleOperator))

	clock.advance(time.Second)
	p, err := cache.Snapshot(ctx, 42, model.RoleOperator)
	require.NoError(t, err)
	assert.True(t, p.Typing, "typing within TTL")
	assert.True(t, p.Online, "typing counts as activity")

	clock.advance(5 * time.Second)
	p, err = cache.Snapshot(ctx, 42, model.RoleOperator)
	require.NoError(t, err)
	assert.False(t, p.Typing, "typing after TTL without heartbeat")
	assert.True(t, p.Online)
}

func TestMemoryCache_HeartbeatExtends(t *testing.T) {
	ctx := context.Background()
	cache, clock := newTestCache()

	require.NoError(t, cache.SetTyping(ctx, 1, model.RoleRequester))
	clock.advance(4 * time.Second)
	require.NoError(t, cache.SetTyping(ctx, 1, model.RoleRequester))
	clock.advance(4 * time.Second)

	p, err := cache.Snapshot(ctx, 1, model.RoleRequester)
	require.NoError(t, err)
	assert.True(t, p.Typing, "last write wins within the TTL window")
}

func TestMemoryCache_RolesAndConversationsAreIndependent(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache()

	require.NoError(t, cache.Touch(ctx, 1, model.RoleRequester))

	p, _ := cache.Snapshot(ctx, 1, model.RoleOperator)
	assert.False(t, p.Online)
	p, _ = cache.Snapshot(ctx, 2, model.RoleRequester)
	assert.False(t, p.Online)
	p, _ = cache.Snapshot(ctx, 1, model.RoleRequester)
	assert.True(t, p.Online)
	assert.False(t, p.Typing)
}

func TestMemoryCache_Sweep(t *testing.T) {
	ctx := context.Background()
	cache, clock := newTestCache()

	require.NoError(t, cache.Touch(ctx, 1, model.RoleRequester))
	require.NoError(t, cache.SetTyping(ctx, 2, model.RoleOperator))
	assert.Equal(t, 2, cache.Len())

	clock.advance(10 * time.Second)
	assert.Equal(t, 0, cache.Sweep(), "online flags still live")

	clock.advance(6 * time.Second)
	assert.Equal(t, 2, cache.Sweep())
	assert.Equal(t, 0, cache.Len())
}
