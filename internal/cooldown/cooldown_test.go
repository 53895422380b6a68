package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldNotifyNewSymbolAlwaysNotifies(t *testing.T) {
	policy := CooldownPolicyDefault()
	assert.True(t, ShouldNotify(policy, Entry{}, true, false, 100, time.Now()))
}

func TestShouldNotifyTierRiseAlwaysNotifies(t *testing.T) {
	policy := CooldownPolicyDefault()
	prev := Entry{LastNotifiedPeak: 100, LastNotifyTime: time.Now()}
	assert.True(t, ShouldNotify(policy, prev, false, true, 100.1, time.Now()))
}

func TestShouldNotifyRequiresRepeatThreshold(t *testing.T) {
	policy := CooldownPolicyDefault()
	prev := Entry{LastNotifiedPeak: 100}
	assert.False(t, ShouldNotify(policy, prev, false, false, 105, time.Now())) // only 5% rise, need 10%
	assert.True(t, ShouldNotify(policy, prev, false, false, 111, time.Now()))
}

func TestShouldNotifyRespectsCooldownMinutes(t *testing.T) {
	policy := Policy{RepeatThresholdPct: 10, CooldownMinutes: 5}
	prev := Entry{LastNotifiedPeak: 100, LastNotifyTime: time.Now()}
	assert.False(t, ShouldNotify(policy, prev, false, false, 115, time.Now()))
	assert.True(t, ShouldNotify(policy, prev, false, false, 115, time.Now().Add(6*time.Minute)))
}

func TestShouldReplaceRequiresFivePercentRiseOverLastNotified(t *testing.T) {
	prev := Entry{LastNotifiedPeak: 100}
	assert.False(t, ShouldReplace(prev, 104))
	assert.True(t, ShouldReplace(prev, 105))
}

func TestMemoryStoreAcquireIsExclusive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "XBTUSD")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Acquire(ctx, "XBTUSD")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, "XBTUSD"))
	ok, err = store.Acquire(ctx, "XBTUSD")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStoreGetSetRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	e := Entry{LastNotifiedPeak: 123.4, LastNotifiedTier: "FAST"}
	require.NoError(t, store.Set(ctx, "ETHUSD", e))

	got, err := store.Get(ctx, "ETHUSD")
	require.NoError(t, err)
	assert.Equal(t, e, got)
}
