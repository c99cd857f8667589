package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/friendnet-labs/friendsync/model"
)

func TestIsDue(t *testing.T) {
	now := time.Now()
	source := &model.FeedSource{NextPoll: now.Add(time.Minute)}
	require.False(t, IsDue(source, now))

	source.NextPoll = now
	require.True(t, IsDue(source, now))

	source.NextPoll = now.Add(-time.Minute)
	require.True(t, IsDue(source, now))
}

func TestCanPollNowExclusionWindow(t *testing.T) {
	now := time.Now()
	source := &model.FeedSource{NextPoll: now.Add(-time.Minute)}

	// a poll started 30s ago blocks the weak-exclusion check
	source.LastPollStarted = now.Add(-30 * time.Second)
	require.False(t, CanPollNow(source, now))

	source.LastPollStarted = now.Add(-2 * time.Minute)
	require.True(t, CanPollNow(source, now))
}

func TestCompleteGrowsAndClampsInterval(t *testing.T) {
	now := time.Now()
	source := &model.FeedSource{
		PollingInterval:  int(time.Hour / time.Second),
		IntervalModifier: 150,
	}

	for i := 0; i < 50; i++ {
		Complete(source, now)
		interval := time.Duration(source.PollingInterval) * time.Second
		require.LessOrEqual(t, interval, MaxPollingInterval)
		require.GreaterOrEqual(t, interval, MinPollingInterval)
		require.False(t, source.NextPoll.Before(now))
	}

	// growth saturates at one week
	require.Equal(t, int(MaxPollingInterval/time.Second), source.PollingInterval)
}

func TestCompleteAppliesBacktrack(t *testing.T) {
	now := time.Now()
	source := &model.FeedSource{
		PollingInterval:  int(time.Hour / time.Second),
		IntervalModifier: 100,
	}
	Complete(source, now)
	require.Equal(t, now.Add(time.Hour-PollBacktrack), source.NextPoll)
}

func TestCompleteClampsModifier(t *testing.T) {
	now := time.Now()

	shrinking := &model.FeedSource{
		PollingInterval:  int(2 * time.Hour / time.Second),
		IntervalModifier: 50, // below the floor, treated as 100
	}
	Complete(shrinking, now)
	require.Equal(t, int(2*time.Hour/time.Second), shrinking.PollingInterval)

	exploding := &model.FeedSource{
		PollingInterval:  int(time.Hour / time.Second),
		IntervalModifier: 10000, // above the ceiling, treated as 500
	}
	Complete(exploding, now)
	require.Equal(t, int(5*time.Hour/time.Second), exploding.PollingInterval)
}

func TestEffectiveIntervalClampsStoredValues(t *testing.T) {
	source := &model.FeedSource{PollingInterval: 1}
	require.Equal(t, MinPollingInterval, EffectiveInterval(source))

	source.PollingInterval = int(30 * 24 * time.Hour / time.Second)
	require.Equal(t, MaxPollingInterval, EffectiveInterval(source))
}
