package quota

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshTrackerAllowsFullBudget(t *testing.T) {
	tr := New(4, time.Minute)

	for i := 0; i < 4; i++ {
		require.Truef(t, tr.CanProceed(), "request %d should be allowed", i+1)
		tr.Consume()
	}
	assert.False(t, tr.CanProceed(), "budget exhausted within the window")
}

func TestWindowExpiryResetsBudget(t *testing.T) {
	tr := New(4, time.Minute)

	now := time.Now()
	tr.SetClock(func() time.Time { return now })

	for i := 0; i < 4; i++ {
		tr.CanProceed()
		tr.Consume()
	}
	require.False(t, tr.CanProceed())

	// Once the reset instant passes, the budget refills.
	now = now.Add(time.Minute + time.Second)
	assert.True(t, tr.CanProceed())
	assert.Equal(t, 4, tr.Info().Remaining)
}

func TestHeadersAreAuthoritative(t *testing.T) {
	tr := New(4, time.Minute)

	resetAt := time.Now().Add(45 * time.Second)
	tr.UpdateFromResponse("1", fmt.Sprint(resetAt.Unix()))

	info := tr.Info()
	assert.Equal(t, 1, info.Remaining)
	assert.Equal(t, resetAt.Unix(), info.ResetAt.Unix())

	tr.UpdateFromResponse("0", "")
	assert.False(t, tr.CanProceed())
}

func TestMalformedHeadersAreIgnored(t *testing.T) {
	tr := New(4, time.Minute)
	tr.UpdateFromResponse("not-a-number", "also-not")
	assert.Equal(t, 4, tr.Info().Remaining)
}

func TestInfoMinutesUntilReset(t *testing.T) {
	tr := New(4, time.Minute)

	now := time.Now()
	tr.SetClock(func() time.Time { return now })
	tr.UpdateFromResponse("2", fmt.Sprint(now.Add(30*time.Second).Unix()))

	info := tr.Info()
	assert.InDelta(t, 0.5, info.MinutesUntilReset, 0.02)

	// Never negative, even after the window passed.
	now = now.Add(time.Hour)
	assert.Zero(t, tr.Info().MinutesUntilReset)
}

func TestConsumeNeverGoesNegative(t *testing.T) {
	tr := New(1, time.Minute)
	now := time.Now()
	tr.SetClock(func() time.Time { return now })

	tr.CanProceed()
	tr.Consume()
	tr.Consume()
	assert.Equal(t, 0, tr.Info().Remaining)
}
