package core

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFromHeaders(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	reset := strconv.FormatInt(now.Add(30*time.Second).Unix(), 10)

	snapshot, ok := SnapshotFromHeaders("100", " 42 ", reset, now)
	require.True(t, ok)
	require.Equal(t, 100, snapshot.Limit)
	require.Equal(t, 42, snapshot.Remaining)
	require.Equal(t, now.Add(30*time.Second), snapshot.ResetAt)
	require.Equal(t, 30*time.Second, snapshot.TimeUntilReset(now))
	require.InDelta(t, 0.42, snapshot.FractionRemaining(), 0.0001)
}

func TestSnapshotFromHeadersRejectsBadInput(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name                    string
		limit, remaining, reset string
	}{
		{"missing limit", "", "1", "100"},
		{"missing remaining", "10", "", "100"},
		{"missing reset", "10", "1", ""},
		{"non numeric remaining", "10", "abc", "100"},
		{"non numeric reset", "10", "1", "soon"},
		{"zero limit", "0", "0", "100"},
		{"nan remaining", "10", "NaN", "100"},
		{"infinite remaining", "10", "Inf", "100"},
		{"huge exponent remaining", "10", "1e30", "100"},
		{"overflowing reset", "10", "1", "99999999999999999999"},
		{"infinite limit", "+Inf", "1", "100"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := SnapshotFromHeaders(tc.limit, tc.remaining, tc.reset, now)
			assert.False(t, ok)
		})
	}
}

func TestSnapshotFromHeadersAcceptsFractionalReset(t *testing.T) {
	snap, ok := SnapshotFromHeaders("10", "5", "1700000000.5", time.Now())
	require.True(t, ok)
	assert.Equal(t, int64(1700000000), snap.ResetAt.Unix())
}

func TestRecommendedDelayTiers(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	resetAt := now.Add(10 * time.Second)

	cases := []struct {
		name      string
		remaining int
		want      time.Duration
		reason    string
	}{
		{"normal", 50, 0, ReasonProactive},
		{"above limit", 150, 0, ReasonProactive},
		{"approaching", 19, 500 * time.Millisecond, ReasonApproaching},
		{"nearly exhausted", 4, 10 * time.Second / 4, ReasonNearlyExhausted},
		{"exhausted", 0, 11 * time.Second, ReasonExceeded},
		{"negative remaining", -2, 11 * time.Second, ReasonExceeded},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snapshot := RateLimitSnapshot{Limit: 100, Remaining: tc.remaining, ResetAt: resetAt}
			require.Equal(t, tc.want, snapshot.RecommendedDelay(now))
			require.Equal(t, tc.reason, snapshot.DelayReason())
		})
	}
}

func TestRecommendedDelayClampsPastReset(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	exhausted := RateLimitSnapshot{Limit: 10, Remaining: 0, ResetAt: now.Add(-time.Minute)}
	require.Equal(t, time.Second, exhausted.RecommendedDelay(now))

	nearly := RateLimitSnapshot{Limit: 100, Remaining: 2, ResetAt: now.Add(-time.Minute)}
	require.Equal(t, time.Duration(0), nearly.RecommendedDelay(now))
}

func TestParseWindowKind(t *testing.T) {
	window, ok := ParseWindowKind("")
	require.True(t, ok)
	require.Equal(t, WindowMinute, window)

	window, ok = ParseWindowKind(" Hour ")
	require.True(t, ok)
	require.Equal(t, WindowHour, window)

	_, ok = ParseWindowKind("day")
	require.False(t, ok)
}
