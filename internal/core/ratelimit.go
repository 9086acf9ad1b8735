package core

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// WindowKind identifies the quota window a snapshot belongs to.
type WindowKind string

const (
	WindowMinute WindowKind = "minute"
	WindowHour   WindowKind = "hour"
)

// Windows lists the tracked windows in reporting order.
var Windows = []WindowKind{WindowMinute, WindowHour}

// ParseWindowKind normalizes a window name. Unknown values report false.
func ParseWindowKind(value string) (WindowKind, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(WindowMinute):
		return WindowMinute, true
	case string(WindowHour):
		return WindowHour, true
	default:
		return "", false
	}
}

// Delay policy knobs.
var (
	// NearlyExhaustedFraction is the remaining/limit ratio below which the
	// remaining quota is spread evenly over the time left in the window.
	NearlyExhaustedFraction = 0.05

	// ApproachingFraction is the remaining/limit ratio below which a fixed
	// ApproachingDelay is applied.
	ApproachingFraction = 0.20

	ApproachingDelay = 500 * time.Millisecond

	// ExhaustedMargin is added to the time until reset once a window is exhausted.
	ExhaustedMargin = time.Second
)

// Reasons reported with delay notifications, highest priority first.
const (
	ReasonExceeded        = "Rate limit exceeded"
	ReasonNearlyExhausted = "Rate limit nearly exhausted"
	ReasonApproaching     = "Approaching rate limit"
	ReasonProactive       = "Proactive rate limiting"
)

// RateLimitSnapshot is the quota state of one window as last observed.
// Values are immutable; a newer observation replaces the whole snapshot.
type RateLimitSnapshot struct {
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	ObservedAt time.Time `json:"observed_at"`
}

// SnapshotFromHeaders builds a snapshot from raw header values. Reset is Unix
// seconds. Missing, non-numeric or non-positive limit values report false.
func SnapshotFromHeaders(limit, remaining, reset string, now time.Time) (RateLimitSnapshot, bool) {
	limitValue, ok := parseHeaderInt(limit)
	if !ok || limitValue <= 0 {
		return RateLimitSnapshot{}, false
	}
	remainingValue, ok := parseHeaderInt(remaining)
	if !ok {
		return RateLimitSnapshot{}, false
	}
	resetValue, ok := parseHeaderInt(reset)
	if !ok {
		return RateLimitSnapshot{}, false
	}

	return RateLimitSnapshot{
		Limit:      int(limitValue),
		Remaining:  int(remainingValue),
		ResetAt:    time.Unix(resetValue, 0).UTC(),
		ObservedAt: now.UTC(),
	}, true
}

func parseHeaderInt(value string) (int64, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false
	}
	if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return parsed, true
	}
	// Fractional values such as "1700000000.5" truncate; anything outside a
	// safe integer range is treated as malformed.
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || math.Abs(parsed) >= 1<<62 {
		return 0, false
	}
	return int64(parsed), true
}

// TimeUntilReset may be negative when the reset time has passed or clocks disagree.
func (s RateLimitSnapshot) TimeUntilReset(now time.Time) time.Duration {
	return s.ResetAt.Sub(now)
}

// FractionRemaining returns remaining/limit.
func (s RateLimitSnapshot) FractionRemaining() float64 {
	if s.Limit <= 0 {
		return 0
	}
	return float64(s.Remaining) / float64(s.Limit)
}

// Exhausted reports whether no requests are left in the window.
func (s RateLimitSnapshot) Exhausted() bool {
	return s.Remaining <= 0
}

// RecommendedDelay returns the wait to apply before the next request.
func (s RateLimitSnapshot) RecommendedDelay(now time.Time) time.Duration {
	untilReset := s.TimeUntilReset(now)
	if untilReset < 0 {
		untilReset = 0
	}

	switch {
	case s.Exhausted():
		return untilReset + ExhaustedMargin
	case s.FractionRemaining() < NearlyExhaustedFraction:
		return untilReset / time.Duration(max(s.Remaining, 1))
	case s.FractionRemaining() < ApproachingFraction:
		return ApproachingDelay
	default:
		return 0
	}
}

// DelayReason describes the tier that produced RecommendedDelay.
func (s RateLimitSnapshot) DelayReason() string {
	switch {
	case s.Exhausted():
		return ReasonExceeded
	case s.FractionRemaining() < NearlyExhaustedFraction:
		return ReasonNearlyExhausted
	case s.FractionRemaining() < ApproachingFraction:
		return ReasonApproaching
	default:
		return ReasonProactive
	}
}
