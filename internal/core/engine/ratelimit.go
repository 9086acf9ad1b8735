package engine

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/quipkit/quipkit/internal/core"
)

// Rate limit response headers. Lookups go through http.Header.Get and are
// therefore case-insensitive.
const (
	HeaderRateLimitLimit     = "X-Ratelimit-Limit"
	HeaderRateLimitRemaining = "X-Ratelimit-Remaining"
	HeaderRateLimitReset     = "X-Ratelimit-Reset"
)

// EventKind distinguishes coordinator notifications.
type EventKind string

const (
	EventUpdate EventKind = "update"
	EventDelay  EventKind = "delay"
)

// Event is delivered to subscribers. Snapshot is set for EventUpdate; Delay
// and Reason are set for EventDelay.
type Event struct {
	Kind     EventKind
	Window   core.WindowKind
	Snapshot core.RateLimitSnapshot
	Delay    time.Duration
	Reason   string
}

// WindowClassifier decides which window a response's rate limit headers describe.
type WindowClassifier func(h http.Header) core.WindowKind

// MinuteWindowClassifier attributes every observation to the minute window.
// The service does not label its headers with a window, so this is an
// approximation; see FixedWindowClassifier to route elsewhere.
func MinuteWindowClassifier(http.Header) core.WindowKind {
	return core.WindowMinute
}

// FixedWindowClassifier attributes every observation to window.
func FixedWindowClassifier(window core.WindowKind) WindowClassifier {
	return func(http.Header) core.WindowKind {
		return window
	}
}

// Coordinator tracks the minute and hour window snapshots of one client and
// turns them into a single pre-request delay.
type Coordinator struct {
	Clock      func() time.Time
	Classifier WindowClassifier

	mu        sync.Mutex
	snapshots map[core.WindowKind]core.RateLimitSnapshot

	subMu       sync.Mutex
	subscribers map[int]func(Event)
	nextSubID   int
}

// NewCoordinator returns an empty coordinator using the minute classifier.
func NewCoordinator() *Coordinator {
	return &Coordinator{Classifier: MinuteWindowClassifier}
}

// Update records a new snapshot for window. Unparseable input is ignored.
func (c *Coordinator) Update(limit, remaining, reset string, window core.WindowKind) {
	if c == nil {
		return
	}

	snapshot, ok := core.SnapshotFromHeaders(limit, remaining, reset, c.now())
	if !ok {
		return
	}

	c.mu.Lock()
	if c.snapshots == nil {
		c.snapshots = make(map[core.WindowKind]core.RateLimitSnapshot, len(core.Windows))
	}
	c.snapshots[window] = snapshot
	c.mu.Unlock()

	c.notify(Event{Kind: EventUpdate, Window: window, Snapshot: snapshot})
}

// UpdateFromHeaders feeds the rate limit headers of a response into Update.
func (c *Coordinator) UpdateFromHeaders(h http.Header) {
	if c == nil || h == nil {
		return
	}

	classify := c.Classifier
	if classify == nil {
		classify = MinuteWindowClassifier
	}

	c.Update(
		h.Get(HeaderRateLimitLimit),
		h.Get(HeaderRateLimitRemaining),
		h.Get(HeaderRateLimitReset),
		classify(h),
	)
}

// RequiredDelay returns the largest recommended delay across tracked windows.
func (c *Coordinator) RequiredDelay() time.Duration {
	delay, _ := c.requiredDelay()
	return delay
}

func (c *Coordinator) requiredDelay() (time.Duration, string) {
	if c == nil {
		return 0, ""
	}

	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		delay  time.Duration
		reason string
	)
	for _, window := range core.Windows {
		snapshot, ok := c.snapshots[window]
		if !ok {
			continue
		}
		if d := snapshot.RecommendedDelay(now); d > delay {
			delay = d
			reason = snapshot.DelayReason()
		}
	}

	return delay, reason
}

// Wait blocks for RequiredDelay or until ctx is done. A zero delay returns
// immediately without emitting an event.
func (c *Coordinator) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	delay, reason := c.requiredDelay()
	if delay <= 0 {
		return nil
	}

	c.notify(Event{Kind: EventDelay, Delay: delay, Reason: reason})

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitBlocking sleeps for RequiredDelay. It cannot be cancelled.
func (c *Coordinator) WaitBlocking() {
	delay, reason := c.requiredDelay()
	if delay <= 0 {
		return
	}

	c.notify(Event{Kind: EventDelay, Delay: delay, Reason: reason})
	time.Sleep(delay)
}

// IsExhausted reports whether any tracked window has no requests left.
func (c *Coordinator) IsExhausted() bool {
	if c == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, snapshot := range c.snapshots {
		if snapshot.Exhausted() {
			return true
		}
	}
	return false
}

// Snapshot returns the current snapshot for window, if one has been observed.
func (c *Coordinator) Snapshot(window core.WindowKind) (core.RateLimitSnapshot, bool) {
	if c == nil {
		return core.RateLimitSnapshot{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot, ok := c.snapshots[window]
	return snapshot, ok
}

// WindowStatus is a point-in-time view of one window.
type WindowStatus struct {
	Window   core.WindowKind         `json:"window"`
	Snapshot *core.RateLimitSnapshot `json:"snapshot,omitempty"`
	Delay    time.Duration           `json:"delay"`
	Reason   string                  `json:"reason,omitempty"`
}

// Status reports every window, observed or not, in core.Windows order.
// All windows are copied under one lock so they describe the same moment.
func (c *Coordinator) Status() []WindowStatus {
	now := c.now()
	observed := make(map[core.WindowKind]core.RateLimitSnapshot, len(core.Windows))
	if c != nil {
		c.mu.Lock()
		for _, window := range core.Windows {
			if snapshot, ok := c.snapshots[window]; ok {
				observed[window] = snapshot
			}
		}
		c.mu.Unlock()
	}

	statuses := make([]WindowStatus, 0, len(core.Windows))
	for _, window := range core.Windows {
		status := WindowStatus{Window: window}
		if snapshot, ok := observed[window]; ok {
			status.Snapshot = &snapshot
			status.Delay = snapshot.RecommendedDelay(now)
			if status.Delay > 0 {
				status.Reason = snapshot.DelayReason()
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Reset forgets all observed snapshots.
func (c *Coordinator) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.snapshots = nil
	c.mu.Unlock()
}

// Subscribe registers handler for coordinator events and returns a function
// that removes it. Handlers run on the goroutine that triggered the event.
func (c *Coordinator) Subscribe(handler func(Event)) (unsubscribe func()) {
	if c == nil || handler == nil {
		return func() {}
	}

	c.subMu.Lock()
	if c.subscribers == nil {
		c.subscribers = make(map[int]func(Event))
	}
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = handler
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subscribers, id)
			c.subMu.Unlock()
		})
	}
}

func (c *Coordinator) notify(event Event) {
	c.subMu.Lock()
	handlers := make([]func(Event), 0, len(c.subscribers))
	for _, handler := range c.subscribers {
		handlers = append(handlers, handler)
	}
	c.subMu.Unlock()

	for _, handler := range handlers {
		handler(event)
	}
}

func (c *Coordinator) now() time.Time {
	if c != nil && c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
