package chat

import (
	"context"
	"sync"
	"time"
)

// DefaultTypingIdle is how long after the last keystroke the local
// typing signal auto-stops. Kept below the server-side indicator expiry
// so remote peers see a clean stop rather than a stale timeout.
const DefaultTypingIdle = 8 * time.Second

type typingAPI interface {
	StartTyping(ctx context.Context, conversationID string) bool
	StopTyping(ctx context.Context, conversationID string) bool
}

// TypingTracker debounces the local user's typing signal for one
// conversation. The first keystroke starts the signal, further
// keystrokes only push the idle deadline out, and the signal stops on
// idle timeout, explicit stop or Close.
type TypingTracker struct {
	api            typingAPI
	conversationID string
	idle           time.Duration

	mu     sync.Mutex
	typing bool
	timer  *time.Timer
	closed bool
}

// TypingOption configures a TypingTracker.
type TypingOption func(*TypingTracker)

// WithIdleTimeout overrides the auto-stop delay.
func WithIdleTimeout(d time.Duration) TypingOption {
	return func(t *TypingTracker) { t.idle = d }
}

// NewTypingTracker creates a tracker for one conversation.
func NewTypingTracker(api typingAPI, conversationID string, opts ...TypingOption) *TypingTracker {
	t := &TypingTracker{
		api:            api,
		conversationID: conversationID,
		idle:           DefaultTypingIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HandleTyping records a keystroke. Only the transition into typing
// issues a start call; repeats reset the idle deadline.
func (t *TypingTracker) HandleTyping(ctx context.Context) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	start := !t.typing
	t.typing = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.idle, func() { t.StopTyping(context.Background()) })
	t.mu.Unlock()

	if start {
		t.api.StartTyping(ctx, t.conversationID)
	}
}

// StopTyping ends the local signal. Safe to call when not typing.
func (t *TypingTracker) StopTyping(ctx context.Context) {
	t.mu.Lock()
	if !t.typing {
		t.mu.Unlock()
		return
	}
	t.typing = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	t.api.StopTyping(ctx, t.conversationID)
}

// Typing reports whether the local signal is active.
func (t *TypingTracker) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// Close stops any active signal and rejects further keystrokes.
func (t *TypingTracker) Close(ctx context.Context) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.StopTyping(ctx)
}
