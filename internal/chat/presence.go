package chat

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type presenceAPI interface {
	UpdatePresence(ctx context.Context, status PresenceStatus) bool
}

// PresenceTracker maintains the local user's presence status, pushing
// transitions to the backend only when the status actually changes.
// Trackers start offline so the first Start reliably publishes online.
type PresenceTracker struct {
	api presenceAPI

	mu       sync.Mutex
	status   PresenceStatus
	inFlight bool
	pending  *PresenceStatus
	closed   bool
}

// NewPresenceTracker creates a tracker in the offline state.
func NewPresenceTracker(api presenceAPI) *PresenceTracker {
	return &PresenceTracker{api: api, status: StatusOffline}
}

// Start publishes the initial online status.
func (p *PresenceTracker) Start(ctx context.Context) {
	p.SetStatus(ctx, StatusOnline)
}

// SetStatus transitions to status. Redundant transitions are dropped
// and at most one update is in flight; a transition arriving mid-update
// is coalesced and pushed once the current one completes.
func (p *PresenceTracker) SetStatus(ctx context.Context, status PresenceStatus) {
	p.mu.Lock()
	if p.closed || p.status == status {
		p.mu.Unlock()
		return
	}
	if p.inFlight {
		s := status
		p.pending = &s
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	prev := p.status
	p.status = status
	p.mu.Unlock()

	ok := p.api.UpdatePresence(ctx, status)

	p.mu.Lock()
	p.inFlight = false
	if !ok && p.status == status {
		p.status = prev
	}
	var next *PresenceStatus
	next, p.pending = p.pending, nil
	p.mu.Unlock()

	if next != nil {
		p.SetStatus(ctx, *next)
	}
}

// HandleVisibility maps tab visibility to presence: hidden is away,
// visible is online.
func (p *PresenceTracker) HandleVisibility(ctx context.Context, visible bool) {
	if visible {
		p.SetStatus(ctx, StatusOnline)
	} else {
		p.SetStatus(ctx, StatusAway)
	}
}

// HandleActivity records user input, restoring online from away.
func (p *PresenceTracker) HandleActivity(ctx context.Context) {
	p.mu.Lock()
	away := p.status == StatusAway
	p.mu.Unlock()
	if away {
		p.SetStatus(ctx, StatusOnline)
	}
}

// Status returns the tracked local status.
func (p *PresenceTracker) Status() PresenceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Close publishes offline best-effort and stops the tracker. The
// offline write uses a short deadline because Close typically runs
// during session teardown.
func (p *PresenceTracker) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.SetStatus(ctx, StatusOffline)

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// StatusDisplay renders a presence entry for display relative to now:
// the status name while online or away, and a bucketed last-seen
// phrase once offline.
func StatusDisplay(up UserPresence, now time.Time) string {
	switch up.Status {
	case StatusOnline:
		return "Online"
	case StatusAway:
		return "Away"
	}
	if up.LastSeen.IsZero() {
		return "Offline"
	}
	since := now.Sub(up.LastSeen)
	switch {
	case since < time.Minute:
		return "Just now"
	case since < time.Hour:
		return fmt.Sprintf("%dm ago", int(since.Minutes()))
	case since < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(since.Hours()))
	case since < 48*time.Hour:
		return "Yesterday"
	case since < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(since.Hours()/24))
	default:
		return up.LastSeen.Format("Jan 2, 2006")
	}
}
