package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakePresenceAPI struct {
	mu      sync.Mutex
	updates []PresenceStatus
	fail    bool
}

func (f *fakePresenceAPI) UpdatePresence(ctx context.Context, status PresenceStatus) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return false
	}
	f.updates = append(f.updates, status)
	return true
}

func (f *fakePresenceAPI) recorded() []PresenceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PresenceStatus, len(f.updates))
	copy(out, f.updates)
	return out
}

func TestPresenceTrackerPublishesOnlyTransitions(t *testing.T) {
	api := &fakePresenceAPI{}
	p := NewPresenceTracker(api)

	p.Start(context.Background())
	p.SetStatus(context.Background(), StatusOnline)
	p.SetStatus(context.Background(), StatusOnline)
	p.SetStatus(context.Background(), StatusAway)
	p.SetStatus(context.Background(), StatusAway)

	assert.Equal(t, []PresenceStatus{StatusOnline, StatusAway}, api.recorded())
}

func TestPresenceTrackerStartsOffline(t *testing.T) {
	api := &fakePresenceAPI{}
	p := NewPresenceTracker(api)

	assert.Equal(t, StatusOffline, p.Status())

	// Starting from offline guarantees the first Start is a real
	// transition and actually publishes.
	p.Start(context.Background())
	assert.Equal(t, []PresenceStatus{StatusOnline}, api.recorded())
}

func TestPresenceTrackerVisibilityMapping(t *testing.T) {
	api := &fakePresenceAPI{}
	p := NewPresenceTracker(api)

	p.Start(context.Background())
	p.HandleVisibility(context.Background(), false)
	p.HandleVisibility(context.Background(), true)

	assert.Equal(t, []PresenceStatus{StatusOnline, StatusAway, StatusOnline}, api.recorded())
}

func TestPresenceTrackerActivityRestoresFromAwayOnly(t *testing.T) {
	api := &fakePresenceAPI{}
	p := NewPresenceTracker(api)

	p.Start(context.Background())
	p.HandleActivity(context.Background())
	assert.Equal(t, []PresenceStatus{StatusOnline}, api.recorded())

	p.SetStatus(context.Background(), StatusAway)
	p.HandleActivity(context.Background())
	assert.Equal(t, []PresenceStatus{StatusOnline, StatusAway, StatusOnline}, api.recorded())
}

func TestPresenceTrackerFailedUpdateReverts(t *testing.T) {
	api := &fakePresenceAPI{fail: true}
	p := NewPresenceTracker(api)

	p.Start(context.Background())
	assert.Equal(t, StatusOffline, p.Status())
}

func TestPresenceTrackerClosePublishesOffline(t *testing.T) {
	api := &fakePresenceAPI{}
	p := NewPresenceTracker(api)

	p.Start(context.Background())
	p.Close()

	assert.Equal(t, []PresenceStatus{StatusOnline, StatusOffline}, api.recorded())

	p.SetStatus(context.Background(), StatusOnline)
	assert.Equal(t, StatusOffline, p.Status())
}

func TestStatusDisplay(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		up   UserPresence
		want string
	}{
		{"online", UserPresence{Status: StatusOnline}, "Online"},
		{"away", UserPresence{Status: StatusAway}, "Away"},
		{"offline no last seen", UserPresence{Status: StatusOffline}, "Offline"},
		{"just now", UserPresence{Status: StatusOffline, LastSeen: now.Add(-30 * time.Second)}, "Just now"},
		{"minutes", UserPresence{Status: StatusOffline, LastSeen: now.Add(-5 * time.Minute)}, "5m ago"},
		{"hours", UserPresence{Status: StatusOffline, LastSeen: now.Add(-3 * time.Hour)}, "3h ago"},
		{"yesterday", UserPresence{Status: StatusOffline, LastSeen: now.Add(-30 * time.Hour)}, "Yesterday"},
		{"days", UserPresence{Status: StatusOffline, LastSeen: now.Add(-4 * 24 * time.Hour)}, "4d ago"},
		{"date", UserPresence{Status: StatusOffline, LastSeen: now.Add(-30 * 24 * time.Hour)}, "Feb 8, 2026"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusDisplay(tt.up, now))
		})
	}
}
