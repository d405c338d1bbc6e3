package connections

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsjmendez/adonde/internal/domain"
)

func TestDeriveRelationship(t *testing.T) {
	tests := []struct {
		name     string
		senderID string
		status   Status
		want     Relationship
		wantID   bool
	}{
		{"accepted", "user:other", StatusAccepted, RelationshipConnected, true},
		{"pending, I sent it", "user:me", StatusPending, RelationshipPendingSent, true},
		{"pending, they sent it", "user:other", StatusPending, RelationshipPendingReceived, true},
		{"declined clears the slate", "user:me", StatusDeclined, RelationshipNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveRelationship("user:me", tt.senderID, "connection_request:1", tt.status)
			assert.Equal(t, tt.want, got.Relationship)
			if tt.wantID {
				assert.Equal(t, "connection_request:1", got.RequestID)
			} else {
				assert.Empty(t, got.RequestID)
			}
		})
	}
}

func TestSendRejectsInvalidInput(t *testing.T) {
	s := NewService(nil, nil)

	_, err := s.Send(context.Background(), "user:me", "", "hi")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Send(context.Background(), "user:me", "user:me", "hi")
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Send(context.Background(), "user:me", "user:other", strings.Repeat("x", MaxRequestMessage+1))
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListRejectsUnknownKind(t *testing.T) {
	s := NewService(nil, nil)

	_, err := s.List(context.Background(), "user:me", ListKind("bogus"))
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}
