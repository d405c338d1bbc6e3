package connections

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/itsjmendez/adonde/internal/database"
	"github.com/itsjmendez/adonde/internal/domain"
	"github.com/itsjmendez/adonde/internal/notify"
	"github.com/itsjmendez/adonde/internal/profile"
	"github.com/itsjmendez/adonde/internal/pubsub"
)

// Status of a connection request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Relationship is the derived state between two users.
type Relationship string

const (
	RelationshipNone            Relationship = "none"
	RelationshipPendingSent     Relationship = "pending_sent"
	RelationshipPendingReceived Relationship = "pending_received"
	RelationshipConnected       Relationship = "connected"
)

// ListKind selects which requests to list.
type ListKind string

const (
	ListReceived ListKind = "received"
	ListSent     ListKind = "sent"
	ListActive   ListKind = "active"
)

// Request is a connection request between two users. Accepting one makes
// the pair connected and opens their direct conversation.
type Request struct {
	ID                string    `json:"id"`
	SenderID          string    `json:"sender_id"`
	ReceiverID        string    `json:"receiver_id"`
	Message           string    `json:"message"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	SenderName        string    `json:"sender_name,omitempty"`
	SenderAvatarURL   string    `json:"sender_avatar_url,omitempty"`
	ReceiverName      string    `json:"receiver_name,omitempty"`
	ReceiverAvatarURL string    `json:"receiver_avatar_url,omitempty"`
}

// RelationshipInfo pairs the derived relationship with the request that
// produced it, when one exists.
type RelationshipInfo struct {
	Relationship Relationship `json:"status"`
	RequestID    string       `json:"request_id,omitempty"`
}

// MaxRequestMessage bounds the intro message on a connection request.
const MaxRequestMessage = 500

// Service manages connection requests.
type Service struct {
	db  *database.Connection
	pub pubsub.Publisher
	log *slog.Logger
}

// NewService creates the connections service. pub may be nil; events are
// then skipped.
func NewService(db *database.Connection, pub pubsub.Publisher) *Service {
	return &Service{
		db:  db,
		pub: pub,
		log: slog.Default().With("service", "connections"),
	}
}

// List returns the user's requests of one kind: received pending, sent
// pending, or active (accepted either way).
func (s *Service) List(ctx context.Context, userID string, kind ListKind) ([]Request, error) {
	switch kind {
	case ListReceived, ListSent, ListActive:
	default:
		return nil, fmt.Errorf("%w: unknown list kind %q", domain.ErrInvalidInput, kind)
	}

	var reqs []Request
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		reqs, qerr = database.Scalar[[]Request](ctx, conn,
			"RETURN fn::connection_requests($user, $kind)",
			map[string]any{"user": userID, "kind": string(kind)})
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s requests: %w", kind, err)
	}
	return reqs, nil
}

// Send creates a pending request and returns its id. Sending to yourself
// or duplicating an open request is rejected.
func (s *Service) Send(ctx context.Context, senderID, receiverID, message string) (string, error) {
	message = strings.TrimSpace(message)
	if receiverID == "" || senderID == receiverID {
		return "", fmt.Errorf("%w: invalid receiver", domain.ErrInvalidInput)
	}
	if len(message) > MaxRequestMessage {
		return "", fmt.Errorf("%w: message too long", domain.ErrInvalidInput)
	}

	existing, err := s.StatusWith(ctx, senderID, receiverID)
	if err != nil {
		return "", err
	}
	if existing.Relationship != RelationshipNone {
		return "", fmt.Errorf("%w: request already exists (%s)", domain.ErrInvalidInput, existing.Relationship)
	}

	var id string
	err = s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		id, qerr = database.Scalar[string](ctx, conn,
			"RETURN fn::send_connection_request($sender, $receiver, $message)",
			map[string]any{"sender": senderID, "receiver": receiverID, "message": message})
		return qerr
	})
	if err != nil {
		return "", fmt.Errorf("sending connection request: %w", err)
	}
	s.log.Info("Connection request sent", "sender", senderID, "receiver", receiverID)

	if s.pub != nil {
		notify.PublishConnectionEvent(ctx, s.pub, receiverID, notify.Event{
			Kind:      notify.KindConnectionRequested,
			RequestID: id,
			ActorID:   senderID,
			Message:   message,
		})
	}
	return id, nil
}

// Respond accepts or declines a pending request addressed to userID.
// Accepting also creates the direct conversation server-side.
func (s *Service) Respond(ctx context.Context, userID, requestID string, accept bool) error {
	response := StatusDeclined
	if accept {
		response = StatusAccepted
	}

	var ok bool
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		ok, qerr = database.Scalar[bool](ctx, conn,
			"RETURN fn::respond_to_connection_request($user, $request, $response)",
			map[string]any{"user": userID, "request": requestID, "response": string(response)})
		return qerr
	})
	if err != nil {
		return fmt.Errorf("responding to request %s: %w", requestID, err)
	}
	if !ok {
		return fmt.Errorf("%w: request %s", domain.ErrNotFound, requestID)
	}
	s.log.Info("Connection request resolved", "request", requestID, "response", response)

	if s.pub != nil {
		if senderID := s.requestSenderID(ctx, requestID); senderID != "" {
			kind := notify.KindConnectionDeclined
			if accept {
				kind = notify.KindConnectionAccepted
			}
			notify.PublishConnectionEvent(ctx, s.pub, senderID, notify.Event{
				Kind:      kind,
				RequestID: requestID,
				ActorID:   userID,
			})
		}
	}
	return nil
}

// requestSenderID resolves who opened a request, for notification
// addressing. Best-effort.
func (s *Service) requestSenderID(ctx context.Context, requestID string) string {
	type row struct {
		SenderID string `json:"sender_id"`
	}
	var r *row
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		r, qerr = database.QueryOne[row](ctx, conn,
			"SELECT sender_id FROM connection_request WHERE id = $id",
			map[string]any{"id": requestID})
		return qerr
	})
	if err != nil || r == nil {
		return ""
	}
	return r.SenderID
}

// StatusWith derives the relationship between two users from whatever
// request exists between them, in either direction.
func (s *Service) StatusWith(ctx context.Context, userID, otherUserID string) (RelationshipInfo, error) {
	type row struct {
		ID       string `json:"id"`
		SenderID string `json:"sender_id"`
		Status   Status `json:"status"`
	}
	var r *row
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		r, qerr = database.QueryOne[row](ctx, conn,
			`SELECT id, sender_id, status FROM connection_request
			 WHERE (sender_id = $a AND receiver_id = $b)
			    OR (sender_id = $b AND receiver_id = $a)`,
			map[string]any{"a": userID, "b": otherUserID})
		return qerr
	})
	if err != nil {
		return RelationshipInfo{}, fmt.Errorf("resolving relationship: %w", err)
	}
	if r == nil {
		return RelationshipInfo{Relationship: RelationshipNone}, nil
	}
	return deriveRelationship(userID, r.SenderID, r.ID, r.Status), nil
}

func deriveRelationship(userID, senderID, requestID string, status Status) RelationshipInfo {
	switch status {
	case StatusAccepted:
		return RelationshipInfo{Relationship: RelationshipConnected, RequestID: requestID}
	case StatusPending:
		if senderID == userID {
			return RelationshipInfo{Relationship: RelationshipPendingSent, RequestID: requestID}
		}
		return RelationshipInfo{Relationship: RelationshipPendingReceived, RequestID: requestID}
	default:
		// A declined request does not block a new one.
		return RelationshipInfo{Relationship: RelationshipNone}
	}
}

// RequestSenderProfile loads the profile behind a request so the receiver
// can evaluate it.
func (s *Service) RequestSenderProfile(ctx context.Context, requestID string) (*profile.Profile, error) {
	var rows []profile.Profile
	err := s.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		var qerr error
		rows, qerr = database.Scalar[[]profile.Profile](ctx, conn,
			"RETURN fn::request_sender_profile($request)",
			map[string]any{"request": requestID})
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("loading sender profile for %s: %w", requestID, err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	return &rows[0], nil
}
