package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// ChangeAction is the kind of change reported by the live feed.
type ChangeAction string

const (
	ActionCreate ChangeAction = "CREATE"
	ActionUpdate ChangeAction = "UPDATE"
	ActionDelete ChangeAction = "DELETE"
)

// ChangeHandler is invoked for every change delivered by a subscription.
// Delivery is at-least-once with no ordering guarantee across rows.
type ChangeHandler func(ctx context.Context, action ChangeAction, data any)

// FeedFilter restricts a subscription to rows matching a WHERE clause.
type FeedFilter struct {
	Where  string
	Params map[string]any
}

// FeedSubscription identifies an active live subscription.
type FeedSubscription struct {
	ID    string
	Table string
}

// Feed provides row-level change subscriptions. The production
// implementation rides SurrealDB live queries; tests substitute a fake.
type Feed interface {
	Subscribe(ctx context.Context, table string, filter *FeedFilter, handler ChangeHandler) (*FeedSubscription, error)
	Unsubscribe(subID string) error
}

// LiveFeed implements Feed on top of SurrealDB LIVE SELECT.
type LiveFeed struct {
	db *Connection

	subscriptions sync.Map // subID -> *feedState
}

type feedState struct {
	id          string
	table       string
	handler     ChangeHandler
	cancel      context.CancelFunc
	liveQueryID string
}

// NewLiveFeed creates a feed over the given managed connection.
func NewLiveFeed(db *Connection) *LiveFeed {
	return &LiveFeed{db: db}
}

// Subscribe opens a live query on table, optionally filtered, and streams
// changes to handler until Unsubscribe is called.
func (f *LiveFeed) Subscribe(ctx context.Context, table string, filter *FeedFilter, handler ChangeHandler) (*FeedSubscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	query := fmt.Sprintf("LIVE SELECT * FROM %s", table)
	params := map[string]any{}
	if filter != nil {
		if filter.Where != "" {
			query = fmt.Sprintf("%s WHERE %s", query, filter.Where)
		}
		for k, v := range filter.Params {
			params[k] = v
		}
	}

	subID := uuid.New().String()
	subCtx, cancel := context.WithCancel(context.Background())
	state := &feedState{
		id:      subID,
		table:   table,
		handler: handler,
		cancel:  cancel,
	}
	f.subscriptions.Store(subID, state)

	err := f.db.WithConnection(ctx, func(conn *surrealdb.DB) error {
		results, err := surrealdb.Query[any](ctx, conn, query, params)
		if err != nil {
			return fmt.Errorf("failed to start live query: %w", err)
		}
		if results == nil || len(*results) == 0 {
			return fmt.Errorf("live query returned no results")
		}

		result := (*results)[0]
		if result.Status != "OK" {
			return fmt.Errorf("live query failed with status %q", result.Status)
		}

		liveID, err := extractLiveQueryID(result.Result)
		if err != nil {
			return err
		}
		state.liveQueryID = liveID

		notifications, err := conn.LiveNotifications(liveID)
		if err != nil {
			return fmt.Errorf("failed to get notification channel: %w", err)
		}

		go f.listen(subCtx, state, notifications)
		go f.reapOnCancel(subCtx, conn, state)
		return nil
	})
	if err != nil {
		cancel()
		f.subscriptions.Delete(subID)
		return nil, err
	}

	slog.Debug("Live feed subscription established", "sub_id", subID, "table", table)
	return &FeedSubscription{ID: subID, Table: table}, nil
}

// Unsubscribe tears down a subscription. Unknown ids are a no-op.
func (f *LiveFeed) Unsubscribe(subID string) error {
	if state, ok := f.subscriptions.Load(subID); ok {
		state.(*feedState).cancel()
		f.subscriptions.Delete(subID)
		slog.Debug("Live feed subscription removed", "sub_id", subID)
	}
	return nil
}

func (f *LiveFeed) listen(ctx context.Context, state *feedState, notifications <-chan connection.Notification) {
	defer f.subscriptions.Delete(state.id)

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				slog.Debug("Live feed notification channel closed", "sub_id", state.id)
				return
			}

			var action ChangeAction
			switch n.Action {
			case connection.CreateAction:
				action = ActionCreate
			case connection.UpdateAction:
				action = ActionUpdate
			case connection.DeleteAction:
				action = ActionDelete
			default:
				slog.Warn("Unknown live feed action", "sub_id", state.id, "action", n.Action)
				continue
			}

			// Handlers must not block the notification loop.
			go func(result any) {
				defer func() {
					if r := recover(); r != nil {
						slog.Error("Panic in live feed handler", "sub_id", state.id, "panic", r)
					}
				}()
				state.handler(ctx, action, result)
			}(n.Result)
		}
	}
}

// reapOnCancel kills the server-side live query once the subscription
// context is cancelled.
func (f *LiveFeed) reapOnCancel(ctx context.Context, conn *surrealdb.DB, state *feedState) {
	<-ctx.Done()
	if state.liveQueryID == "" {
		return
	}

	cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.CloseLiveNotifications(state.liveQueryID); err != nil {
		slog.Warn("Failed to close live notifications", "error", err, "live_query_id", state.liveQueryID)
	}

	if _, err := surrealdb.Query[any](cleanupCtx, conn, "KILL $id", map[string]any{
		"id": state.liveQueryID,
	}); err != nil {
		slog.Warn("Failed to kill live query", "error", err, "live_query_id", state.liveQueryID)
	}
}

func extractLiveQueryID(result any) (string, error) {
	switch v := result.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("live query returned empty id")
		}
		return v, nil
	case models.UUID:
		return v.String(), nil
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			return id, nil
		}
		if id, ok := v["id"].(models.UUID); ok {
			return id.String(), nil
		}
		return "", fmt.Errorf("live query result map does not contain an id: %+v", v)
	default:
		return "", fmt.Errorf("unexpected live query result type %T", result)
	}
}
