package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Query executes a raw SurrealQL query with parameters and unmarshals the
// rows of the first statement into a slice of T.
//
// Example:
//
//	rows, err := database.Query[Message](ctx, db,
//	    "SELECT * FROM chat_message WHERE conversation_id = $conversation",
//	    map[string]any{"conversation": convID})
func Query[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]T, error) {
	results, err := surrealdb.Query[[]T](ctx, db, query, params)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// QueryOne executes a query and returns the single row, or (nil, nil) when
// the query matched nothing. SELECT statements are constrained to one row.
func QueryOne[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) (*T, error) {
	if isSelect(query) && !hasLimit(query) {
		query += " LIMIT 1"
	}

	rows, err := Query[T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Scalar executes a query whose first statement evaluates to a single
// value (typically a RETURN fn::... call) and unmarshals it into T.
func Scalar[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) (T, error) {
	var zero T
	results, err := surrealdb.Query[T](ctx, db, query, params)
	if err != nil {
		return zero, fmt.Errorf("query execution failed: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return zero, nil
	}
	return (*results)[0].Result, nil
}

// Execute runs a query whose rows the caller does not care about.
func Execute(ctx context.Context, db *surrealdb.DB, query string, params map[string]any) error {
	if _, err := surrealdb.Query[any](ctx, db, query, params); err != nil {
		return fmt.Errorf("query execution failed: %w", err)
	}
	return nil
}

func isSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

func hasLimit(query string) bool {
	return strings.Contains(" "+strings.ToUpper(query)+" ", " LIMIT ")
}
