package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"closet/internal/domain"
)

type captureExecutor struct {
	query string
	args  []any
}

func (c *captureExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	c.query, c.args = query, args
	return pgconn.CommandTag{}, nil
}

func (c *captureExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return nil
}

func (c *captureExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	c.query, c.args = query, args
	return nil, errors.New("no database")
}

func TestRecordPassesColumnsInOrder(t *testing.T) {
	exec := &captureExecutor{}
	r := NewTransformationRepository(exec)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := r.Record(context.Background(), domain.TransformationRecord{
		ID:        "0b7f4a52-51d3-4c55-a1e2-3f2f8a0e6c11",
		RequestID: "req",
		Kind:      domain.KindVirtualTryOn,
		Provider:  "kling-kolors",
		Outcome:   domain.OutcomeFallback,
		Reason:    domain.ReasonAuthRejected,
		InputRef:  "/in.jpg",
		Duration:  1500 * time.Millisecond,
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !strings.HasPrefix(exec.query, "--sql ") || !strings.Contains(exec.query, "insert into transformations") {
		t.Fatalf("unexpected query %q", exec.query)
	}
	if len(exec.args) != 10 {
		t.Fatalf("expected 10 args, got %d", len(exec.args))
	}
	if exec.args[2] != "virtual_try_on" || exec.args[5] != "auth_rejected" || exec.args[8] != int64(1500) || exec.args[9] != created {
		t.Fatalf("unexpected args %v", exec.args)
	}
}

func TestRecordRequiresID(t *testing.T) {
	r := NewTransformationRepository(&captureExecutor{})
	if err := r.Record(context.Background(), domain.TransformationRecord{}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestListRecentPropagatesQueryError(t *testing.T) {
	r := NewTransformationRepository(&captureExecutor{})
	if _, err := r.ListRecent(context.Background(), 5); err == nil {
		t.Fatal("expected query error")
	}
}
