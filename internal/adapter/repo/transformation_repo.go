package repo

import (
	"context"
	"errors"
	"time"

	"closet/internal/domain"
	"closet/internal/infra"
	"closet/internal/sqlinline"
)

// TransformationRepositoryPG implements domain.TransformationRepository using
// PostgreSQL through the marked-query runner.
type TransformationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewTransformationRepository constructs a new ledger repository instance.
func NewTransformationRepository(sql infra.SQLExecutor) *TransformationRepositoryPG {
	return &TransformationRepositoryPG{sql: sql}
}

// EnsureSchema creates the ledger and credential tables when missing.
func (r *TransformationRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QCreateSchema)
	return err
}

// Record inserts one ledger row.
func (r *TransformationRepositoryPG) Record(ctx context.Context, rec domain.TransformationRecord) error {
	if rec.ID == "" {
		return errors.New("transformation id is required")
	}
	_, err := r.sql.Exec(ctx, sqlinline.QInsertTransformation,
		rec.ID,
		rec.RequestID,
		string(rec.Kind),
		rec.Provider,
		string(rec.Outcome),
		string(rec.Reason),
		rec.InputRef,
		rec.OutputRef,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
	)
	return err
}

// ListRecent returns the newest rows first.
func (r *TransformationRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.TransformationRecord, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListRecentTransformations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.TransformationRecord, 0, limit)
	for rows.Next() {
		var (
			rec        domain.TransformationRecord
			kind       string
			outcome    string
			reason     string
			durationMS int64
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &kind, &rec.Provider, &outcome, &reason, &rec.InputRef, &rec.OutputRef, &durationMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Kind = domain.Kind(kind)
		rec.Outcome = domain.Outcome(outcome)
		rec.Reason = domain.Reason(reason)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

var _ domain.TransformationRepository = (*TransformationRepositoryPG)(nil)
