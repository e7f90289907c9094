package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"closet/internal/domain"
	"closet/internal/infra"
)

const ledgerWriteTimeout = 5 * time.Second

// Ledger writes one diagnostic record per finished facade call. Write
// failures are logged and never reach the caller.
type Ledger struct {
	repo   domain.TransformationRepository
	logger *infra.Logger
	now    func() time.Time
}

// NewLedger wraps repo; a nil repo makes the ledger a no-op.
func NewLedger(repo domain.TransformationRepository, logger *infra.Logger) *Ledger {
	return &Ledger{repo: repo, logger: infra.LoggerOrDiscard(logger), now: time.Now}
}

// Record stores rec, filling in ID and CreatedAt. It detaches from ctx
// cancellation so a finished call is recorded even if the caller has gone.
func (l *Ledger) Record(ctx context.Context, rec domain.TransformationRecord) {
	if l == nil || l.repo == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now().UTC()
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()
	if err := l.repo.Record(writeCtx, rec); err != nil {
		l.logger.Error().
			Err(err).
			Str("request_id", rec.RequestID).
			Str("kind", string(rec.Kind)).
			Msg("ledger: record transformation")
	}
}

// Recent returns up to limit records, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]domain.TransformationRecord, error) {
	if l == nil || l.repo == nil {
		return []domain.TransformationRecord{}, nil
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.repo.ListRecent(ctx, limit)
}
