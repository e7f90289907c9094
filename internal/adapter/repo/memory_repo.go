package repo

import (
	"context"
	"sync"

	"closet/internal/domain"
)

// TransformationRepositoryMemory keeps the most recent ledger rows in a ring
// buffer. It backs the ledger when no database is configured.
type TransformationRepositoryMemory struct {
	mu      sync.Mutex
	records []domain.TransformationRecord
	next    int
	full    bool
}

// NewMemoryTransformationRepository keeps up to capacity records.
func NewMemoryTransformationRepository(capacity int) *TransformationRepositoryMemory {
	if capacity <= 0 {
		capacity = 500
	}
	return &TransformationRepositoryMemory{records: make([]domain.TransformationRecord, capacity)}
}

func (r *TransformationRepositoryMemory) Record(ctx context.Context, rec domain.TransformationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[r.next] = rec
	r.next = (r.next + 1) % len(r.records)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

func (r *TransformationRepositoryMemory) ListRecent(ctx context.Context, limit int) ([]domain.TransformationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	size := r.next
	if r.full {
		size = len(r.records)
	}
	if limit <= 0 || limit > size {
		limit = size
	}
	out := make([]domain.TransformationRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.records)) % len(r.records)
		out = append(out, r.records[idx])
	}
	return out, nil
}

var _ domain.TransformationRepository = (*TransformationRepositoryMemory)(nil)
