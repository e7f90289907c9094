package repo

import (
	"context"
	"fmt"
	"testing"

	"closet/internal/domain"
)

func TestMemoryRepositoryReturnsNewestFirstAndWraps(t *testing.T) {
	r := NewMemoryTransformationRepository(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := r.Record(ctx, domain.TransformationRecord{ID: fmt.Sprint(i)}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	got, err := r.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(got) != 3 || got[0].ID != "5" || got[1].ID != "4" || got[2].ID != "3" {
		t.Fatalf("unexpected records %+v", got)
	}
	got, _ = r.ListRecent(ctx, 1)
	if len(got) != 1 || got[0].ID != "5" {
		t.Fatalf("limit not honoured: %+v", got)
	}
}

func TestMemoryRepositoryEmpty(t *testing.T) {
	got, err := NewMemoryTransformationRepository(2).ListRecent(context.Background(), 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v, %v", got, err)
	}
}
