package domain

import "context"

// TransformationRepository persists the diagnostic ledger of facade calls.
type TransformationRepository interface {
	Record(ctx context.Context, rec TransformationRecord) error
	ListRecent(ctx context.Context, limit int) ([]TransformationRecord, error)
}

// AssetStore reads photos and persists derived assets. Writes always create a
// new file and return its absolute path.
type AssetStore interface {
	Read(ctx context.Context, ref string) ([]byte, error)
	WriteUnique(ctx context.Context, dir, prefix, qualifier, mime string, data []byte) (string, error)
}
