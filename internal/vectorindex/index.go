package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"refboard/internal/database"
)

var (
	// ErrUnavailable means the ANN engine could not be loaded.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrDimension means a vector's length differs from the index dimension.
	ErrDimension = errors.New("vector dimension mismatch")
)

// Hit is one nearest-neighbor result. Distance is cosine distance, so 0 is
// an identical direction.
type Hit struct {
	RowID    int64
	Distance float64
}

// Index is the narrow contract the catalog needs from an ANN engine. Every
// method takes the Querier to run on so writes can join the caller's
// transaction.
type Index interface {
	Upsert(ctx context.Context, q database.Querier, rowid int64, vec []float32) error
	Delete(ctx context.Context, q database.Querier, rowid int64) error
	// SearchTopK returns at most k hits ordered by (Distance, RowID).
	SearchTopK(ctx context.Context, q database.Querier, vec []float32, k int) ([]Hit, error)
	Has(ctx context.Context, q database.Querier, rowid int64) (bool, error)
	Count(ctx context.Context, q database.Querier) (int, error)
	Dimensions() int
	// Available is false for the stub installed when the engine failed to load.
	Available() bool
}

// CheckDimension rejects vectors whose length is not dim.
func CheckDimension(vec []float32, dim int) error {
	if len(vec) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(vec), dim)
	}
	return nil
}
