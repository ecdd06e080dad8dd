package vectorindex

import (
	"context"

	"refboard/internal/database"
)

// Unavailable stands in when the ANN engine failed to load. Searches return
// nothing and writes are dropped, so relational operations keep working.
type Unavailable struct {
	dim   int
	Cause error
}

// NewUnavailable returns the stub, remembering why the real index is missing.
func NewUnavailable(dim int, cause error) *Unavailable {
	return &Unavailable{dim: dim, Cause: cause}
}

func (u *Unavailable) Upsert(context.Context, database.Querier, int64, []float32) error { return nil }

func (u *Unavailable) Delete(context.Context, database.Querier, int64) error { return nil }

func (u *Unavailable) SearchTopK(context.Context, database.Querier, []float32, int) ([]Hit, error) {
	return nil, nil
}

func (u *Unavailable) Has(context.Context, database.Querier, int64) (bool, error) { return false, nil }

func (u *Unavailable) Count(context.Context, database.Querier) (int, error) { return 0, nil }

func (u *Unavailable) Dimensions() int { return u.dim }

func (u *Unavailable) Available() bool { return false }
