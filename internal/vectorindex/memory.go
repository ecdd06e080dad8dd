package vectorindex

import (
	"cmp"
	"context"
	"math"
	"slices"
	"sync"

	"refboard/internal/database"
)

// Memory is a brute-force cosine index held in process memory. It ignores
// the Querier, so its writes are not rolled back with a failed transaction.
type Memory struct {
	dim  int
	mu   sync.RWMutex
	vecs map[int64][]float32
}

// NewMemory returns an empty in-memory index of the given dimension.
func NewMemory(dim int) *Memory {
	return &Memory{dim: dim, vecs: make(map[int64][]float32)}
}

func (m *Memory) Upsert(_ context.Context, _ database.Querier, rowid int64, vec []float32) error {
	if err := CheckDimension(vec, m.dim); err != nil {
		return err
	}
	m.mu.Lock()
	m.vecs[rowid] = slices.Clone(vec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, _ database.Querier, rowid int64) error {
	m.mu.Lock()
	delete(m.vecs, rowid)
	m.mu.Unlock()
	return nil
}

func (m *Memory) SearchTopK(_ context.Context, _ database.Querier, vec []float32, k int) ([]Hit, error) {
	if err := CheckDimension(vec, m.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.vecs))
	for rowid, v := range m.vecs {
		hits = append(hits, Hit{RowID: rowid, Distance: cosineDistance(vec, v)})
	}
	m.mu.RUnlock()

	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Memory) Has(_ context.Context, _ database.Querier, rowid int64) (bool, error) {
	m.mu.RLock()
	_, ok := m.vecs[rowid]
	m.mu.RUnlock()
	return ok, nil
}

func (m *Memory) Count(_ context.Context, _ database.Querier) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vecs), nil
}

func (m *Memory) Dimensions() int { return m.dim }

func (m *Memory) Available() bool { return true }

// sortHits orders by distance, then rowid for ties.
func sortHits(hits []Hit) {
	slices.SortFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.RowID, b.RowID)
	})
}

// cosineDistance is 1 - cos(a, b). A zero vector is treated as orthogonal.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
