package vectorindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"refboard/internal/database"
	"refboard/internal/logging"
)

func init() {
	sqlite_vec.Auto() // registers the vec0 virtual table with go-sqlite3
}

// TableName is the vec0 virtual table holding image embeddings, keyed by
// images.seq.
const TableName = "image_vectors"

// SQLiteVec stores vectors in a sqlite-vec vec0 table inside the catalog
// database, so vector writes share the catalog's transactions.
type SQLiteVec struct {
	dim int
}

// Probe checks that the sqlite-vec extension is loaded and returns its version.
func Probe(ctx context.Context, q database.Querier) (string, error) {
	var version string
	if err := q.QueryRowContext(ctx, "SELECT vec_version()").Scan(&version); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return version, nil
}

// NewSQLiteVec probes the extension and creates the vector table for dim.
// Any failure is reported as ErrUnavailable.
func NewSQLiteVec(ctx context.Context, q database.Querier, dim int) (*SQLiteVec, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrDimension, dim)
	}

	version, err := Probe(ctx, q)
	if err != nil {
		return nil, err
	}
	logging.Info("sqlite-vec %s loaded", version)

	_, err = q.ExecContext(ctx, fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
			embedding float[%d] distance_metric=cosine
		)
	`, TableName, dim))
	if err != nil {
		return nil, fmt.Errorf("%w: create %s(float[%d]): %v", ErrUnavailable, TableName, dim, err)
	}

	return &SQLiteVec{dim: dim}, nil
}

// Upsert replaces the vector for rowid. vec0 does not reliably support
// INSERT OR REPLACE, so this is DELETE then INSERT.
func (s *SQLiteVec) Upsert(ctx context.Context, q database.Querier, rowid int64, vec []float32) error {
	if err := CheckDimension(vec, s.dim); err != nil {
		return err
	}
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return fmt.Errorf("serialize vector: %w", err)
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM "+TableName+" WHERE rowid = ?", rowid); err != nil {
		return fmt.Errorf("delete vector %d: %w", rowid, err)
	}
	if _, err := q.ExecContext(ctx, "INSERT INTO "+TableName+"(rowid, embedding) VALUES (?, ?)", rowid, blob); err != nil {
		return fmt.Errorf("insert vector %d: %w", rowid, err)
	}
	return nil
}

// Delete removes the vector for rowid. Missing rows are not an error.
func (s *SQLiteVec) Delete(ctx context.Context, q database.Querier, rowid int64) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM "+TableName+" WHERE rowid = ?", rowid); err != nil {
		return fmt.Errorf("delete vector %d: %w", rowid, err)
	}
	return nil
}

// SearchTopK runs a KNN query against the vec0 table.
func (s *SQLiteVec) SearchTopK(ctx context.Context, q database.Querier, vec []float32, k int) ([]Hit, error) {
	if err := CheckDimension(vec, s.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, fmt.Errorf("serialize vector: %w", err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT rowid, distance
		FROM `+TableName+`
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("knn query: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, k)
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.RowID, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortHits(hits)
	return hits, nil
}

// Has reports whether rowid has a stored vector.
func (s *SQLiteVec) Has(ctx context.Context, q database.Querier, rowid int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+TableName+" WHERE rowid = ?", rowid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count returns the number of stored vectors.
func (s *SQLiteVec) Count(ctx context.Context, q database.Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+TableName).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Dimensions returns the vector length the table was created with.
func (s *SQLiteVec) Dimensions() int { return s.dim }

// Available is always true for a successfully created index.
func (s *SQLiteVec) Available() bool { return true }
