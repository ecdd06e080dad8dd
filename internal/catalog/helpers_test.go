package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"

	"refboard/internal/startup"
	"refboard/internal/vectorindex"
)

const testDim = 4

// setupTestCatalog opens a catalog in a temp dir backed by the in-memory
// vector index.
func setupTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	cfg := startup.Default(t.TempDir())
	cfg.EmbeddingDim = testDim
	c, err := New(context.Background(), cfg, WithIndex(vectorindex.NewMemory(testDim)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return c
}

// setupSQLiteVecCatalog opens a catalog on the sqlite-vec index and skips
// the test when the extension is not available.
func setupSQLiteVecCatalog(t *testing.T) *Catalog {
	t.Helper()

	cfg := startup.Default(t.TempDir())
	cfg.EmbeddingDim = testDim
	c, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	if !c.IndexAvailable() {
		t.Skip("sqlite-vec not available")
	}
	return c
}

func strPtr(s string) *string { return &s }

// mustInsert inserts an image named name with the given creation time.
func mustInsert(t *testing.T, c *Catalog, id string, createdAt int64, opts ...func(*NewImage)) *Image {
	t.Helper()

	in := NewImage{
		ID:           id,
		Filename:     id + ".png",
		RelativePath: "refs/" + id + ".png",
		CreatedAt:    createdAt,
	}
	for _, o := range opts {
		o(&in)
	}
	img, err := c.InsertImage(context.Background(), in)
	if err != nil {
		t.Fatalf("InsertImage(%s): %v", id, err)
	}
	return img
}

func withColor(hex string) func(*NewImage) {
	return func(in *NewImage) { in.DominantColor = &hex }
}

func withTone(tone string) func(*NewImage) {
	return func(in *NewImage) { in.Tone = &tone }
}

func withTags(tags ...string) func(*NewImage) {
	return func(in *NewImage) { in.Tags = tags }
}

func withPath(path string) func(*NewImage) {
	return func(in *NewImage) { in.RelativePath = path }
}

func withFilename(name string) func(*NewImage) {
	return func(in *NewImage) { in.Filename = name }
}

func rowIDs(rows []Row) []string {
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// galleryOrders returns id -> position for every ordered image.
func galleryOrders(t *testing.T, c *Catalog) map[string]int64 {
	t.Helper()

	rows, err := c.db.DB().Query("SELECT id, gallery_order FROM images WHERE gallery_order IS NOT NULL")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var id string
		var pos int64
		if err := rows.Scan(&id, &pos); err != nil {
			t.Fatal(err)
		}
		out[id] = pos
	}
	return out
}

// assertDenseOrder fails unless the ordered positions are exactly 0..k-1.
func assertDenseOrder(t *testing.T, c *Catalog, wantK int) {
	t.Helper()

	orders := galleryOrders(t, c)
	if len(orders) != wantK {
		t.Fatalf("ordered images = %d, want %d", len(orders), wantK)
	}
	positions := make([]int, 0, len(orders))
	for _, p := range orders {
		positions = append(positions, int(p))
	}
	sort.Ints(positions)
	for i, p := range positions {
		if p != i {
			t.Fatalf("gallery order not dense: positions %v", positions)
		}
	}
}

// idsInOrder lists ids sorted by gallery position.
func idsInOrder(t *testing.T, c *Catalog) []string {
	t.Helper()

	orders := galleryOrders(t, c)
	ids := make([]string, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return orders[ids[i]] < orders[ids[j]] })
	return ids
}

// tagSnapshot captures tags and associations for state comparisons.
func tagSnapshot(t *testing.T, c *Catalog) string {
	t.Helper()

	var out string
	for _, q := range []string{
		"SELECT id || ':' || name FROM tags ORDER BY id",
		"SELECT image_id || ':' || tag_id || '@' || created_at FROM image_tags ORDER BY image_id, tag_id",
	} {
		rows, err := c.db.DB().Query(q)
		if err != nil {
			t.Fatal(err)
		}
		for rows.Next() {
			var s sql.NullString
			if err := rows.Scan(&s); err != nil {
				t.Fatal(err)
			}
			out += s.String + ";"
		}
		rows.Close()
		out += "|"
	}
	return out
}

func assertNoOrphanTags(t *testing.T, c *Catalog) {
	t.Helper()

	var n int
	err := c.db.DB().QueryRow(`
		SELECT COUNT(*) FROM tags
		WHERE NOT EXISTS (SELECT 1 FROM image_tags WHERE tag_id = tags.id)
	`).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("%d orphan tags remain", n)
	}
}

func idf(i int) string { return fmt.Sprintf("img%02d", i) }
