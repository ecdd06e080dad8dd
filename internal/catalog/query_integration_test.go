package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"refboard/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// seedGallery inserts n images; every third shares a timestamp with its
// neighbor so the rowid tie-break is exercised.
func seedGallery(t *testing.T, c *Catalog, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		opts := []func(*NewImage){}
		if i%2 == 0 {
			opts = append(opts, withTags("even"))
		}
		if i%3 == 0 {
			opts = append(opts, withTone("high-short"))
		}
		mustInsert(t, c, idf(i), int64(1000+i-i%3), opts...)
	}
}

func collectList(t *testing.T, c *Catalog, opts ListOptions) []string {
	t.Helper()
	var all []string
	for pages := 0; ; pages++ {
		if pages > 100 {
			t.Fatal("pagination did not terminate")
		}
		page, err := c.ListImages(context.Background(), opts)
		if err != nil {
			t.Fatalf("ListImages: %v", err)
		}
		all = append(all, rowIDs(page.Items)...)
		if page.Next == nil {
			return all
		}
		opts.After = page.Next
	}
}

func assertExactlyOnce(t *testing.T, got []string, want map[string]bool) {
	t.Helper()
	seen := map[string]bool{}
	for _, id := range got {
		if seen[id] {
			t.Errorf("%s returned twice", id)
		}
		seen[id] = true
		if !want[id] {
			t.Errorf("%s returned but not expected", id)
		}
	}
	for id := range want {
		if !seen[id] {
			t.Errorf("%s expected but never returned", id)
		}
	}
}

func TestListImagesOrderAndPagination(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	ctx := context.Background()
	seedGallery(t, c, 10)
	if err := c.SetGalleryOrder(ctx, []string{idf(7), idf(2)}); err != nil {
		t.Fatal(err)
	}

	full, err := c.ListImages(ctx, ListOptions{Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	if full.Next != nil {
		t.Error("single full page should have no next cursor")
	}
	// Unordered first, newest first with seq breaking ties; then ordered.
	want := []string{idf(9), idf(8), idf(6), idf(5), idf(4), idf(3), idf(1), idf(0), idf(7), idf(2)}
	if got := rowIDs(full.Items); !equalStrings(got, want) {
		t.Fatalf("order = %v\nwant    %v", got, want)
	}

	for _, limit := range []int{1, 2, 3, 4, 7} {
		got := collectList(t, c, ListOptions{Limit: limit})
		if !equalStrings(got, want) {
			t.Errorf("limit %d: paged = %v, want %v", limit, got, want)
		}
	}
}

func TestListImagesFilters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	seedGallery(t, c, 12)

	even := map[string]bool{}
	for i := 0; i < 12; i += 2 {
		even[idf(i)] = true
	}
	assertExactlyOnce(t, collectList(t, c, ListOptions{Limit: 2, Filter: Filter{Tags: []string{"even"}}}), even)

	toned := map[string]bool{}
	for i := 0; i < 12; i += 3 {
		toned[idf(i)] = true
	}
	assertExactlyOnce(t, collectList(t, c, ListOptions{Limit: 3, Filter: Filter{Tone: strPtr("high-short")}}), toned)

	both := map[string]bool{idf(0): true, idf(6): true}
	assertExactlyOnce(t, collectList(t, c, ListOptions{Limit: 1,
		Filter: Filter{Tags: []string{"even"}, Tone: strPtr("high-short")}}), both)

	if got := collectList(t, c, ListOptions{Filter: Filter{Tags: []string{"even", "unknown"}}}); len(got) != 0 {
		t.Errorf("unknown tag should filter to nothing, got %v", got)
	}
}

func TestTagFilterRequiresAllTags(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	mustInsert(t, c, "ab", 100, withTags("a", "b"))
	mustInsert(t, c, "a", 200, withTags("a"))
	mustInsert(t, c, "b", 300, withTags("b"))

	got := collectList(t, c, ListOptions{Filter: Filter{Tags: []string{"a", "b", " a "}}})
	if !equalStrings(got, []string{"ab"}) {
		t.Errorf("AND filter = %v, want [ab]", got)
	}
	if got := collectList(t, c, ListOptions{Filter: Filter{Tags: []string{"A"}}}); len(got) != 0 {
		t.Errorf("tag match must be case-sensitive, got %v", got)
	}
}

func TestColorFilter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	ctx := context.Background()
	mustInsert(t, c, "nearblack", 100, withColor("#0a0a0a"))
	mustInsert(t, c, "green", 200, withColor("#00ff00"))
	mustInsert(t, c, "red", 300, withColor("#ff0000"))
	mustInsert(t, c, "nocolor", 400)

	tests := []struct {
		target string
		want   []string
	}{
		{"#000000", []string{"nearblack"}},
		{"#ff0000", []string{"red"}},
		{"#00ff00", []string{"green"}},
		{"#ffffff", nil},
	}
	for _, tt := range tests {
		page, err := c.ListImages(ctx, ListOptions{Filter: Filter{Color: strPtr(tt.target)}})
		if err != nil {
			t.Fatalf("color %s: %v", tt.target, err)
		}
		if got := rowIDs(page.Items); !equalStrings(got, tt.want) {
			t.Errorf("color %s = %v, want %v", tt.target, got, tt.want)
		}
	}

	_, err := c.ListImages(ctx, ListOptions{Filter: Filter{Color: strPtr("#zzz")}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("malformed color error = %v, want ErrInvalidInput", err)
	}
}

func TestLimitHandling(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	ctx := context.Background()
	c.cfg.DefaultPageSize = 3
	c.cfg.MaxPageSize = 5
	seedGallery(t, c, 8)

	if _, err := c.ListImages(ctx, ListOptions{Limit: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative limit = %v, want ErrInvalidInput", err)
	}
	page, _ := c.ListImages(ctx, ListOptions{})
	if len(page.Items) != 3 {
		t.Errorf("zero limit returned %d items, want default 3", len(page.Items))
	}
	page, _ = c.ListImages(ctx, ListOptions{Limit: 100})
	if len(page.Items) != 5 {
		t.Errorf("oversized limit returned %d items, want max 5", len(page.Items))
	}
}

func TestSearchText(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	ctx := context.Background()
	mustInsert(t, c, "car1", 100, withPath("Vehicles/Red Car.png"))
	mustInsert(t, c, "car2", 200, withPath("vehicles/blue_car.jpg"))
	mustInsert(t, c, "car3", 200, withPath("misc/RED-car-night.jpg"), withTags("night"))
	mustInsert(t, c, "tree", 300, withPath("nature/tree.png"))

	collect := func(opts TextSearchOptions) []string {
		var all []string
		for {
			page, err := c.SearchText(ctx, opts)
			if err != nil {
				t.Fatalf("SearchText(%q): %v", opts.Query, err)
			}
			all = append(all, rowIDs(page.Items)...)
			if page.Next == nil {
				return all
			}
			opts.After = page.Next
		}
	}

	if got, want := collect(TextSearchOptions{Query: "CAR", Limit: 1}), []string{"car3", "car2", "car1"}; !equalStrings(got, want) {
		t.Errorf("CAR = %v, want %v", got, want)
	}
	if got, want := collect(TextSearchOptions{Query: "red car", Limit: 1}), []string{"car3", "car1"}; !equalStrings(got, want) {
		t.Errorf("red car = %v, want %v", got, want)
	}
	// Tokens may match either field.
	if got, want := collect(TextSearchOptions{Query: "car3 night"}), []string{"car3"}; !equalStrings(got, want) {
		t.Errorf("car3 night = %v, want %v", got, want)
	}
	if got, want := collect(TextSearchOptions{Query: "car", Filter: Filter{Tags: []string{"night"}}}), []string{"car3"}; !equalStrings(got, want) {
		t.Errorf("car+night tag = %v, want %v", got, want)
	}

	page, err := c.SearchText(ctx, TextSearchOptions{Query: "   "})
	if err != nil || len(page.Items) != 0 || page.Next != nil {
		t.Errorf("blank query = %+v, %v; want empty page", page, err)
	}
}

func TestSearchTextFoldsNonASCII(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	ctx := context.Background()
	mustInsert(t, c, "e1", 100, withFilename("Éclair.png"), withPath("refs/Éclair.png"))
	mustInsert(t, c, "s1", 200, withFilename("Straße.png"), withPath("refs/Straße.png"))
	mustInsert(t, c, "a1", 300, withFilename("a1.png"), withPath("ÖSTERREICH/Alpen.jpg"))

	tests := []struct {
		query string
		want  []string
	}{
		{"Éclair", []string{"e1"}},
		{"éclair", []string{"e1"}},
		{"ÉCLAIR", []string{"e1"}},
		{"éclair.png", []string{"e1"}},
		{"straße", []string{"s1"}},
		{"österreich alpen", []string{"a1"}},
		{"refs", []string{"s1", "e1"}},
	}
	for _, tt := range tests {
		page, err := c.SearchText(ctx, TextSearchOptions{Query: tt.query})
		if err != nil {
			t.Fatalf("SearchText(%q): %v", tt.query, err)
		}
		if got := rowIDs(page.Items); !equalStrings(got, tt.want) {
			t.Errorf("SearchText(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestSearchVector(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"x":   {1, 0, 0, 0},
		"xy":  {1, 1, 0, 0},
		"y":   {0, 1, 0, 0},
		"z":   {0, 0, 1, 0},
		"x2":  {2, 0, 0, 0}, // same direction as x
		"neg": {-1, 0, 0, 0},
	}
	i := 0
	for id, v := range vectors {
		opts := []func(*NewImage){}
		if id == "xy" || id == "z" {
			opts = append(opts, withTags("keep"))
		}
		img := mustInsert(t, c, id, int64(100+i), opts...)
		if err := c.SetImageVector(ctx, img.RowID, v); err != nil {
			t.Fatalf("SetImageVector(%s): %v", id, err)
		}
		i++
	}

	page, err := c.SearchVector(ctx, VectorSearchOptions{Vector: []float32{1, 0, 0, 0}, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.Next == nil {
		t.Fatalf("first page = %d items, next %v", len(page.Items), page.Next)
	}
	top := page.Items[0]
	if top.Score == nil || math.Abs(*top.Score-1) > 1e-6 {
		t.Errorf("identical vector score = %v, want ~1", top.Score)
	}
	if math.Abs(*top.Score-(1-*top.Distance)) > 1e-12 {
		t.Errorf("score %v != 1 - distance %v", *top.Score, *top.Distance)
	}
	// x and x2 tie at distance 0; rowid ascending breaks the tie.
	if top.RowID > page.Items[1].RowID {
		t.Errorf("tie not broken by rowid: %d before %d", top.RowID, page.Items[1].RowID)
	}

	var all []string
	var lastScore = math.Inf(1)
	opts := VectorSearchOptions{Vector: []float32{1, 0, 0, 0}, Limit: 2}
	for {
		page, err := c.SearchVector(ctx, opts)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range page.Items {
			if *r.Score > lastScore+1e-12 {
				t.Errorf("scores not descending at %s", r.ID)
			}
			lastScore = *r.Score
		}
		all = append(all, rowIDs(page.Items)...)
		if page.Next == nil {
			break
		}
		opts.After = page.Next
	}
	want := map[string]bool{}
	for id := range vectors {
		want[id] = true
	}
	assertExactlyOnce(t, all, want)
	if all[len(all)-1] != "neg" {
		t.Errorf("opposite vector should be last, got %v", all)
	}

	filtered, err := c.SearchVector(ctx, VectorSearchOptions{
		Vector: []float32{0, 0, 1, 0},
		Filter: Filter{Tags: []string{"keep"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := rowIDs(filtered.Items); !equalStrings(got, []string{"z", "xy"}) {
		t.Errorf("filtered vector search = %v, want [z xy]", got)
	}
}

func TestSearchVectorPaginationWithSQLiteVec(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupSQLiteVecCatalog(t)
	ctx := context.Background()

	// Components that are not exact in float32, plus duplicates so equal
	// distances fall back to the rowid tie-break.
	vectors := [][]float32{
		{0.1, 0.2, 0.3, 0.4},
		{0.1, 0.2, 0.3, 0.4},
		{0.7, 0.1, 0.3, 0.9},
		{0.33, 0.33, 0.33, 0.1},
		{0.33, 0.33, 0.33, 0.1},
		{0.9, 0.05, 0.01, 0.2},
		{-0.2, 0.6, 0.1, 0.3},
		{0.15, 0.25, 0.35, 0.45},
		{0.01, 0.02, 0.03, 0.9},
	}
	want := map[string]bool{}
	for i, v := range vectors {
		img := mustInsert(t, c, idf(i), int64(100+i), withTags("all"))
		if err := c.SetImageVector(ctx, img.RowID, v); err != nil {
			t.Fatalf("SetImageVector(%s): %v", idf(i), err)
		}
		want[idf(i)] = true
	}

	for _, filter := range []Filter{{}, {Tags: []string{"all"}}} {
		opts := VectorSearchOptions{Vector: []float32{0.12, 0.21, 0.33, 0.41}, Limit: 2, Filter: filter}
		var all []string
		lastDistance, lastRow := math.Inf(-1), int64(0)
		for pages := 0; ; pages++ {
			if pages > 20 {
				t.Fatal("pagination did not terminate")
			}
			page, err := c.SearchVector(ctx, opts)
			if err != nil {
				t.Fatalf("SearchVector: %v", err)
			}
			for _, r := range page.Items {
				d := *r.Distance
				if d < lastDistance || (d == lastDistance && r.RowID <= lastRow) {
					t.Errorf("%s out of order: (%v, %d) after (%v, %d)", r.ID, d, r.RowID, lastDistance, lastRow)
				}
				lastDistance, lastRow = d, r.RowID
			}
			all = append(all, rowIDs(page.Items)...)
			if page.Next == nil {
				break
			}

			// cursors leave the process as JSON
			data, err := json.Marshal(page.Next)
			if err != nil {
				t.Fatal(err)
			}
			var next VectorCursor
			if err := json.Unmarshal(data, &next); err != nil {
				t.Fatal(err)
			}
			opts.After = &next
		}
		assertExactlyOnce(t, all, want)
	}
}

func TestSearchVectorRefetchesWhenFiltersStarvePage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	ctx := context.Background()
	c.cfg.VectorOverfetch = 1
	c.cfg.VectorMaxCandidates = 64

	// 20 untagged near neighbors crowd out the 3 tagged images.
	for i := 0; i < 23; i++ {
		var opts []func(*NewImage)
		v := []float32{1, float32(i) * 0.01, 0, 0}
		if i >= 20 {
			opts = append(opts, withTags("rare"))
		}
		img := mustInsert(t, c, idf(i), int64(100+i), opts...)
		if err := c.SetImageVector(ctx, img.RowID, v); err != nil {
			t.Fatal(err)
		}
	}

	before := testutil.ToFloat64(metrics.VectorSearchRefetches)
	page, err := c.SearchVector(ctx, VectorSearchOptions{
		Vector: []float32{1, 0, 0, 0},
		Limit:  2,
		Filter: Filter{Tags: []string{"rare"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := rowIDs(page.Items); !equalStrings(got, []string{idf(20), idf(21)}) {
		t.Errorf("page = %v, want [img20 img21]", got)
	}
	if page.Next == nil {
		t.Error("expected a next cursor for img22")
	}
	if testutil.ToFloat64(metrics.VectorSearchRefetches) <= before {
		t.Error("expected at least one refetch")
	}
}

func TestSearchVectorEdgeCases(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	ctx := context.Background()

	page, err := c.SearchVector(ctx, VectorSearchOptions{})
	if err != nil || len(page.Items) != 0 {
		t.Errorf("empty vector = %+v, %v; want empty page", page, err)
	}

	_, err = c.SearchVector(ctx, VectorSearchOptions{Vector: []float32{1, 2}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("wrong dimension = %v, want ErrInvalidInput", err)
	}

	page, err = c.SearchVector(ctx, VectorSearchOptions{Vector: []float32{1, 0, 0, 0}})
	if err != nil || len(page.Items) != 0 {
		t.Errorf("search on empty index = %+v, %v", page, err)
	}
}

func TestGetImagesByIDs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	c := setupTestCatalog(t)
	ctx := context.Background()
	mustInsert(t, c, "a", 100, withTags("t"))
	mustInsert(t, c, "b", 200)
	mustInsert(t, c, "c", 300)

	rows, err := c.GetImagesByIDs(ctx, []string{"c", "ghost", "a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if got := rowIDs(rows); !equalStrings(got, []string{"c", "a", "b"}) {
		t.Errorf("by ids = %v, want [c a b]", got)
	}
	if !equalStrings(rows[1].Tags, []string{"t"}) {
		t.Errorf("tags not hydrated: %v", rows[1].Tags)
	}

	rows, err = c.GetImagesByIDs(ctx, nil)
	if err != nil || len(rows) != 0 {
		t.Errorf("empty ids = %v, %v", rows, err)
	}
}
