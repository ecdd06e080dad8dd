package importer

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestCollect(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch := func(rel string) string {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	a := touch("refs/a.jpg")
	b := touch("refs/nested/b.PNG")
	touch("refs/notes.txt")
	touch("refs/.hidden.png")
	touch("refs/.cache/c.png")
	odd := touch("loose/scan.raw")

	got, err := Collect(context.Background(), []string{filepath.Join(root, "refs"), odd, a})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{a, b, odd}
	if !slices.Equal(got, want) {
		t.Errorf("Collect() = %v, want %v", got, want)
	}

	if _, err := Collect(context.Background(), []string{filepath.Join(root, "missing")}); !os.IsNotExist(err) {
		t.Errorf("Collect(missing) error = %v, want not-exist", err)
	}
}

func TestCollectCancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.png"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Collect(ctx, []string{root}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
