package database

import (
	"context"
	"testing"
)

func TestSettingsReadThroughWriteThrough(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	s := NewSettings(db.DB())

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok:%v err:%v, want absent", ok, err)
	}

	if err := s.SetInt(ctx, SettingEmbeddingDim, 512); err != nil {
		t.Fatalf("SetInt: %v", err)
	}
	n, ok, err := s.GetInt(ctx, SettingEmbeddingDim)
	if err != nil || !ok || n != 512 {
		t.Fatalf("GetInt = %d,%v,%v want 512,true,nil", n, ok, err)
	}

	// A second instance over the same store sees the persisted value.
	fresh := NewSettings(db.DB())
	if n, ok, _ := fresh.GetInt(ctx, SettingEmbeddingDim); !ok || n != 512 {
		t.Errorf("fresh instance GetInt = %d,%v want 512,true", n, ok)
	}

	// Cached values survive an out-of-band write until invalidated.
	if _, err := db.DB().ExecContext(ctx, "UPDATE settings SET value = '768' WHERE key = ?", SettingEmbeddingDim); err != nil {
		t.Fatal(err)
	}
	if n, _, _ := s.GetInt(ctx, SettingEmbeddingDim); n != 512 {
		t.Errorf("cached GetInt = %d, want 512", n)
	}
	s.Invalidate()
	if n, _, _ := s.GetInt(ctx, SettingEmbeddingDim); n != 768 {
		t.Errorf("GetInt after Invalidate = %d, want 768", n)
	}
}

func TestSettingsGetIntRejectsGarbage(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	s := NewSettings(db.DB())

	if err := s.Set(ctx, "dim", "abc"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.GetInt(ctx, "dim"); err == nil {
		t.Error("expected parse error")
	}
}
