package startup

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := Default(dir)

	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.DatabasePath() != filepath.Join(dir, "catalog.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath())
	}
	if cfg.LibraryDir != filepath.Join(dir, "library") {
		t.Errorf("LibraryDir = %q", cfg.LibraryDir)
	}
	if cfg.EmbeddingDim != 512 {
		t.Errorf("EmbeddingDim = %d, want 512", cfg.EmbeddingDim)
	}
	if cfg.OpTimeout != 10*time.Second {
		t.Errorf("OpTimeout = %v, want 10s", cfg.OpTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestVectorMaxCandidatesAtKNNLimit(t *testing.T) {
	t.Parallel()

	cfg := Default(t.TempDir())
	cfg.VectorMaxCandidates = MaxVectorCandidates
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with %d candidates: %v", MaxVectorCandidates, err)
	}
}

func TestColorMaxHueRadians(t *testing.T) {
	t.Parallel()

	cfg := &Config{ColorMaxHueDegrees: 180}
	if got := cfg.ColorMaxHueRadians(); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("ColorMaxHueRadians = %v, want pi", got)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero dimension", func(c *Config) { c.EmbeddingDim = 0 }, "embedding_dim"},
		{"zero overfetch", func(c *Config) { c.VectorOverfetch = 0 }, "vector_overfetch"},
		{"zero max candidates", func(c *Config) { c.VectorMaxCandidates = 0 }, "vector_max_candidates"},
		{"max candidates above knn limit", func(c *Config) { c.VectorMaxCandidates = 4097 }, "vector_max_candidates"},
		{"negative similarity", func(c *Config) { c.ColorSimilarity = -1 }, "color_similarity"},
		{"hue above 180", func(c *Config) { c.ColorMaxHueDegrees = 200 }, "color_max_hue_degrees"},
		{"max below default page", func(c *Config) { c.MaxPageSize = 10; c.DefaultPageSize = 20 }, "page sizes"},
		{"empty database file", func(c *Config) { c.DatabaseFile = "" }, "database_file"},
		{"zero burst", func(c *Config) { c.EmbedBurst = 0 }, "embed rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

// Not parallel: uses t.Setenv.
func TestLoadConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REFBOARD_DATA_DIR", dir)
	t.Setenv("REFBOARD_EMBEDDING_DIM", "768")
	t.Setenv("REFBOARD_COLOR_SIMILARITY", "0.25")
	t.Setenv("REFBOARD_OP_TIMEOUT", "3s")

	cfg, err := LoadConfig(filepath.Join(dir, "missing-but-unused"))
	if err == nil {
		t.Fatal("explicit missing config file should fail")
	}

	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, dir)
	}
	if cfg.EmbeddingDim != 768 {
		t.Errorf("EmbeddingDim = %d, want 768", cfg.EmbeddingDim)
	}
	if cfg.ColorSimilarity != 0.25 {
		t.Errorf("ColorSimilarity = %v, want 0.25", cfg.ColorSimilarity)
	}
	if cfg.OpTimeout != 3*time.Second {
		t.Errorf("OpTimeout = %v, want 3s", cfg.OpTimeout)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refboard.yaml")
	content := "data_dir: " + dir + "\nembedding_dim: 64\nmax_page_size: 50\ndefault_page_size: 25\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EmbeddingDim != 64 {
		t.Errorf("EmbeddingDim = %d, want 64", cfg.EmbeddingDim)
	}
	if cfg.DefaultPageSize != 25 || cfg.MaxPageSize != 50 {
		t.Errorf("page sizes = %d/%d, want 25/50", cfg.DefaultPageSize, cfg.MaxPageSize)
	}
}

// Not parallel: changes the working directory.
func TestReadConfigFileSearchesWorkingDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	v := NewViper()
	if err := ReadConfigFile(v, ""); err != nil {
		t.Fatalf("ReadConfigFile without a file: %v", err)
	}
	if err := ReadConfigFile(NewViper(), filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for explicit missing config file")
	}

	if err := os.WriteFile(filepath.Join(dir, "refboard.yaml"), []byte("embed_url: http://embed:8080/v1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	v = NewViper()
	if err := ReadConfigFile(v, ""); err != nil {
		t.Fatalf("ReadConfigFile: %v", err)
	}
	cfg, err := LoadFrom(v)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.EmbedURL != "http://embed:8080/v1" {
		t.Errorf("EmbedURL = %q", cfg.EmbedURL)
	}
	if cfg.EmbedTimeout != 30*time.Second {
		t.Errorf("EmbedTimeout = %v, want 30s", cfg.EmbedTimeout)
	}
}

func TestEnsureDataDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := Default(dir)
	if err := EnsureDataDir(cfg); err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestGetBuildInfo(t *testing.T) {
	t.Parallel()

	info := GetBuildInfo()
	if info.Version == "" || info.GoVersion == "" || info.OS == "" || info.Arch == "" {
		t.Errorf("build info has empty fields: %+v", info)
	}
}
