package startup

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"refboard/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// EnvPrefix is prepended to every environment variable the config reads.
const EnvPrefix = "REFBOARD"

// Config holds all catalog configuration
type Config struct {
	DataDir      string `mapstructure:"data_dir"`
	DatabaseFile string `mapstructure:"database_file"`
	LibraryDir   string `mapstructure:"library_dir"`

	// EmbeddingDim is shared with the external embedding service.
	EmbeddingDim        int `mapstructure:"embedding_dim"`
	VectorOverfetch     int `mapstructure:"vector_overfetch"`
	VectorMaxCandidates int `mapstructure:"vector_max_candidates"`

	ColorSimilarity    float64 `mapstructure:"color_similarity"`
	ColorMaxHueDegrees float64 `mapstructure:"color_max_hue_degrees"`
	ColorNeutralChroma float64 `mapstructure:"color_neutral_chroma"`

	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`

	ImportWorkers  int           `mapstructure:"import_workers"`
	EmbedRateLimit float64       `mapstructure:"embed_rate_limit"`
	EmbedBurst     int           `mapstructure:"embed_burst"`
	EmbedURL       string        `mapstructure:"embed_url"`
	EmbedTimeout   time.Duration `mapstructure:"embed_timeout"`
	OpTimeout      time.Duration `mapstructure:"op_timeout"`

	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
}

var defaults = map[string]any{
	"data_dir":              "./refboard-data",
	"database_file":         "catalog.db",
	"library_dir":           "",
	"embedding_dim":         512,
	"vector_overfetch":      4,
	"vector_max_candidates": 1000,
	"color_similarity":      0.18,
	"color_max_hue_degrees": 35.0,
	"color_neutral_chroma":  0.04,
	"default_page_size":     100,
	"max_page_size":         500,
	"import_workers":        0,
	"embed_rate_limit":      5.0,
	"embed_burst":           1,
	"embed_url":             "",
	"embed_timeout":         "30s",
	"op_timeout":            "10s",
	"metrics_interval":      "1m",
}

// NewViper returns a viper instance with defaults and env binding applied.
// The CLI binds its flags onto the same instance before calling LoadFrom.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from defaults, an optional config file and
// REFBOARD_* environment variables. An empty configFile searches the working
// directory for refboard.{yaml,toml,json} and tolerates its absence.
func LoadConfig(configFile string) (*Config, error) {
	v := NewViper()
	if err := ReadConfigFile(v, configFile); err != nil {
		return nil, err
	}
	return LoadFrom(v)
}

// ReadConfigFile merges configFile into v. An empty configFile searches the
// working directory and is not an error when nothing is found.
func ReadConfigFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("refboard")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// LoadFrom decodes and validates a prepared viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	cfg.DataDir = dataDir
	if cfg.LibraryDir == "" {
		cfg.LibraryDir = filepath.Join(cfg.DataDir, "library")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MaxVectorCandidates is the largest k a sqlite-vec KNN query accepts.
const MaxVectorCandidates = 4096

// Validate rejects configurations the catalog cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseFile == "" {
		errs = append(errs, errors.New("database_file must not be empty"))
	}
	if c.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim))
	}
	if c.VectorOverfetch < 1 {
		errs = append(errs, fmt.Errorf("vector_overfetch must be at least 1, got %d", c.VectorOverfetch))
	}
	if c.VectorMaxCandidates < 1 || c.VectorMaxCandidates > MaxVectorCandidates {
		errs = append(errs, fmt.Errorf("vector_max_candidates must be in [1, %d], got %d",
			MaxVectorCandidates, c.VectorMaxCandidates))
	}
	if c.ColorSimilarity <= 0 {
		errs = append(errs, fmt.Errorf("color_similarity must be positive, got %g", c.ColorSimilarity))
	}
	if c.ColorMaxHueDegrees <= 0 || c.ColorMaxHueDegrees > 180 {
		errs = append(errs, fmt.Errorf("color_max_hue_degrees must be in (0, 180], got %g", c.ColorMaxHueDegrees))
	}
	if c.ColorNeutralChroma < 0 {
		errs = append(errs, fmt.Errorf("color_neutral_chroma must not be negative, got %g", c.ColorNeutralChroma))
	}
	if c.DefaultPageSize < 1 || c.MaxPageSize < c.DefaultPageSize {
		errs = append(errs, fmt.Errorf("page sizes invalid: default=%d max=%d", c.DefaultPageSize, c.MaxPageSize))
	}
	if c.EmbedRateLimit <= 0 || c.EmbedBurst < 1 {
		errs = append(errs, fmt.Errorf("embed rate invalid: limit=%g burst=%d", c.EmbedRateLimit, c.EmbedBurst))
	}
	return errors.Join(errs...)
}

// DatabasePath returns the full path of the catalog database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.DatabaseFile)
}

// ColorMaxHueRadians converts the configured hue gate to radians.
func (c *Config) ColorMaxHueRadians() float64 {
	return c.ColorMaxHueDegrees * math.Pi / 180
}

// Default returns the built-in configuration rooted at dataDir, ignoring
// config files and the environment. Used by tests and embedders.
func Default(dataDir string) *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.Set("data_dir", dataDir)
	cfg, err := LoadFrom(v)
	if err != nil {
		// defaults are valid by construction
		panic(err)
	}
	return cfg
}

// LogConfig prints the effective configuration the way the service logs it
// at startup.
func LogConfig(c *Config) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  DATA_DIR:              %s", c.DataDir)
	logging.Info("  DATABASE:              %s", c.DatabasePath())
	logging.Info("  LIBRARY_DIR:           %s", c.LibraryDir)
	logging.Info("  EMBEDDING_DIM:         %d", c.EmbeddingDim)
	logging.Info("  VECTOR_OVERFETCH:      %d (max %d)", c.VectorOverfetch, c.VectorMaxCandidates)
	logging.Info("  COLOR_SIMILARITY:      %g", c.ColorSimilarity)
	logging.Info("  COLOR_MAX_HUE_DEGREES: %g", c.ColorMaxHueDegrees)
	logging.Info("  COLOR_NEUTRAL_CHROMA:  %g", c.ColorNeutralChroma)
	logging.Info("  PAGE_SIZE:             %d (max %d)", c.DefaultPageSize, c.MaxPageSize)
	logging.Info("  IMPORT_WORKERS:        %s", workersString(c.ImportWorkers))
	logging.Info("  EMBED_RATE_LIMIT:      %g/s (burst %d)", c.EmbedRateLimit, c.EmbedBurst)
	logging.Info("  EMBED_URL:             %s", valueOr(c.EmbedURL, "(none)"))
	logging.Info("  LOG_LEVEL:             %s", logging.GetLevel())
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func workersString(n int) string {
	if n <= 0 {
		return "auto"
	}
	return fmt.Sprintf("%d", n)
}

// EnsureDataDir creates the data directory and checks that it is writable.
func EnsureDataDir(c *Config) error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("cannot create data directory %s: %w", c.DataDir, err)
	}
	testFile := filepath.Join(c.DataDir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("data directory %s not writable: %w", c.DataDir, err)
	}
	_ = os.Remove(testFile)
	return nil
}
