package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"refboard/internal/color"
	"refboard/internal/logging"
	"refboard/internal/metrics"
)

// DriverName is the database/sql driver registered by this package. It is
// the stock go-sqlite3 driver plus the catalog's SQL functions.
const DriverName = "sqlite3_refboard"

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			if err := conn.RegisterFunc("color_match", colorMatchSQL, true); err != nil {
				return err
			}
			// SQLite's lower() only folds ASCII
			return conn.RegisterFunc("unicode_lower", strings.ToLower, true)
		},
	})
}

// colorMatchSQL backs color_match(l, c, h, tl, tc, th, sim, maxHue, neutral).
// Any NULL component yields 0, so rows without a color never match.
func colorMatchSQL(args ...interface{}) (int64, error) {
	if len(args) != 9 {
		return 0, fmt.Errorf("color_match: expected 9 arguments, got %d", len(args))
	}
	vals := make([]float64, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil:
			return 0, nil
		case float64:
			vals[i] = v
		case int64:
			vals[i] = float64(v)
		default:
			return 0, fmt.Errorf("color_match: argument %d has type %T", i, a)
		}
	}
	p := color.Predicate{
		Target: color.LCH{L: vals[3], C: vals[4], H: vals[5]},
		Config: color.FilterConfig{
			SimilarityThreshold: vals[6],
			MaxHueDiff:          vals[7],
			NeutralChroma:       vals[8],
		},
	}
	if p.Match(color.LCH{L: vals[0], C: vals[1], H: vals[2]}) {
		return 1, nil
	}
	return 0, nil
}

// Querier is satisfied by both *sql.DB and *sql.Tx, so helpers can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures how the database is opened. A nil *Options is valid.
type Options struct {
	// MmapDisabled turns off memory-mapped I/O (mmap_size=0), for catalogs
	// living on network filesystems.
	MmapDisabled bool

	// MaxOpenConns caps the pool. Zero uses the default of 8.
	MaxOpenConns int
}

// Database is the storage handle: one SQLite file in WAL mode holding the
// relational catalog and, when the extension is present, the vector table.
type Database struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the catalog database at dbPath, creating parent
// directories as needed, and applies the schema.
func Open(ctx context.Context, dbPath string, opts *Options) (*Database, error) {
	if opts == nil {
		opts = &Options{}
	}
	done := ObserveQuery("open")

	logging.Info("Database path: %s", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		done(err)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// WAL lets readers proceed while a writer commits. _txlock=immediate takes
	// the write lock at BEGIN so read-then-write transactions never hit a
	// lock upgrade failure.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate&_cache_size=10000&_temp_store=MEMORY", dbPath)

	db, err := sql.Open(DriverName, connStr)
	if err != nil {
		done(err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		done(err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 8
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if opts.MmapDisabled {
		if _, err := db.ExecContext(ctx, "PRAGMA mmap_size = 0"); err != nil {
			logging.Warn("Failed to disable mmap: %v", err)
		}
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		done(err)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	done(nil)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	done := ObserveQuery("initialize_schema")
	schema := `
	CREATE TABLE IF NOT EXISTS images (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		filename TEXT NOT NULL UNIQUE,
		relative_path TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL,
		page_url TEXT,
		dominant_color TEXT,
		color_l REAL,
		color_c REAL,
		color_h REAL,
		tone TEXT,
		gallery_order INTEGER,
		CHECK (
			(dominant_color IS NULL AND color_l IS NULL AND color_c IS NULL AND color_h IS NULL)
			OR (dominant_color IS NOT NULL AND color_l IS NOT NULL AND color_c IS NOT NULL AND color_h IS NOT NULL)
		)
	);

	CREATE INDEX IF NOT EXISTS idx_images_gallery ON images(COALESCE(gallery_order, -1), created_at DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_images_created ON images(created_at DESC, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_images_order ON images(gallery_order) WHERE gallery_order IS NOT NULL;

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS image_tags (
		image_id TEXT NOT NULL,
		tag_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (image_id) REFERENCES images(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
		UNIQUE(image_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS idx_image_tags_tag ON image_tags(tag_id);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		done(err)
		return err
	}

	err = d.runMigrations(ctx)
	done(err)
	return err
}

// runMigrations applies column additions for catalogs created by older builds.
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: tone bucket column
	if err := d.ensureColumn(ctx, "images", "tone", "ALTER TABLE images ADD COLUMN tone TEXT"); err != nil {
		return err
	}

	// Migration 2: provenance URL
	if err := d.ensureColumn(ctx, "images", "page_url", "ALTER TABLE images ADD COLUMN page_url TEXT"); err != nil {
		return err
	}

	return nil
}

func (d *Database) ensureColumn(ctx context.Context, table, column, ddl string) error {
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for %s.%s column: %w", table, column, err)
	}
	if columnExists {
		return nil
	}

	logging.Info("Migrating database: adding %s column to %s table", column, table)
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to add %s.%s column: %w", table, column, err)
	}
	logging.Info("Migration complete: %s.%s added", table, column)
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// DB exposes the underlying pool for read queries. It satisfies Querier.
func (d *Database) DB() *sql.DB {
	return d.db
}

// WithTx runs fn inside one transaction. A nil return commits; any error (or
// panic) rolls back, so no partial write is ever visible. op labels metrics.
func (d *Database) WithTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	txStart := time.Now()
	done := ObserveQuery(op)
	defer func() { done(err) }()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	committed = true
	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())
	return nil
}

// ExecAffected runs a write statement and records the rows it touched.
func ExecAffected(ctx context.Context, q Querier, op, query string, args ...any) (int64, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows > 0 {
		metrics.DBRowsAffected.WithLabelValues(op).Observe(float64(rows))
	}
	return rows, nil
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// ObserveQuery starts timing an operation and returns the function that
// records its outcome.
func ObserveQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		recordQuery(operation, start, err)
	}
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// IsConstraintViolation reports whether err is a SQLite constraint failure
// (UNIQUE, CHECK, FOREIGN KEY).
func IsConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile) // Explicitly ignore cleanup error

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file %s is read-only! Mode: %v - this will cause write failures", path, info.Mode())
		}
	}

	return nil
}
