package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/xjson"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

//go:embed migrations/002_lookup_indexes.sql
var migrationV2 string

// Table names a logical record kind.
type Table string

const (
	TableWorkflows          Table = "workflows"
	TableWorkflowExecutions Table = "workflow_executions"
	TableTaskExecutions     Table = "task_executions"
	TableUserInputRequests  Table = "user_input_requests"
	TablePrompts            Table = "prompts"
	TableAuditEvents        Table = "audit_events"
	TableSettings           Table = "settings"
)

// SQLiteStore implements core.Store on a WAL-mode SQLite database.
//
// Writes go through a single connection so they are serialized within the
// process; across processes SQLite's write lock serializes them and busy
// errors are retried. Reads use a separate query-only pool and see the last
// committed snapshot without waiting on writers.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB // Write connection
	readDB *sql.DB // Query-only pool
	logger *logging.Logger

	// Retry configuration
	maxRetries    int
	baseRetryWait time.Duration

	workflows      *Collection[core.WorkflowRecord]
	executions     *Collection[core.WorkflowExecutionRecord]
	taskExecutions *Collection[core.TaskExecutionRecord]
	inputRequests  *Collection[core.UserInputRequestRecord]
	prompts        *Collection[core.PromptRecord]
	auditEvents    *Collection[core.AuditEventRecord]
	settings       *Collection[core.SettingRecord]
}

// SQLiteStoreOption configures the store.
type SQLiteStoreOption func(*SQLiteStore)

// WithLogger sets the store logger.
func WithLogger(logger *logging.Logger) SQLiteStoreOption {
	return func(s *SQLiteStore) {
		s.logger = logger
	}
}

// WithRetry overrides the busy retry policy.
func WithRetry(maxRetries int, baseWait time.Duration) SQLiteStoreOption {
	return func(s *SQLiteStore) {
		s.maxRetries = maxRetries
		s.baseRetryWait = baseWait
	}
}

// NewSQLiteStore opens (creating if needed) the database at dbPath.
func NewSQLiteStore(dbPath string, opts ...SQLiteStoreOption) (*SQLiteStore, error) {
	s := &SQLiteStore{
		dbPath:        dbPath,
		logger:        logging.NewNop(),
		maxRetries:    5,
		baseRetryWait: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	// Open write connection with WAL mode. _txlock=immediate makes every
	// transaction take the write lock up front so read-check-write sequences
	// cannot interleave with another process.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("opening write database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	s.db = db

	// Run migrations before any reader touches the file.
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	readDB, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=query_only(1)")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("opening read database: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	readDB.SetMaxIdleConns(5)
	readDB.SetConnMaxLifetime(5 * time.Minute)
	s.readDB = readDB

	s.workflows = newCollection(s, TableWorkflows, func(r *core.WorkflowRecord) string { return r.ID })
	s.executions = newCollection(s, TableWorkflowExecutions, func(r *core.WorkflowExecutionRecord) string { return r.ID })
	s.taskExecutions = newCollection(s, TableTaskExecutions, func(r *core.TaskExecutionRecord) string { return r.ID })
	s.inputRequests = newCollection(s, TableUserInputRequests, func(r *core.UserInputRequestRecord) string { return r.ID })
	s.prompts = newCollection(s, TablePrompts, func(r *core.PromptRecord) string { return r.ID })
	s.auditEvents = newCollection(s, TableAuditEvents, func(r *core.AuditEventRecord) string { return r.ID })
	s.settings = newCollection(s, TableSettings, func(r *core.SettingRecord) string { return r.ID })

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) Workflows() core.Repository[core.WorkflowRecord] { return s.workflows }
func (s *SQLiteStore) Executions() core.Repository[core.WorkflowExecutionRecord] {
	return s.executions
}
func (s *SQLiteStore) TaskExecutions() core.Repository[core.TaskExecutionRecord] {
	return s.taskExecutions
}
func (s *SQLiteStore) InputRequests() core.Repository[core.UserInputRequestRecord] {
	return s.inputRequests
}
func (s *SQLiteStore) Prompts() core.Repository[core.PromptRecord]         { return s.prompts }
func (s *SQLiteStore) AuditEvents() core.Repository[core.AuditEventRecord] { return s.auditEvents }
func (s *SQLiteStore) Settings() core.Repository[core.SettingRecord]       { return s.settings }

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	// Create migrations table if needed
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	// Check current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	// Apply pending migrations
	migrations := []string{migrationV1, migrationV2}
	for i, migration := range migrations {
		version := i + 1
		if version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration transaction: %w", err)
		}

		for _, stmt := range splitStatements(migration) {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("executing migration v%d: %w", version, err)
			}
		}

		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO schema_migrations (version, applied_at) VALUES (?, ?)",
			version, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration v%d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", version, err)
		}
	}

	return nil
}

// splitStatements splits a SQL script into individual statements.
func splitStatements(script string) []string {
	var statements []string
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		// Remove comment lines, keeping the actual SQL
		lines := strings.Split(stmt, "\n")
		var sqlLines []string
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				sqlLines = append(sqlLines, line)
			}
		}
		if len(sqlLines) > 0 {
			statements = append(statements, strings.Join(sqlLines, "\n"))
		}
	}
	return statements
}

// retryWrite executes a write operation with retry logic.
func (s *SQLiteStore) retryWrite(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := fn(); err != nil {
			if isSQLiteBusy(err) {
				lastErr = err
				wait := s.baseRetryWait * time.Duration(1<<attempt)
				s.logger.Debug("store: database busy, retrying",
					"operation", operation,
					"attempt", attempt+1,
					"wait", wait,
				)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
					continue
				}
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("%s failed after %d retries: %w", operation, s.maxRetries, lastErr)
}

// isSQLiteBusy checks if an error is a SQLite busy/locked error.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "SQLITE_LOCKED")
}

// FulfillInput atomically fulfills an input request and moves its task back
// to in_progress.
func (s *SQLiteStore) FulfillInput(ctx context.Context, req *core.UserInputRequestRecord, task *core.TaskExecutionRecord) error {
	reqPayload, err := xjson.Marshal(req)
	if err != nil {
		return core.ErrPersistence("encoding input request", err)
	}
	taskPayload, err := xjson.Marshal(task)
	if err != nil {
		return core.ErrPersistence("encoding task execution", err)
	}

	return s.retryWrite(ctx, "FulfillInput", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var current core.UserInputRequestRecord
		if err := getTx(ctx, tx, TableUserInputRequests, req.ID, &current); err != nil {
			return err
		}
		if current.Status != string(core.InputRequestPending) {
			return core.ErrValidation(core.CodeAlreadyFulfilled,
				fmt.Sprintf("input request %s is already %s", req.ID, current.Status))
		}

		var currentTask core.TaskExecutionRecord
		if err := getTx(ctx, tx, TableTaskExecutions, task.ID, &currentTask); err != nil {
			return err
		}
		if currentTask.Status != string(core.TaskStatusWaitingForInput) {
			return core.ErrValidation(core.CodeNotWaiting,
				fmt.Sprintf("task %s is %s, not waiting for input", currentTask.TaskID, currentTask.Status))
		}

		if err := putTx(ctx, tx, TableUserInputRequests, req.ID, reqPayload); err != nil {
			return err
		}
		if err := putTx(ctx, tx, TableTaskExecutions, task.ID, taskPayload); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func getTx(ctx context.Context, tx *sql.Tx, table Table, id string, out interface{}) error {
	var payload string
	// #nosec G202 -- table names are package constants
	err := tx.QueryRowContext(ctx, "SELECT payload FROM "+string(table)+" WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return core.ErrNotFound(string(table), id)
	}
	if err != nil {
		return err
	}
	if err := xjson.Unmarshal([]byte(payload), out); err != nil {
		return core.ErrPersistence("decoding "+string(table), err)
	}
	return nil
}

func putTx(ctx context.Context, tx *sql.Tx, table Table, id string, payload []byte) error {
	// #nosec G202 -- table names are package constants
	_, err := tx.ExecContext(ctx, `
		INSERT INTO `+string(table)+` (id, payload) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload
	`, id, string(payload))
	return err
}

// Close checkpoints the WAL and closes both connections.
func (s *SQLiteStore) Close() error {
	var errs []error
	if s.readDB != nil {
		if err := s.readDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing read connection: %w", err))
		}
	}
	if s.db != nil {
		if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			s.logger.Warn("store: wal checkpoint failed", "error", err)
		}
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing write connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Verify that SQLiteStore implements core.Store.
var _ core.Store = (*SQLiteStore)(nil)
