package recipient

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is an AdminStore backed by an embedded SQLite database.
// Both the project table and the admin change log live here.
// Use ":memory:" for tests.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	lookupStmt  *sql.Stmt
	listStmt    *sql.Stmt
	insertStmt  *sql.Stmt
	updateStmt  *sql.Stmt
	deleteStmt  *sql.Stmt
	logStmt     *sql.Stmt
	changesStmt *sql.Stmt
}

// NewSQLiteStore opens the database at dbPath, applies migrations, and
// prepares the repeated statements.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening project database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: setting pragmas: %v", ErrStoreUnavailable, err)
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.prepare(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// runMigrations applies all pending schema migrations.
// Uses the goose v3 Provider API (no global state, context-aware).
func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	// Strip the "migrations/" prefix so goose sees files at the root of the FS.
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("recipient: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("recipient: creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("recipient: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

func (s *SQLiteStore) prepare() error {
	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.lookupStmt, `SELECT email FROM projects WHERE project_id = ?`},
		{&s.listStmt, `SELECT project_id, email FROM projects ORDER BY project_id`},
		{&s.insertStmt, `INSERT INTO projects (project_id, email) VALUES (?, ?)`},
		{&s.updateStmt, `UPDATE projects SET project_id = ?, email = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE project_id = ?`},
		{&s.deleteStmt, `DELETE FROM projects WHERE project_id = ?`},
		{&s.logStmt, `INSERT INTO change_log (action, project_id, details) VALUES (?, ?, ?)`},
		{&s.changesStmt, `SELECT at, action, project_id, details FROM change_log
			ORDER BY id DESC LIMIT ?`},
	}

	for _, st := range stmts {
		prepared, err := s.db.Prepare(st.query)
		if err != nil {
			return fmt.Errorf("%w: preparing statement: %v", ErrStoreUnavailable, err)
		}

		*st.dst = prepared
	}

	return nil
}

// Lookup resolves a project ID to its address; ("", nil) when absent.
func (s *SQLiteStore) Lookup(ctx context.Context, projectID string) (string, error) {
	var email string

	err := s.lookupStmt.QueryRowContext(ctx, normalizeID(projectID)).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return email, nil
}

// List returns all rows ordered by project ID.
func (s *SQLiteStore) List(ctx context.Context) ([]Project, error) {
	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var projects []Project

	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Email); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return projects, nil
}

// Add inserts a new project row and records the change.
func (s *SQLiteStore) Add(ctx context.Context, projectID, email string) error {
	projectID = normalizeID(projectID)
	email = normalizeID(email)

	existing, err := s.Lookup(ctx, projectID)
	if err != nil {
		return err
	}

	if existing != "" {
		return fmt.Errorf("%w: %s", ErrDuplicate, projectID)
	}

	if _, err := s.insertStmt.ExecContext(ctx, projectID, email); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logChange(ctx, "add", projectID, "added project with email: "+email)

	return nil
}

// Update rewrites an existing row, optionally renaming its ID.
func (s *SQLiteStore) Update(ctx context.Context, oldID, newID, email string) error {
	oldID = normalizeID(oldID)
	newID = normalizeID(newID)
	email = normalizeID(email)

	if newID != oldID {
		existing, err := s.Lookup(ctx, newID)
		if err != nil {
			return err
		}

		if existing != "" {
			return fmt.Errorf("%w: %s", ErrDuplicate, newID)
		}
	}

	res, err := s.updateStmt.ExecContext(ctx, newID, email, oldID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, oldID)
	}

	s.logChange(ctx, "edit", oldID, fmt.Sprintf("changed to project ID: %s, email: %s", newID, email))

	return nil
}

// Delete removes a row by ID.
func (s *SQLiteStore) Delete(ctx context.Context, projectID string) error {
	projectID = normalizeID(projectID)

	email, err := s.Lookup(ctx, projectID)
	if err != nil {
		return err
	}

	if email == "" {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}

	if _, err := s.deleteStmt.ExecContext(ctx, projectID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.logChange(ctx, "delete", projectID, "deleted project with email: "+email)

	return nil
}

// Changes returns the newest limit audit entries (all when limit <= 0).
func (s *SQLiteStore) Changes(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means no limit
	}

	rows, err := s.changesStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var changes []Change

	for rows.Next() {
		var (
			c  Change
			at string
		)

		if err := rows.Scan(&at, &c.Action, &c.ProjectID, &c.Details); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		c.At, _ = time.Parse(time.RFC3339, at) //nolint:errcheck // zero time for unparseable rows
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return changes, nil
}

// Close releases prepared statements and the database handle.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{
		s.lookupStmt, s.listStmt, s.insertStmt, s.updateStmt,
		s.deleteStmt, s.logStmt, s.changesStmt,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}

	return s.db.Close()
}

// logChange records an audit entry. Best-effort: a failed audit write never
// fails the mutation it records.
func (s *SQLiteStore) logChange(ctx context.Context, action, projectID, details string) {
	if _, err := s.logStmt.ExecContext(ctx, action, projectID, details); err != nil {
		s.logger.Warn("change log write failed",
			slog.String("action", action),
			slog.String("project_id", projectID),
			slog.String("error", err.Error()),
		)
	}
}
