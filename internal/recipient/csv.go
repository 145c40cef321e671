package recipient

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CSV column headers, matching the exported project email list format.
var csvHeader = []string{"Project ID", "Email ID link"}

// changeLogHeader is the header row of the sibling change log file.
var changeLogHeader = []string{"timestamp", "action", "project_id", "details"}

// changeLogName is the audit log filename, kept next to the projects file.
const changeLogName = "change_log.csv"

// CSVStore is an AdminStore backed by a two-column CSV file. Rows are held
// in memory; the file is reloaded when its mtime changes, and Watch() adds
// fsnotify-driven reload for long-running processes. Mutations rewrite the
// file atomically (temp file + rename).
type CSVStore struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	rows     []Project
	byID     map[string]string
	loadedAt time.Time
}

// NewCSVStore opens (creating if absent) the projects CSV at path.
func NewCSVStore(path string, logger *slog.Logger) (*CSVStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &CSVStore{path: path, logger: logger}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if writeErr := s.writeRows(nil); writeErr != nil {
			return nil, writeErr
		}
	}

	if err := s.reload(); err != nil {
		return nil, err
	}

	return s, nil
}

// Lookup resolves a project ID to its address, reloading the file first if
// it changed on disk since the last load.
func (s *CSVStore) Lookup(_ context.Context, projectID string) (string, error) {
	if err := s.reloadIfChanged(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.byID[normalizeID(projectID)], nil
}

// List returns all rows in file order.
func (s *CSVStore) List(_ context.Context) ([]Project, error) {
	if err := s.reloadIfChanged(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Project, len(s.rows))
	copy(out, s.rows)

	return out, nil
}

// Add appends a new project row. Duplicate IDs are rejected.
func (s *CSVStore) Add(_ context.Context, projectID, email string) error {
	projectID = normalizeID(projectID)
	email = normalizeID(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[projectID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, projectID)
	}

	rows := append(append([]Project{}, s.rows...), Project{ID: projectID, Email: email})
	if err := s.writeRows(rows); err != nil {
		return err
	}

	s.applyLocked(rows)
	s.logChange("add", projectID, "added project with email: "+email)

	return nil
}

// Update rewrites an existing row, optionally renaming its ID.
func (s *CSVStore) Update(_ context.Context, oldID, newID, email string) error {
	oldID = normalizeID(oldID)
	newID = normalizeID(newID)
	email = normalizeID(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[oldID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, oldID)
	}

	if newID != oldID {
		if _, exists := s.byID[newID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, newID)
		}
	}

	rows := make([]Project, len(s.rows))
	copy(rows, s.rows)

	for i := range rows {
		if normalizeID(rows[i].ID) == oldID {
			rows[i] = Project{ID: newID, Email: email}
			break
		}
	}

	if err := s.writeRows(rows); err != nil {
		return err
	}

	s.applyLocked(rows)
	s.logChange("edit", oldID, fmt.Sprintf("changed to project ID: %s, email: %s", newID, email))

	return nil
}

// Delete removes a row by ID.
func (s *CSVStore) Delete(_ context.Context, projectID string) error {
	projectID = normalizeID(projectID)

	s.mu.Lock()
	defer s.mu.Unlock()

	email, exists := s.byID[projectID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}

	rows := make([]Project, 0, len(s.rows))
	for _, row := range s.rows {
		if normalizeID(row.ID) != projectID {
			rows = append(rows, row)
		}
	}

	if err := s.writeRows(rows); err != nil {
		return err
	}

	s.applyLocked(rows)
	s.logChange("delete", projectID, "deleted project with email: "+email)

	return nil
}

// Changes reads the sibling change log, newest first.
func (s *CSVStore) Changes(_ context.Context, limit int) ([]Change, error) {
	f, err := os.Open(s.changeLogPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parsing change log: %v", ErrStoreUnavailable, err)
	}

	var changes []Change

	for i := len(records) - 1; i >= 1; i-- { // skip header, newest last in file
		rec := records[i]
		if len(rec) < 4 {
			continue
		}

		at, _ := time.Parse(time.RFC3339, rec[0]) //nolint:errcheck // zero time for unparseable rows
		changes = append(changes, Change{At: at, Action: rec[1], ProjectID: rec[2], Details: rec[3]})

		if limit > 0 && len(changes) >= limit {
			break
		}
	}

	return changes, nil
}

// Close is a no-op for the file-backed store.
func (s *CSVStore) Close() error {
	return nil
}

// Watch reloads the store when the projects file changes on disk, until ctx
// is canceled. Watches the directory because editors and atomic writers
// replace the file rather than writing in place.
func (s *CSVStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("recipient: creating watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("recipient: watching %s: %w", filepath.Dir(s.path), err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Name != s.path {
					continue
				}

				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					if err := s.reload(); err != nil {
						s.logger.Warn("reload after file change failed",
							slog.String("path", s.path),
							slog.String("error", err.Error()),
						)
					} else {
						s.logger.Info("reloaded projects file", slog.String("path", s.path))
					}
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}

				s.logger.Warn("watcher error", slog.String("error", watchErr.Error()))
			}
		}
	}()

	return nil
}

// reloadIfChanged reloads when the file's mtime moved past the last load.
func (s *CSVStore) reloadIfChanged() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.mu.RLock()
	fresh := !info.ModTime().After(s.loadedAt)
	s.mu.RUnlock()

	if fresh {
		return nil
	}

	return s.reload()
}

// reload parses the file and swaps the in-memory rows.
func (s *CSVStore) reload() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrStoreUnavailable, s.path, err)
	}

	var rows []Project

	for i, rec := range records {
		if i == 0 || len(rec) < 2 { // header row
			continue
		}

		id := normalizeID(rec[0])
		if id == "" {
			continue
		}

		rows = append(rows, Project{ID: id, Email: normalizeID(rec[1])})
	}

	s.mu.Lock()
	s.applyLocked(rows)
	s.mu.Unlock()

	return nil
}

// applyLocked installs rows and rebuilds the index. Caller holds mu.
func (s *CSVStore) applyLocked(rows []Project) {
	byID := make(map[string]string, len(rows))
	for _, row := range rows {
		byID[normalizeID(row.ID)] = row.Email
	}

	s.rows = rows
	s.byID = byID
	s.loadedAt = time.Now()
}

// writeRows writes header + rows to a temp file and renames it over the
// target, so readers never observe a partial file.
func (s *CSVStore) writeRows(rows []Project) error {
	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, ".projects-*.csv")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	w := csv.NewWriter(tmp)

	writeErr := w.Write(csvHeader)
	for _, row := range rows {
		if writeErr != nil {
			break
		}

		writeErr = w.Write([]string{row.ID, row.Email})
	}

	w.Flush()

	if writeErr == nil {
		writeErr = w.Error()
	}

	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}

	if writeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing %s: %v", ErrStoreUnavailable, s.path, writeErr)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

func (s *CSVStore) changeLogPath() string {
	return filepath.Join(filepath.Dir(s.path), changeLogName)
}

// logChange appends an audit entry to the change log. Best-effort: a failed
// audit write never fails the mutation it records.
func (s *CSVStore) logChange(action, projectID, details string) {
	path := s.changeLogPath()

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("change log open failed", slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if isNew {
		_ = w.Write(changeLogHeader) //nolint:errcheck // best-effort audit write
	}

	_ = w.Write([]string{ //nolint:errcheck // best-effort audit write
		time.Now().UTC().Format(time.RFC3339),
		action,
		projectID,
		details,
	})

	w.Flush()

	if err := w.Error(); err != nil {
		s.logger.Warn("change log write failed", slog.String("error", err.Error()))
	}
}
