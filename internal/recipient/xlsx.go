package recipient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Header cells accepted when discovering the identifier and address columns.
// Matches the exported spreadsheet formats seen in the field.
var (
	idHeaders    = []string{"Project ID", "Order ID", "ID"}
	emailHeaders = []string{"Email ID link", "Email", "Email ID"}
)

// XLSXStore is a read-only Store backed by the first sheet of a workbook.
// Rows are loaded once at open; the admin surface lives on the CSV and
// SQLite stores.
type XLSXStore struct {
	path string
	byID map[string]string
	rows []Project
}

// NewXLSXStore loads the workbook at path.
func NewXLSXStore(path string, logger *slog.Logger) (*XLSXStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rows, err := readWorkbook(path)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]string, len(rows))
	for _, row := range rows {
		byID[normalizeID(row.ID)] = row.Email
	}

	logger.Info("loaded project workbook",
		slog.String("path", path),
		slog.Int("rows", len(rows)),
	)

	return &XLSXStore{path: path, byID: byID, rows: rows}, nil
}

// Lookup resolves a project ID to its address; ("", nil) when absent.
func (s *XLSXStore) Lookup(_ context.Context, projectID string) (string, error) {
	return s.byID[normalizeID(projectID)], nil
}

// List returns all rows in sheet order.
func (s *XLSXStore) List(_ context.Context) ([]Project, error) {
	out := make([]Project, len(s.rows))
	copy(out, s.rows)

	return out, nil
}

// Close is a no-op; the workbook is fully read at open.
func (s *XLSXStore) Close() error {
	return nil
}

// readWorkbook extracts (id, email) rows from the first sheet.
func readWorkbook(path string) ([]Project, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrStoreUnavailable, path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: %s has no sheets", ErrStoreUnavailable, path)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStoreUnavailable, path, err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	idCol, emailCol, err := findColumns(records[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var rows []Project

	for _, rec := range records[1:] {
		if idCol >= len(rec) || emailCol >= len(rec) {
			continue
		}

		id := normalizeID(rec[idCol])
		email := normalizeID(rec[emailCol])

		if id == "" || email == "" {
			continue
		}

		rows = append(rows, Project{ID: id, Email: email})
	}

	return rows, nil
}

// findColumns locates the identifier and address columns in the header row.
func findColumns(header []string) (idCol, emailCol int, err error) {
	idCol, emailCol = -1, -1

	for i, cell := range header {
		name := strings.TrimSpace(cell)

		if idCol < 0 && matchesHeader(name, idHeaders) {
			idCol = i
		}

		if emailCol < 0 && matchesHeader(name, emailHeaders) {
			emailCol = i
		}
	}

	if idCol < 0 || emailCol < 0 {
		return 0, 0, fmt.Errorf("missing required columns %q and %q", idHeaders[0], emailHeaders[0])
	}

	return idCol, emailCol, nil
}

func matchesHeader(cell string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(cell, c) {
			return true
		}
	}

	return false
}
