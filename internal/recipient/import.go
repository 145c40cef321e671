package recipient

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ReadProjects reads project rows from a CSV or XLSX file for bulk import.
// The file must carry a recognizable ID column and email column header.
func ReadProjects(path string) ([]Project, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVProjects(path)
	case ".xlsx":
		return readWorkbook(path)
	default:
		return nil, fmt.Errorf("unsupported import format %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

func readCSVProjects(path string) ([]Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrStoreUnavailable, err)
	}

	idCol, emailCol, err := findColumns(header)
	if err != nil {
		return nil, err
	}

	var projects []Project

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		if idCol >= len(record) || emailCol >= len(record) {
			continue
		}

		projects = append(projects, Project{
			ID:    normalizeID(record[idCol]),
			Email: normalizeID(record[emailCol]),
		})
	}

	return projects, nil
}

// BulkImport adds rows to dst, skipping blank IDs, blank emails, and IDs
// already present. Returns the number added and the number skipped.
func BulkImport(ctx context.Context, dst AdminStore, rows []Project) (added, skipped int, err error) {
	for _, p := range rows {
		if p.ID == "" || p.Email == "" {
			skipped++
			continue
		}

		switch err := dst.Add(ctx, p.ID, p.Email); {
		case errors.Is(err, ErrDuplicate):
			skipped++
		case err != nil:
			return added, skipped, err
		default:
			added++
		}
	}

	return added, skipped, nil
}
