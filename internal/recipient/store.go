// Package recipient maps project identifiers to notification addresses.
// The lookup store is pluggable: a CSV file, a spreadsheet, or a relational
// table, all behind one interface. "Not found" is a valid empty result, not
// an error; store transport failures wrap ErrStoreUnavailable.
package recipient

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store errors. Admin mutations return ErrNotFound/ErrDuplicate; any backend
// transport failure wraps ErrStoreUnavailable so callers can tell it apart
// from an empty lookup.
var (
	ErrStoreUnavailable = errors.New("recipient: store unavailable")
	ErrNotFound         = errors.New("recipient: project not found")
	ErrDuplicate        = errors.New("recipient: project already exists")
)

// Project is one identifier-to-address row.
type Project struct {
	ID    string
	Email string
}

// Change is one audit log entry recorded by admin mutations.
type Change struct {
	At        time.Time
	Action    string
	ProjectID string
	Details   string
}

// Store resolves a project identifier to a notification address.
// Lookup returns ("", nil) when no row matches.
type Store interface {
	Lookup(ctx context.Context, projectID string) (string, error)
	Close() error
}

// AdminStore extends Store with the mutations behind the admin surface.
// The upload flow only ever sees Store.
type AdminStore interface {
	Store

	List(ctx context.Context) ([]Project, error)
	Add(ctx context.Context, projectID, email string) error
	Update(ctx context.Context, oldID, newID, email string) error
	Delete(ctx context.Context, projectID string) error
	Changes(ctx context.Context, limit int) ([]Change, error)
}

// normalizeID trims surrounding whitespace so a numeric-looking identifier
// and its string form compare equal regardless of padding.
func normalizeID(id string) string {
	return strings.TrimSpace(id)
}
