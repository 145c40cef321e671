package recipient

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCSVStore(t *testing.T) (*CSVStore, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "projects.csv")

	store, err := NewCSVStore(path, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, path
}

func TestCSVStoreCreatesFileWithHeader(t *testing.T) {
	_, path := newTestCSVStore(t)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, csvHeader, rows[0])
}

func TestCSVStoreLookup(t *testing.T) {
	store, _ := newTestCSVStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))

	email, err := store.Lookup(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	// Surrounding whitespace on the queried ID is ignored.
	email, err = store.Lookup(ctx, "  1001  ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	// Unknown IDs resolve to empty, not an error.
	email, err = store.Lookup(ctx, "9999")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestCSVStoreAddDuplicate(t *testing.T) {
	store, _ := newTestCSVStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))

	err := store.Add(ctx, "1001", "bob@example.com")
	require.ErrorIs(t, err, ErrDuplicate)

	err = store.Add(ctx, " 1001 ", "bob@example.com")
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCSVStoreUpdate(t *testing.T) {
	store, _ := newTestCSVStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Update(ctx, "1001", "2002", "bob@example.com"))

	email, err := store.Lookup(ctx, "1001")
	require.NoError(t, err)
	assert.Empty(t, email)

	email, err = store.Lookup(ctx, "2002")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", email)

	err = store.Update(ctx, "9999", "3003", "x@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCSVStoreUpdateRenameCollision(t *testing.T) {
	store, _ := newTestCSVStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Add(ctx, "2002", "bob@example.com"))

	err := store.Update(ctx, "1001", "2002", "alice@example.com")
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestCSVStoreDelete(t *testing.T) {
	store, _ := newTestCSVStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Delete(ctx, "1001"))

	email, err := store.Lookup(ctx, "1001")
	require.NoError(t, err)
	assert.Empty(t, email)

	err = store.Delete(ctx, "1001")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCSVStorePersistsAcrossReopen(t *testing.T) {
	store, path := newTestCSVStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Add(ctx, "2002", "bob@example.com"))
	require.NoError(t, store.Close())

	reopened, err := NewCSVStore(path, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()

	projects, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "1001", projects[0].ID)
	assert.Equal(t, "2002", projects[1].ID)
}

func TestCSVStoreChangeLog(t *testing.T) {
	store, _ := newTestCSVStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Update(ctx, "1001", "1001", "bob@example.com"))
	require.NoError(t, store.Delete(ctx, "1001"))

	changes, err := store.Changes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	// Newest first.
	assert.Equal(t, "delete", changes[0].Action)
	assert.Equal(t, "edit", changes[1].Action)
	assert.Equal(t, "add", changes[2].Action)
	assert.Equal(t, "1001", changes[0].ProjectID)
	assert.False(t, changes[0].At.IsZero())

	limited, err := store.Changes(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "delete", limited[0].Action)
}

func TestCSVStoreLookupUnavailable(t *testing.T) {
	store, path := newTestCSVStore(t)

	require.NoError(t, os.Remove(path))

	_, err := store.Lookup(context.Background(), "1001")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCSVStoreWatchReloads(t *testing.T) {
	store, path := newTestCSVStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, store.Watch(ctx))

	// Replace the file with a backdated mtime so only the watcher, not the
	// mtime check in Lookup, can pick up the change.
	w, err := os.Create(path)
	require.NoError(t, err)

	cw := csv.NewWriter(w)
	require.NoError(t, cw.WriteAll([][]string{
		csvHeader,
		{"3003", "carol@example.com"},
	}))
	require.NoError(t, w.Close())

	past := store.loadedAt.Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	require.Eventually(t, func() bool {
		email, err := store.Lookup(ctx, "3003")
		return err == nil && email == "carol@example.com"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCSVStoreReloadsExternalEdits(t *testing.T) {
	store, path := newTestCSVStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))

	// Rewrite the file out-of-band with a newer mtime.
	w, err := os.Create(path)
	require.NoError(t, err)

	cw := csv.NewWriter(w)
	require.NoError(t, cw.WriteAll([][]string{
		csvHeader,
		{"2002", "bob@example.com"},
	}))
	require.NoError(t, w.Close())

	future := store.loadedAt.Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	email, err := store.Lookup(ctx, "2002")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", email)
}
