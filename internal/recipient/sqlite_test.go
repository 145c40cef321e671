package recipient

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "projects.db")

	store, err := NewSQLiteStore(path, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestSQLiteStoreLookup(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))

	email, err := store.Lookup(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	email, err = store.Lookup(ctx, "  1001  ")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	email, err = store.Lookup(ctx, "9999")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestSQLiteStoreAddDuplicate(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.ErrorIs(t, store.Add(ctx, "1001", "bob@example.com"), ErrDuplicate)
	require.ErrorIs(t, store.Add(ctx, " 1001 ", "bob@example.com"), ErrDuplicate)
}

func TestSQLiteStoreUpdate(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Update(ctx, "1001", "2002", "bob@example.com"))

	email, err := store.Lookup(ctx, "1001")
	require.NoError(t, err)
	assert.Empty(t, email)

	email, err = store.Lookup(ctx, "2002")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", email)

	require.ErrorIs(t, store.Update(ctx, "9999", "3003", "x@example.com"), ErrNotFound)
}

func TestSQLiteStoreUpdateRenameCollision(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Add(ctx, "2002", "bob@example.com"))
	require.ErrorIs(t, store.Update(ctx, "1001", "2002", "alice@example.com"), ErrDuplicate)
}

func TestSQLiteStoreDelete(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Delete(ctx, "1001"))
	require.ErrorIs(t, store.Delete(ctx, "1001"), ErrNotFound)
}

func TestSQLiteStoreList(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "2002", "bob@example.com"))
	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))

	projects, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "1001", projects[0].ID)
	assert.Equal(t, "2002", projects[1].ID)
}

func TestSQLiteStoreChanges(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Update(ctx, "1001", "1001", "bob@example.com"))
	require.NoError(t, store.Delete(ctx, "1001"))

	changes, err := store.Changes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, "delete", changes[0].Action)
	assert.Equal(t, "edit", changes[1].Action)
	assert.Equal(t, "add", changes[2].Action)
	assert.False(t, changes[0].At.IsZero())

	limited, err := store.Changes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "delete", limited[0].Action)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.db")

	store, err := NewSQLiteStore(path, discardLogger())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Add(ctx, "1001", "alice@example.com"))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, discardLogger())
	require.NoError(t, err)
	defer reopened.Close()

	email, err := reopened.Lookup(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}
