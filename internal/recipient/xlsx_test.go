package recipient

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeTestWorkbook(t *testing.T, headers []string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "projects.xlsx")

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetList()[0]
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		require.NoError(t, err)
		require.NoError(t, f.SetCellValue(sheet, cell, h))
	}

	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, v))
		}
	}

	require.NoError(t, f.SaveAs(path))

	return path
}

func TestXLSXStoreLookup(t *testing.T) {
	path := writeTestWorkbook(t,
		[]string{"Project ID", "Email ID link"},
		[][]string{
			{"1001", "alice@example.com"},
			{"2002", "bob@example.com"},
		})

	store, err := NewXLSXStore(path, discardLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()

	email, err := store.Lookup(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	email, err = store.Lookup(ctx, " 2002 ")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", email)

	email, err = store.Lookup(ctx, "9999")
	require.NoError(t, err)
	assert.Empty(t, email)
}

func TestXLSXStoreAlternateHeaders(t *testing.T) {
	path := writeTestWorkbook(t,
		[]string{"Notes", "Order ID", "Email"},
		[][]string{
			{"rush job", "3003", "carol@example.com"},
		})

	store, err := NewXLSXStore(path, discardLogger())
	require.NoError(t, err)
	defer store.Close()

	email, err := store.Lookup(context.Background(), "3003")
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", email)
}

func TestXLSXStoreSkipsBlankRows(t *testing.T) {
	path := writeTestWorkbook(t,
		[]string{"Project ID", "Email ID link"},
		[][]string{
			{"1001", "alice@example.com"},
			{"", ""},
			{"2002", "bob@example.com"},
		})

	store, err := NewXLSXStore(path, discardLogger())
	require.NoError(t, err)
	defer store.Close()

	projects, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

func TestXLSXStoreMissingColumns(t *testing.T) {
	path := writeTestWorkbook(t,
		[]string{"Name", "Phone"},
		[][]string{{"alice", "555-0100"}})

	_, err := NewXLSXStore(path, discardLogger())
	require.Error(t, err)
}
