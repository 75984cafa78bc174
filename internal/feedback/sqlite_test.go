package feedback

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "flags-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewSQLiteStore(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "flags-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	flag := &Flag{
		PMID:           "38123456",
		Drug:           "azacitidine",
		Field:          "complete_response",
		ReportedValue:  "17.5",
		SuggestedValue: "16.4",
		Reason:         "Paper reports CR in the CMML subgroup only",
		Reviewer:       "hematology-review",
	}

	err := store.Save(ctx, flag)
	require.NoError(t, err)
	assert.NotZero(t, flag.ID, "ID should be assigned")
	assert.Equal(t, StatusOpen, flag.Status, "status defaults to open")
	assert.False(t, flag.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, flag.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	flag := &Flag{
		PMID:           "38123456",
		Drug:           "azacitidine",
		Field:          "complete_response",
		SuggestedValue: "16.4",
	}
	err := store.Save(ctx, flag)
	require.NoError(t, err)
	originalID := flag.ID

	// Saving the same (pmid, drug, field) updates the existing row
	updated := &Flag{
		PMID:           "38123456",
		Drug:           "azacitidine",
		Field:          "complete_response",
		SuggestedValue: "17.0",
		Reason:         "Re-checked against the full text",
	}
	err = store.Save(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, originalID, updated.ID, "update keeps the original ID")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := store.Get(ctx, "38123456", "azacitidine", "complete_response")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "17.0", got.SuggestedValue)
	assert.Equal(t, "Re-checked against the full text", got.Reason)
}

func TestSQLiteStore_Get(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	err := store.Save(ctx, &Flag{
		PMID:  "36555111",
		Drug:  "decitabine",
		Field: "sae_frequency",
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "36555111", "decitabine", "sae_frequency")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "36555111", got.PMID)
	assert.Equal(t, "decitabine", got.Drug)
	assert.Equal(t, StatusOpen, got.Status)
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	got, err := store.Get(context.Background(), "0", "azacitidine", "os_median")
	require.NoError(t, err)
	assert.Nil(t, got, "missing flag is nil, not an error")
}

func TestSQLiteStore_ListByPMID(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for _, field := range []string{"complete_response", "os_median"} {
		require.NoError(t, store.Save(ctx, &Flag{PMID: "38123456", Drug: "azacitidine", Field: field}))
	}
	require.NoError(t, store.Save(ctx, &Flag{PMID: "36555111", Drug: "decitabine", Field: "sae_frequency"}))

	flags, err := store.ListByPMID(ctx, "38123456")
	require.NoError(t, err)
	assert.Len(t, flags, 2)
	for _, f := range flags {
		assert.Equal(t, "38123456", f.PMID)
	}
}

func TestSQLiteStore_List_Pagination(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.Save(ctx, &Flag{
			PMID:  fmt.Sprintf("3800000%d", i),
			Drug:  "azacitidine",
			Field: "complete_response",
		})
		require.NoError(t, err)
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = store.List(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSQLiteStore_Resolve(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	flag := &Flag{PMID: "38123456", Drug: "azacitidine", Field: "complete_response"}
	require.NoError(t, store.Save(ctx, flag))

	err := store.Resolve(ctx, flag.ID)
	require.NoError(t, err)

	got, err := store.Get(ctx, "38123456", "azacitidine", "complete_response")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, StatusResolved, got.Status)

	err = store.Resolve(ctx, 99999)
	assert.Error(t, err, "resolving a missing flag fails")
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	flag := &Flag{PMID: "38123456", Drug: "azacitidine", Field: "complete_response"}
	require.NoError(t, store.Save(ctx, flag))

	require.NoError(t, store.Delete(ctx, flag.ID))

	got, err := store.Get(ctx, "38123456", "azacitidine", "complete_response")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_ExportImportJSON(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Flag{PMID: "1", Drug: "azacitidine", Field: "complete_response"}))
	require.NoError(t, store.Save(ctx, &Flag{PMID: "2", Drug: "decitabine", Field: "os_median"}))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))
	assert.Contains(t, buf.String(), `"count": 2`)

	// Import into a fresh store round-trips every flag
	other := createTestStore(t)
	defer other.Close()

	imported, skipped, err := other.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, skipped)

	count, err := other.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLiteStore_ImportJSON_SkipDuplicates(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Flag{PMID: "1", Drug: "azacitidine", Field: "complete_response"}))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	imported, skipped, err := store.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 1, skipped)
}
