package export

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/catalogue-crawler/internal/catalogue"
	"github.com/JakeFAU/catalogue-crawler/internal/hash/sha256"
	"github.com/JakeFAU/catalogue-crawler/internal/storage/memory"
)

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("permission denied")
}

func newExporter(t *testing.T, store catalogue.BlobStore, logger *zap.Logger) *Exporter {
	t.Helper()
	exp, err := New(store, sha256.New(), Config{Object: "books_enhanced.csv"}, logger)
	require.NoError(t, err)
	return exp
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportWritesUnionSchema(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	core, logs := observer.New(zap.InfoLevel)
	rows := []catalogue.OutputRow{
		{"Title": "A", "Price": "£1.00", "Availability": "In stock", "URL": "u1",
			"Category": "Poetry", "UPC": "x1", "Description": "Short, \"quoted\" text"},
		{"Title": "B", "Price": "£2.00", "Availability": "In stock", "URL": "u2"},
	}

	res, err := newExporter(t, store, zap.New(core)).Export(context.Background(), rows)
	require.NoError(t, err)

	assert.True(t, res.Written)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "memory://books_enhanced.csv", res.URI)
	assert.Equal(t, catalogue.CanonicalFields, res.Schema)

	data, contentType, ok := store.Get("books_enhanced.csv")
	require.True(t, ok)
	assert.Equal(t, "text/csv; charset=utf-8", contentType)
	assert.Equal(t, len(data), res.Bytes)
	wantDigest, _ := sha256.New().Hash(data)
	assert.Equal(t, wantDigest, res.Digest)

	records := readCSV(t, data)
	require.Len(t, records, 3)
	assert.Equal(t, []string(catalogue.CanonicalFields), records[0])
	assert.Equal(t, []string{"A", "£1.00", "In stock", "Poetry", "x1", "Short, \"quoted\" text", "u1"}, records[1])
	assert.Equal(t, []string{"B", "£2.00", "In stock", "", "", "", "u2"}, records[2])

	assert.Equal(t, 1, logs.FilterMessage("Saved 2 items to memory://books_enhanced.csv").Len())
}

func TestExportEmptyRowsWritesNothing(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	core, logs := observer.New(zap.WarnLevel)

	res, err := newExporter(t, store, zap.New(core)).Export(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.Zero(t, store.Len())
	assert.Equal(t, 1, logs.FilterMessage("No data to save.").Len())
}

func TestExportStoreFailure(t *testing.T) {
	t.Parallel()

	_, err := newExporter(t, failingStore{}, zap.NewNop()).
		Export(context.Background(), []catalogue.OutputRow{{"Title": "A"}})

	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, "books_enhanced.csv", exportErr.Object)
	assert.EqualError(t, err, "export books_enhanced.csv: permission denied")
}

func TestExportOverwritesPreviousRun(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	exp := newExporter(t, store, zap.NewNop())
	_, err := exp.Export(context.Background(), []catalogue.OutputRow{{"Title": "old"}, {"Title": "older"}})
	require.NoError(t, err)
	_, err = exp.Export(context.Background(), []catalogue.OutputRow{{"Title": "new"}})
	require.NoError(t, err)

	data, _, _ := store.Get("books_enhanced.csv")
	records := readCSV(t, data)
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[1][0])
}

func TestRenderExtraColumns(t *testing.T) {
	t.Parallel()

	rows := []catalogue.OutputRow{{"Title": "A", "Rating": "Three"}, {"Title": "B", "Pages": "120"}}
	data, err := Render(catalogue.BuildSchema(rows), rows)
	require.NoError(t, err)
	records := readCSV(t, data)
	assert.Equal(t, append(append([]string{}, catalogue.CanonicalFields...), "Rating", "Pages"), records[0])
	assert.Equal(t, "Three", records[1][7])
	assert.Equal(t, "", records[1][8])
	assert.Equal(t, "120", records[2][8])
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		store  catalogue.BlobStore
		hasher catalogue.Hasher
		cfg    Config
	}{
		{name: "no store", hasher: sha256.New(), cfg: Config{Object: "x.csv"}},
		{name: "no hasher", store: memory.NewBlobStore(), cfg: Config{Object: "x.csv"}},
		{name: "no object", store: memory.NewBlobStore(), hasher: sha256.New()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.store, tt.hasher, tt.cfg, nil)
			assert.Error(t, err)
		})
	}
}
