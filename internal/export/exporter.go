// Package export writes merged catalogue rows as a single CSV document.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalogue-crawler/internal/catalogue"
	"github.com/JakeFAU/catalogue-crawler/internal/metrics"
)

const defaultContentType = "text/csv; charset=utf-8"

// Config controls where and how the export is stored.
type Config struct {
	// Object is the destination path handed to the blob store.
	Object      string
	ContentType string
}

// ExportError reports that the export destination could not be written.
type ExportError struct {
	Object string
	Cause  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Object, e.Cause)
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}

// Result describes a finished export.
type Result struct {
	Written bool
	Rows    int
	URI     string
	Schema  catalogue.FieldSchema
	// Digest is the hex SHA-256 of the bytes written.
	Digest string
	Bytes  int
}

// Exporter renders rows to CSV and stores the document.
type Exporter struct {
	store  catalogue.BlobStore
	hasher catalogue.Hasher
	cfg    Config
	logger *zap.Logger
}

// New builds an Exporter.
func New(store catalogue.BlobStore, hasher catalogue.Hasher, cfg Config, logger *zap.Logger) (*Exporter, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if cfg.Object == "" {
		return nil, fmt.Errorf("export object is required")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = defaultContentType
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, hasher: hasher, cfg: cfg, logger: logger}, nil
}

// Export writes a header of the schema union followed by one record per row.
// With no rows nothing is written and Result.Written is false.
func (e *Exporter) Export(ctx context.Context, rows []catalogue.OutputRow) (Result, error) {
	if len(rows) == 0 {
		e.logger.Warn("No data to save.")
		metrics.SetExportRows(0)
		return Result{}, nil
	}

	schema := catalogue.BuildSchema(rows)
	data, err := Render(schema, rows)
	if err != nil {
		return Result{}, &ExportError{Object: e.cfg.Object, Cause: err}
	}
	digest, err := e.hasher.Hash(data)
	if err != nil {
		return Result{}, &ExportError{Object: e.cfg.Object, Cause: fmt.Errorf("hash export: %w", err)}
	}
	uri, err := e.store.PutObject(ctx, e.cfg.Object, e.cfg.ContentType, bytes.NewReader(data))
	if err != nil {
		e.logger.Error("export write failed", zap.String("object", e.cfg.Object), zap.Error(err))
		return Result{}, &ExportError{Object: e.cfg.Object, Cause: err}
	}

	metrics.SetExportRows(len(rows))
	e.logger.Info(fmt.Sprintf("Saved %d items to %s", len(rows), uri),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(schema)),
		zap.String("sha256", digest),
	)
	return Result{
		Written: true,
		Rows:    len(rows),
		URI:     uri,
		Schema:  schema,
		Digest:  digest,
		Bytes:   len(data),
	}, nil
}

// Render encodes rows as CSV with schema as the header. Fields a row lacks are
// written as empty cells.
func Render(schema catalogue.FieldSchema, rows []catalogue.OutputRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(schema); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		if err := w.Write(schema.Values(row)); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
