package core

import (
	"context"
	"fmt"

	"github.com/voxform/voxform/internal/logger"
	"github.com/voxform/voxform/internal/metrics"
	"github.com/voxform/voxform/internal/store"
	"github.com/voxform/voxform/internal/table"
	"go.uber.org/zap"
)

type RecordService struct {
	store store.Store
}

func NewRecordService(s store.Store) *RecordService {
	return &RecordService{store: s}
}

// Create inserts doc as exactly one row.
func (s *RecordService) Create(ctx context.Context, doc store.Document) (rec *store.Record, err error) {
	ctx, span := metrics.StartSpan(ctx, "records.create")
	defer func() {
		metrics.RecordOperationsTotal.WithLabelValues("create", metrics.Outcome(err)).Inc()
		metrics.EndSpan(span, err)
	}()

	rec, err = s.store.Create(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to save record: %w", err)
	}
	logger.Info("record saved",
		zap.String("id", rec.ID),
		zap.String("document_type", string(rec.DocumentType)),
		zap.Int("fields", len(rec.Fields)),
		zap.Int("line_items", len(rec.LineItems)))
	return rec, nil
}

// List returns every record, newest first.
func (s *RecordService) List(ctx context.Context) (records []store.Record, err error) {
	ctx, span := metrics.StartSpan(ctx, "records.list")
	defer func() {
		metrics.RecordOperationsTotal.WithLabelValues("list", metrics.Outcome(err)).Inc()
		metrics.EndSpan(span, err)
	}()

	records, err = s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// Search lists records and keeps those matching term.
func (s *RecordService) Search(ctx context.Context, term string) ([]store.Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return table.Filter(records, term), nil
}

// Delete removes the record with id. Deleting an unknown id succeeds and
// reports false.
func (s *RecordService) Delete(ctx context.Context, id string) (removed bool, err error) {
	ctx, span := metrics.StartSpan(ctx, "records.delete")
	defer func() {
		metrics.RecordOperationsTotal.WithLabelValues("delete", metrics.Outcome(err)).Inc()
		metrics.EndSpan(span, err)
	}()

	removed, err = s.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	if !removed {
		logger.Debug("delete matched no record", zap.String("id", id))
	}
	return removed, nil
}

func (s *RecordService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
