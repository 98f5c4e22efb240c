// Package service implements the quickMARC record operations on top of the
// converter, the record store and the event and export collaborators.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/converter"
	errordefs "github.com/RegistryAccord/registryaccord-qm-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/event"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/export"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marcutil"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/schema"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/storage"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/telemetry"
)

const (
	directionToQuickMarc = "to_quickmarc"
	directionToParsed    = "to_parsed"
)

// Options holds the optional collaborators of a RecordService.
type Options struct {
	Validator *schema.Validator // nil skips content validation
	Exporter  export.Exporter   // nil disables ISO 2709 exports
	CacheSize int               // 0 disables the read cache
	CacheTTL  time.Duration
}

// RecordService serves QuickMarc views of stored records and saves edits.
type RecordService struct {
	store     storage.Store
	conv      *converter.RecordConverter
	publisher event.Publisher
	metrics   *metrics.Metrics
	validator *schema.Validator
	exporter  export.Exporter
	cache     *recordCache
}

// New wires a RecordService.
func New(store storage.Store, conv *converter.RecordConverter, publisher event.Publisher, m *metrics.Metrics, opts Options) *RecordService {
	return &RecordService{
		store:     store,
		conv:      conv,
		publisher: publisher,
		metrics:   m,
		validator: opts.Validator,
		exporter:  opts.Exporter,
		cache:     newRecordCache(opts.CacheSize, opts.CacheTTL, m),
	}
}

// GetQuickMarc returns the editing view of the record with id.
func (s *RecordService) GetQuickMarc(ctx context.Context, id string) (qm model.QuickMarc, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RecordService.GetQuickMarc", attribute.String("qm.record_id", id))
	defer func() { telemetry.EndSpan(span, err) }()

	if !marcutil.IsValidUUID(id) {
		return model.QuickMarc{}, errordefs.Newf(errordefs.QM_BAD_REQUEST, "record id %q is not a UUID", id)
	}
	dto, err := s.load(ctx, id)
	if err != nil {
		return model.QuickMarc{}, err
	}
	span.SetAttributes(attribute.String("qm.record_type", string(dto.RecordType)))
	return s.toQuickMarc(dto)
}

// CreateQuickMarc stores a new record. A missing id is generated.
func (s *RecordService) CreateQuickMarc(ctx context.Context, qm model.QuickMarc, correlationID string) (out model.QuickMarc, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RecordService.CreateQuickMarc", attribute.String("qm.format", string(qm.MarcFormat)))
	defer func() { telemetry.EndSpan(span, err) }()

	if qm.ID == "" {
		qm.ID = uuid.NewString()
	}
	if qm.RelatedRecordVersion != "" && qm.RelatedRecordVersion != "0" {
		return model.QuickMarc{}, errordefs.New(errordefs.QM_BAD_REQUEST, "a new record cannot carry a relatedRecordVersion")
	}
	return s.save(ctx, qm, "", correlationID)
}

// UpdateQuickMarc converts an edited record and stores it if the edit was made
// against the stored version. It returns the editing view of the saved record.
func (s *RecordService) UpdateQuickMarc(ctx context.Context, id string, qm model.QuickMarc, correlationID string) (out model.QuickMarc, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RecordService.UpdateQuickMarc",
		attribute.String("qm.record_id", id), attribute.String("qm.format", string(qm.MarcFormat)))
	defer func() { telemetry.EndSpan(span, err) }()

	if !marcutil.IsValidUUID(id) {
		return model.QuickMarc{}, errordefs.Newf(errordefs.QM_BAD_REQUEST, "record id %q is not a UUID", id)
	}
	if qm.ID == "" {
		qm.ID = id
	}
	if qm.ID != id {
		return model.QuickMarc{}, errordefs.New(errordefs.QM_BAD_REQUEST, "record id in body does not match the path")
	}

	// The version check reads the store: another instance may have saved
	// since this instance cached the record.
	stored, err := s.fetch(ctx, id)
	if err != nil {
		return model.QuickMarc{}, err
	}
	if qm.RelatedRecordVersion != stored.RelatedRecordVersion {
		return model.QuickMarc{}, errordefs.NewWithDetails(errordefs.QM_CONFLICT,
			"record was changed by another user", map[string]string{
				"expected": stored.RelatedRecordVersion,
				"received": qm.RelatedRecordVersion,
			})
	}
	return s.save(ctx, qm, stored.RelatedRecordVersion, correlationID)
}

// Convert converts qm without storing it.
func (s *RecordService) Convert(ctx context.Context, qm model.QuickMarc) (dto model.ParsedRecordDto, err error) {
	_, span := telemetry.StartSpan(ctx, "RecordService.Convert", attribute.String("qm.format", string(qm.MarcFormat)))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := s.validate(schema.QuickMarc, qm); err != nil {
		return model.ParsedRecordDto{}, err
	}
	return s.toParsed(qm)
}

// ListRecords pages through stored records.
func (s *RecordService) ListRecords(ctx context.Context, query model.ListRecordsQuery) (*model.ListRecordsResult, error) {
	start := time.Now()
	result, err := s.store.ListRecords(ctx, query)
	s.metrics.ObserveStorage("list", start, err)
	if err != nil {
		return nil, storageError(err)
	}
	return result, nil
}

// Ready reports whether the record store is reachable.
func (s *RecordService) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return errordefs.Wrap(errordefs.QM_UNAVAILABLE, "record store unavailable", err)
	}
	return nil
}

func (s *RecordService) save(ctx context.Context, qm model.QuickMarc, expectedVersion, correlationID string) (model.QuickMarc, error) {
	if err := s.validate(schema.QuickMarc, qm); err != nil {
		return model.QuickMarc{}, err
	}
	dto, err := s.toParsed(qm)
	if err != nil {
		return model.QuickMarc{}, err
	}
	if err := s.validateContent(dto); err != nil {
		return model.QuickMarc{}, err
	}

	start := time.Now()
	err = s.store.SaveRecord(ctx, dto, expectedVersion)
	s.metrics.ObserveStorage("save", start, err)
	if err != nil {
		s.cache.remove(dto.ID)
		return model.QuickMarc{}, storageError(err)
	}
	s.cache.set(dto)

	exportKey := s.export(ctx, dto)
	s.publish(ctx, dto, exportKey, correlationID)

	slog.Info("record saved", "id", dto.ID, "type", dto.RecordType, "version", dto.RelatedRecordVersion)
	return s.toQuickMarc(dto)
}

func (s *RecordService) load(ctx context.Context, id string) (model.ParsedRecordDto, error) {
	if dto, ok := s.cache.get(id); ok {
		return dto, nil
	}
	return s.fetch(ctx, id)
}

// fetch reads id from the store and refreshes the cache entry.
func (s *RecordService) fetch(ctx context.Context, id string) (model.ParsedRecordDto, error) {
	start := time.Now()
	dto, err := s.store.GetRecord(ctx, id)
	s.metrics.ObserveStorage("get", start, err)
	if err != nil {
		s.cache.remove(id)
		return model.ParsedRecordDto{}, storageError(err)
	}
	if err := s.validateContent(*dto); err != nil {
		slog.Warn("stored record fails content validation", "id", id, "error", err)
	}
	s.cache.set(*dto)
	return *dto, nil
}

func (s *RecordService) toQuickMarc(dto model.ParsedRecordDto) (model.QuickMarc, error) {
	start := time.Now()
	qm, err := s.conv.ToQuickMarc(dto)
	s.metrics.ObserveConversion(directionToQuickMarc, string(dto.RecordType), start, err)
	return qm, err
}

func (s *RecordService) toParsed(qm model.QuickMarc) (model.ParsedRecordDto, error) {
	start := time.Now()
	dto, err := s.conv.ToParsedRecord(qm)
	s.metrics.ObserveConversion(directionToParsed, string(qm.MarcFormat), start, err)
	return dto, err
}

func (s *RecordService) validate(name string, v interface{}) error {
	if s.validator == nil {
		return nil
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return errordefs.Wrap(errordefs.QM_INTERNAL, "cannot encode document for validation", err)
	}
	start := time.Now()
	err = s.validator.Validate(name, doc)
	s.metrics.ObserveValidation(name, start, err)
	return err
}

func (s *RecordService) validateContent(dto model.ParsedRecordDto) error {
	if s.validator == nil {
		return nil
	}
	start := time.Now()
	err := s.validator.Validate(schema.MarcJSON, dto.ParsedRecord.Content)
	s.metrics.ObserveValidation(schema.MarcJSON, start, err)
	return err
}

// export uploads dto; failures are logged and do not fail the save.
func (s *RecordService) export(ctx context.Context, dto model.ParsedRecordDto) string {
	if s.exporter == nil {
		return ""
	}
	key, err := s.exporter.Export(ctx, dto)
	if err != nil {
		s.metrics.ExportTotal.WithLabelValues("error").Inc()
		slog.Warn("MARC export failed", "id", dto.ID, "error", err)
		return ""
	}
	s.metrics.ExportTotal.WithLabelValues("success").Inc()
	return key
}

// publish emits qm.records.updated; failures are logged and do not fail the save.
func (s *RecordService) publish(ctx context.Context, dto model.ParsedRecordDto, exportKey, correlationID string) {
	format, _ := model.FormatOf(dto.RecordType)
	externalID, _ := dto.ExternalIDsHolder.ExternalFor(format)
	evt := event.RecordUpdated{
		RecordID:       dto.ID,
		ParsedRecordID: dto.ParsedRecord.ID,
		RecordType:     string(dto.RecordType),
		ExternalID:     externalID,
		Version:        dto.RelatedRecordVersion,
		ExportKey:      exportKey,
		CorrelationID:  correlationID,
	}
	start := time.Now()
	err := s.publisher.PublishRecordUpdated(ctx, evt)
	s.metrics.ObserveEvent(event.SubjectRecordUpdated, start, err)
	if err != nil {
		slog.Warn("failed to publish record event", "id", dto.ID, "error", err)
	}
}

func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errordefs.Wrap(errordefs.QM_NOT_FOUND, "record not found", err)
	case errors.Is(err, storage.ErrConflict):
		return errordefs.Wrap(errordefs.QM_CONFLICT, "record was changed by another user", err)
	case errors.Is(err, storage.ErrInvalidCursor):
		return errordefs.Wrap(errordefs.QM_BAD_REQUEST, "invalid pagination cursor", err)
	default:
		return errordefs.Wrap(errordefs.QM_UNAVAILABLE, "record store failed", err)
	}
}
