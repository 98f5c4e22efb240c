// Package converter converts whole MARC records between the storage envelope
// (MARC-in-JSON content) and the QuickMarc editing model.
package converter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/converter/field"
	errordefs "github.com/RegistryAccord/registryaccord-qm-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marc"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/marcutil"
	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// LeaderTag attributes leader failures in conversion errors.
const LeaderTag = "LDR"

// LatestTransactionTag is the control field stamped on every save.
const LatestTransactionTag = "005"

// RecordConverter is stateless after construction and safe for concurrent use.
type RecordConverter struct {
	decoder *field.Decoder
	encoder *field.Encoder
	now     func() time.Time
	newID   func() string
}

// Option configures a RecordConverter.
type Option func(*RecordConverter)

// WithClock overrides the clock used for the 005 stamp.
func WithClock(now func() time.Time) Option {
	return func(c *RecordConverter) { c.now = now }
}

// WithIDGenerator overrides generation of missing parsed record ids.
func WithIDGenerator(gen func() string) Option {
	return func(c *RecordConverter) { c.newID = gen }
}

// New returns a converter using the default field registries.
func New(opts ...Option) *RecordConverter {
	c := &RecordConverter{
		decoder: field.NewDecoder(),
		encoder: field.NewEncoder(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToParsedRecord converts an edited record into its storage envelope. Every
// failure is returned as a QM_CONVERSION error carrying the offending tag.
func (c *RecordConverter) ToParsedRecord(qm model.QuickMarc) (model.ParsedRecordDto, error) {
	recordType, err := model.RecordTypeOf(qm.MarcFormat)
	if err != nil {
		return model.ParsedRecordDto{}, errordefs.Conversion("", err)
	}
	if err := checkIdentifiers(qm); err != nil {
		return model.ParsedRecordDto{}, errordefs.Conversion("", err)
	}
	version, err := nextVersion(qm.RelatedRecordVersion)
	if err != nil {
		return model.ParsedRecordDto{}, errordefs.Conversion("", err)
	}

	leader, err := BuildLeader(qm.Leader, qm.MarcFormat)
	if err != nil {
		return model.ParsedRecordDto{}, errordefs.Conversion(LeaderTag, err)
	}

	now := c.now()
	fields := StampLatestTransaction(qm.Fields, now)
	record := &marc.Record{Fields: make([]marc.Field, 0, len(fields))}
	for _, item := range fields {
		if !marc.ValidTag(item.Tag) {
			return model.ParsedRecordDto{}, errordefs.Conversion(item.Tag, fmt.Errorf("invalid tag %q", item.Tag))
		}
		f, err := c.encoder.Convert(item, qm.MarcFormat, leader)
		if err != nil {
			return model.ParsedRecordDto{}, errordefs.Conversion(item.Tag, err)
		}
		record.Fields = append(record.Fields, f)
	}

	// the leader carries the serialized length, so it is computed last
	record.Leader = leader.String()
	iso, err := record.MarshalISO2709()
	if err != nil {
		return model.ParsedRecordDto{}, errordefs.Conversion("", err)
	}
	record.Leader = string(iso[:marc.LeaderLength])

	content, err := json.Marshal(record)
	if err != nil {
		return model.ParsedRecordDto{}, errordefs.Conversion("", err)
	}

	parsedID := qm.ParsedRecordID
	if parsedID == "" {
		parsedID = c.newID()
	}
	dto := model.ParsedRecordDto{
		ID:                   qm.ID,
		RecordType:           recordType,
		ParsedRecord:         model.ParsedRecord{ID: parsedID, Content: content},
		ExternalIDsHolder:    model.NewExternalIDsHolder(qm.MarcFormat, qm.ExternalID, qm.ExternalHrid),
		AdditionalInfo:       qm.AdditionalInfo,
		RelatedRecordVersion: version,
		Metadata:             stampedMetadata(qm.Metadata, now),
	}
	slog.Debug("converted quickMARC record", "id", dto.ID, "format", qm.MarcFormat, "fields", len(record.Fields), "version", version)
	return dto, nil
}

// ToQuickMarc converts a storage envelope into the editing model.
func (c *RecordConverter) ToQuickMarc(dto model.ParsedRecordDto) (model.QuickMarc, error) {
	format, err := model.FormatOf(dto.RecordType)
	if err != nil {
		return model.QuickMarc{}, errordefs.Conversion("", err)
	}
	record, err := marc.ParseJSON(dto.ParsedRecord.Content)
	if err != nil {
		return model.QuickMarc{}, errordefs.Conversion("", err)
	}
	leader, err := marc.ParseLeader(record.Leader)
	if err != nil {
		return model.QuickMarc{}, errordefs.Conversion(LeaderTag, err)
	}

	var metadata *model.Metadata
	if dto.Metadata != nil {
		m := *dto.Metadata
		metadata = &m
	}
	items := make([]model.FieldItem, 0, len(record.Fields))
	for _, f := range record.Fields {
		if f.Tag == LatestTransactionTag {
			updated, err := marcutil.DecodeFromMarcDateTime(f.Data)
			if err != nil {
				return model.QuickMarc{}, errordefs.Conversion(f.Tag, err)
			}
			if metadata == nil {
				metadata = &model.Metadata{}
			}
			metadata.UpdatedDate = &updated
		}
		item, err := c.decoder.Convert(f, format, leader)
		if err != nil {
			return model.QuickMarc{}, errordefs.Conversion(f.Tag, err)
		}
		items = append(items, item)
	}

	externalID, externalHrid := dto.ExternalIDsHolder.ExternalFor(format)
	qm := model.QuickMarc{
		ID:                   dto.ID,
		ParsedRecordID:       dto.ParsedRecord.ID,
		ExternalID:           externalID,
		ExternalHrid:         externalHrid,
		MarcFormat:           format,
		Leader:               marcutil.MasqueradeBlanks(marcutil.FitToLength(record.Leader, marc.LeaderLength)),
		Fields:               items,
		AdditionalInfo:       dto.AdditionalInfo,
		RelatedRecordVersion: dto.RelatedRecordVersion,
		Metadata:             metadata,
	}
	slog.Debug("converted parsed record", "id", dto.ID, "format", format, "fields", len(items))
	return qm, nil
}

// StampLatestTransaction returns a copy of fields whose first 005 field holds
// the encoded now, appending one at the end when none exists. The input slice
// is never modified.
func StampLatestTransaction(fields []model.FieldItem, now time.Time) []model.FieldItem {
	stamp := model.FieldItem{
		Tag:     LatestTransactionTag,
		Content: model.TextContent(marcutil.EncodeToMarcDateTime(now)),
	}
	out := make([]model.FieldItem, len(fields), len(fields)+1)
	copy(out, fields)
	for i := range out {
		if out[i].Tag == LatestTransactionTag {
			out[i] = stamp
			return out
		}
	}
	return append(out, stamp)
}

func checkIdentifiers(qm model.QuickMarc) error {
	for _, id := range []struct{ name, value string }{
		{"id", qm.ID},
		{"parsedRecordId", qm.ParsedRecordID},
		{"externalId", qm.ExternalID},
	} {
		if id.value != "" && !marcutil.IsValidUUID(id.value) {
			return errordefs.Newf(errordefs.QM_FORMAT, "%s %q is not a UUID", id.name, id.value)
		}
	}
	return nil
}

// nextVersion increments a relatedRecordVersion; an empty version counts as 0.
func nextVersion(v string) (string, error) {
	if v == "" {
		return "1", nil
	}
	// ParseUint rejects signs; the bound keeps the result a positive int64.
	n, err := strconv.ParseUint(v, 10, 63)
	if err != nil || n == math.MaxInt64 {
		return "", errordefs.Newf(errordefs.QM_FORMAT, "relatedRecordVersion %q is not a non-negative integer below %d", v, int64(math.MaxInt64))
	}
	return strconv.FormatUint(n+1, 10), nil
}

func stampedMetadata(in *model.Metadata, now time.Time) *model.Metadata {
	m := model.Metadata{}
	if in != nil {
		m = *in
	}
	updated := now.UTC().Truncate(100 * time.Millisecond)
	m.UpdatedDate = &updated
	return &m
}
