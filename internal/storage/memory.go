// Package storage persists parsed MARC records with optimistic versioning.
// Both the in-memory and the PostgreSQL backend implement Store.
package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound = errors.New("not found") // Returned when a record is not found
	ErrConflict = errors.New("conflict")  // Returned when the stored version differs from the expected one

	ErrInvalidCursor = errors.New("invalid cursor") // Returned by ListRecords for a cursor it did not issue
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Store defines the record storage operations required by the quickMARC service.
type Store interface {
	// GetRecord returns the stored record with id, or ErrNotFound.
	GetRecord(ctx context.Context, id string) (*model.ParsedRecordDto, error)
	// SaveRecord stores dto if the stored relatedRecordVersion equals
	// expectedVersion. An absent record is created when expectedVersion is
	// empty or "0"; any other expectation on an absent record is ErrNotFound.
	SaveRecord(ctx context.Context, dto model.ParsedRecordDto, expectedVersion string) error
	// ListRecords pages through records ordered by id.
	ListRecords(ctx context.Context, query model.ListRecordsQuery) (*model.ListRecordsResult, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close()
}

// memory implements Store in process, for development and tests.
type memory struct {
	mu      sync.RWMutex
	records map[string]model.ParsedRecordDto
}

// NewMemory creates a new in-memory storage implementation.
func NewMemory() Store {
	return &memory{records: make(map[string]model.ParsedRecordDto)}
}

func (m *memory) GetRecord(ctx context.Context, id string) (*model.ParsedRecordDto, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dto, exists := m.records[id]
	if !exists {
		return nil, ErrNotFound
	}
	out := clone(dto)
	return &out, nil
}

func (m *memory) SaveRecord(ctx context.Context, dto model.ParsedRecordDto, expectedVersion string) error {
	expected, err := parseVersion(expectedVersion)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.records[dto.ID]
	switch {
	case !exists && expected != 0:
		return ErrNotFound
	case exists:
		stored, err := parseVersion(current.RelatedRecordVersion)
		if err != nil {
			return err
		}
		if stored != expected {
			return ErrConflict
		}
	}
	m.records[dto.ID] = clone(dto)
	return nil
}

func (m *memory) ListRecords(ctx context.Context, query model.ListRecordsQuery) (*model.ListRecordsResult, error) {
	after, err := decodeCursor(query.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pageSize(query.Limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.records))
	for id, dto := range m.records {
		if query.RecordType != "" && dto.RecordType != query.RecordType {
			continue
		}
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	result := &model.ListRecordsResult{Records: []model.ParsedRecordDto{}}
	for i, id := range ids {
		if i == limit {
			result.NextCursor = encodeCursor(ids[i-1])
			break
		}
		result.Records = append(result.Records, clone(m.records[id]))
	}
	return result, nil
}

func (m *memory) Ping(ctx context.Context) error { return nil }

func (m *memory) Close() {}

// clone copies the parts of dto that alias memory.
func clone(dto model.ParsedRecordDto) model.ParsedRecordDto {
	out := dto
	out.ParsedRecord.Content = append(json.RawMessage(nil), dto.ParsedRecord.Content...)
	if dto.ExternalIDsHolder != nil {
		h := *dto.ExternalIDsHolder
		out.ExternalIDsHolder = &h
	}
	if dto.Metadata != nil {
		md := *dto.Metadata
		out.Metadata = &md
	}
	return out
}

// parseVersion reads a relatedRecordVersion; empty counts as 0.
func parseVersion(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid record version %q", v)
	}
	return n, nil
}

func pageSize(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// cursorData is the payload of a pagination cursor.
type cursorData struct {
	LastID string `json:"lastId"`
}

// encodeCursor encodes the last id of a page into an opaque cursor.
func encodeCursor(lastID string) string {
	jsonBytes, _ := json.Marshal(cursorData{LastID: lastID})
	return base64.URLEncoding.EncodeToString(jsonBytes)
}

// decodeCursor returns the id after which the next page starts.
func decodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	dataBytes, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var data cursorData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return data.LastID, nil
}
