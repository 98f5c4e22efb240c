package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RegistryAccord/registryaccord-qm-go/internal/model"
)

// postgres provides persistent record storage.
type postgres struct {
	db *pgxpool.Pool // Connection pool to PostgreSQL database
}

// NewPostgres connects to dsn and initializes the schema.
func NewPostgres(ctx context.Context, dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	// Establish connection with timeout
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, nil
}

// initSchema creates the records table and indexes if they don't already exist.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		CREATE TABLE IF NOT EXISTS marc_records (
		    id TEXT PRIMARY KEY,                      -- Parsed record DTO id
		    record_type TEXT NOT NULL,                -- MARC_BIB, MARC_AUTHORITY or MARC_HOLDING
		    parsed_record_id TEXT NOT NULL,           -- Id of the parsed content
		    content JSONB NOT NULL,                   -- MARC-in-JSON
		    external_ids JSONB,                       -- Linked inventory entity
		    suppress_discovery BOOLEAN NOT NULL DEFAULT FALSE,
		    version BIGINT NOT NULL,                  -- relatedRecordVersion
		    updated_at TIMESTAMPTZ,
		    updated_by TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_marc_records_type ON marc_records(record_type, id);
	`
	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool
func (p *postgres) Close() {
	p.db.Close()
}

// Ping checks database connectivity.
func (p *postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

const selectRecord = `SELECT id, record_type, parsed_record_id, content, external_ids,
	suppress_discovery, version, updated_at, updated_by FROM marc_records`

// GetRecord retrieves a record by id.
func (p *postgres) GetRecord(ctx context.Context, id string) (*model.ParsedRecordDto, error) {
	dto, err := scanRecord(p.db.QueryRow(ctx, selectRecord+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return dto, nil
}

// SaveRecord inserts or updates a record under optimistic version control.
func (p *postgres) SaveRecord(ctx context.Context, dto model.ParsedRecordDto, expectedVersion string) error {
	expected, err := parseVersion(expectedVersion)
	if err != nil {
		return err
	}
	version, err := parseVersion(dto.RelatedRecordVersion)
	if err != nil {
		return err
	}
	externalIDs, err := json.Marshal(dto.ExternalIDsHolder)
	if err != nil {
		return fmt.Errorf("failed to marshal external ids: %w", err)
	}
	var updatedAt *time.Time
	var updatedBy *string
	if dto.Metadata != nil {
		updatedAt = dto.Metadata.UpdatedDate
		if dto.Metadata.UpdatedByUserID != "" {
			updatedBy = &dto.Metadata.UpdatedByUserID
		}
	}
	args := []interface{}{
		dto.ID, string(dto.RecordType), dto.ParsedRecord.ID, []byte(dto.ParsedRecord.Content),
		externalIDs, dto.AdditionalInfo.SuppressDiscovery, version, updatedAt, updatedBy,
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var stored int64
	err = tx.QueryRow(ctx, `SELECT version FROM marc_records WHERE id = $1 FOR UPDATE`, dto.ID).Scan(&stored)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if expected != 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `INSERT INTO marc_records (id, record_type, parsed_record_id, content,
			external_ids, suppress_discovery, version, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, args...)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrConflict
			}
			return fmt.Errorf("failed to insert record: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to lock record: %w", err)
	default:
		if stored != expected {
			return ErrConflict
		}
		_, err = tx.Exec(ctx, `UPDATE marc_records SET record_type = $2, parsed_record_id = $3,
			content = $4, external_ids = $5, suppress_discovery = $6, version = $7,
			updated_at = $8, updated_by = $9 WHERE id = $1`, args...)
		if err != nil {
			return fmt.Errorf("failed to update record: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// ListRecords lists records ordered by id with cursor-based pagination.
func (p *postgres) ListRecords(ctx context.Context, query model.ListRecordsQuery) (*model.ListRecordsResult, error) {
	after, err := decodeCursor(query.Cursor)
	if err != nil {
		return nil, err
	}
	limit := pageSize(query.Limit)

	baseQuery := selectRecord + ` WHERE id > $1`
	args := []interface{}{after}
	if query.RecordType != "" {
		baseQuery += ` AND record_type = $2`
		args = append(args, string(query.RecordType))
	}
	// Fetch one extra record to determine if there are more results
	baseQuery += ` ORDER BY id ASC LIMIT ` + strconv.Itoa(limit+1)

	rows, err := p.db.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	result := &model.ListRecordsResult{Records: []model.ParsedRecordDto{}}
	for rows.Next() {
		dto, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		if len(result.Records) == limit {
			result.NextCursor = encodeCursor(result.Records[limit-1].ID)
			break
		}
		result.Records = append(result.Records, *dto)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return result, nil
}

func scanRecord(row pgx.Row) (*model.ParsedRecordDto, error) {
	var (
		dto         model.ParsedRecordDto
		recordType  string
		content     []byte
		externalIDs []byte
		version     int64
		updatedAt   *time.Time
		updatedBy   *string
	)
	err := row.Scan(&dto.ID, &recordType, &dto.ParsedRecord.ID, &content, &externalIDs,
		&dto.AdditionalInfo.SuppressDiscovery, &version, &updatedAt, &updatedBy)
	if err != nil {
		return nil, err
	}
	dto.RecordType = model.RecordType(recordType)
	dto.ParsedRecord.Content = json.RawMessage(content)
	dto.RelatedRecordVersion = strconv.FormatInt(version, 10)
	if len(externalIDs) > 0 && string(externalIDs) != "null" {
		var h model.ExternalIDsHolder
		if err := json.Unmarshal(externalIDs, &h); err != nil {
			return nil, fmt.Errorf("failed to unmarshal external ids: %w", err)
		}
		dto.ExternalIDsHolder = &h
	}
	if updatedAt != nil || updatedBy != nil {
		dto.Metadata = &model.Metadata{UpdatedDate: updatedAt}
		if updatedBy != nil {
			dto.Metadata.UpdatedByUserID = *updatedBy
		}
	}
	return &dto, nil
}
