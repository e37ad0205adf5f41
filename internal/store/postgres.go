package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/omicsflow/pathway-enrich/internal/db"
	"github.com/omicsflow/pathway-enrich/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	insertSnapshotSQL = db.InsertIgnoreSQL("payload_snapshots", []string{"ref", "data", "created_at"}, []string{"ref"})
	insertRecordSQL   = db.InsertIgnoreSQL("enrichment_records",
		[]string{"id", "request_id", "pathway_id", "body", "created_at"}, []string{"id"})
	linkRecordSQL = db.InsertIgnoreSQL("pathway_records",
		[]string{"pathway_id", "record_id", "linked_at"}, []string{"pathway_id", "record_id"})
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enrichment_records (
	id         TEXT PRIMARY KEY,
	request_id TEXT,
	pathway_id TEXT NOT NULL,
	body       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS record_changes (
	record_id TEXT NOT NULL REFERENCES enrichment_records(id),
	category  TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	source    TEXT NOT NULL,
	score     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (record_id, category, entity_id)
);

CREATE TABLE IF NOT EXISTS payload_snapshots (
	ref        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pathway_records (
	pathway_id TEXT NOT NULL,
	record_id  TEXT NOT NULL REFERENCES enrichment_records(id),
	linked_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pathway_id, record_id)
);

CREATE INDEX IF NOT EXISTS idx_enrichment_records_pathway ON enrichment_records(pathway_id);
CREATE INDEX IF NOT EXISTS idx_record_changes_entity ON record_changes(entity_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SavePayloadSnapshot(ctx context.Context, ref string, data []byte) error {
	if ref == "" {
		return eris.New("postgres: snapshot ref is required")
	}
	_, err := s.pool.Exec(ctx, insertSnapshotSQL, ref, data, time.Now().UTC())
	return eris.Wrapf(err, "postgres: save snapshot %s", ref)
}

func (s *PostgresStore) GetPayloadSnapshot(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM payload_snapshots WHERE ref = $1`, ref).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "snapshot %s", ref)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get snapshot %s", ref)
	}
	return data, nil
}

// SaveEnrichmentRecord inserts the record and bulk-copies its per-entity
// change rows in one transaction.
func (s *PostgresStore) SaveEnrichmentRecord(ctx context.Context, rec *model.EnrichmentRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, insertRecordSQL, rec.ID, rec.RequestID, rec.PathwayID, body, rec.CreatedAt.UTC())
	if err != nil {
		return eris.Wrapf(err, "postgres: insert record %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if _, err := db.CopyFrom(ctx, tx, "record_changes", changeColumns, changeRows(rec)); err != nil {
		return eris.Wrapf(err, "postgres: record changes for %s", rec.ID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit record")
}

func (s *PostgresStore) LinkRecordToPathway(ctx context.Context, pathwayID, recordID string) error {
	_, err := s.pool.Exec(ctx, linkRecordSQL, pathwayID, recordID, time.Now().UTC())
	return eris.Wrapf(err, "postgres: link record %s to %s", recordID, pathwayID)
}

func (s *PostgresStore) GetRecord(ctx context.Context, id string) (*model.EnrichmentRecord, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM enrichment_records WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", id)
	}
	return decodeRecord(body)
}

func (s *PostgresStore) ListRecords(ctx context.Context, pathwayID string) ([]model.EnrichmentRecord, error) {
	query := `SELECT r.body FROM enrichment_records r ORDER BY r.created_at DESC, r.id`
	var args []any
	if pathwayID != "" {
		query = `SELECT r.body FROM enrichment_records r
		 JOIN pathway_records pr ON pr.record_id = r.id
		 WHERE pr.pathway_id = $1
		 ORDER BY r.created_at DESC, r.id`
		args = append(args, pathwayID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.EnrichmentRecord
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}
