package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/omicsflow/pathway-enrich/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enrichment_records (
	id         TEXT PRIMARY KEY,
	request_id TEXT,
	pathway_id TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS record_changes (
	record_id TEXT NOT NULL REFERENCES enrichment_records(id),
	category  TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	source    TEXT NOT NULL,
	score     REAL NOT NULL,
	PRIMARY KEY (record_id, category, entity_id)
);

CREATE TABLE IF NOT EXISTS payload_snapshots (
	ref        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pathway_records (
	pathway_id TEXT NOT NULL,
	record_id  TEXT NOT NULL REFERENCES enrichment_records(id),
	linked_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (pathway_id, record_id)
);

CREATE INDEX IF NOT EXISTS idx_enrichment_records_pathway ON enrichment_records(pathway_id);
CREATE INDEX IF NOT EXISTS idx_record_changes_entity ON record_changes(entity_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePayloadSnapshot(ctx context.Context, ref string, data []byte) error {
	if ref == "" {
		return eris.New("sqlite: snapshot ref is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payload_snapshots (ref, data, created_at) VALUES (?, ?, ?) ON CONFLICT (ref) DO NOTHING`,
		ref, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save snapshot %s", ref)
}

func (s *SQLiteStore) GetPayloadSnapshot(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM payload_snapshots WHERE ref = ?`, ref).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "snapshot %s", ref)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get snapshot %s", ref)
	}
	return data, nil
}

func (s *SQLiteStore) SaveEnrichmentRecord(ctx context.Context, rec *model.EnrichmentRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO enrichment_records (id, request_id, pathway_id, body, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.RequestID, rec.PathwayID, string(body), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert record %s", rec.ID)
	}
	if n, err := res.RowsAffected(); err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	} else if n == 0 {
		return nil
	}

	rows := changeRows(rec)
	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO record_changes (`+strings.Join(changeColumns, ", ")+`) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return eris.Wrap(err, "sqlite: prepare record changes")
		}
		defer stmt.Close() //nolint:errcheck
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, row...); err != nil {
				return eris.Wrapf(err, "sqlite: insert change for record %s", rec.ID)
			}
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit record")
}

func (s *SQLiteStore) LinkRecordToPathway(ctx context.Context, pathwayID, recordID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pathway_records (pathway_id, record_id, linked_at) VALUES (?, ?, ?)
		 ON CONFLICT (pathway_id, record_id) DO NOTHING`,
		pathwayID, recordID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: link record %s to %s", recordID, pathwayID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, id string) (*model.EnrichmentRecord, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM enrichment_records WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	return decodeRecord([]byte(body))
}

func (s *SQLiteStore) ListRecords(ctx context.Context, pathwayID string) ([]model.EnrichmentRecord, error) {
	query := `SELECT r.body FROM enrichment_records r ORDER BY r.created_at DESC, r.id`
	var args []any
	if pathwayID != "" {
		query = `SELECT r.body FROM enrichment_records r
		 JOIN pathway_records pr ON pr.record_id = r.id
		 WHERE pr.pathway_id = ?
		 ORDER BY r.created_at DESC, r.id`
		args = append(args, pathwayID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.EnrichmentRecord
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		rec, err := decodeRecord([]byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}
