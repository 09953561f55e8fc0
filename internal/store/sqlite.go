package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/customs-ai/hs-classify/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and tests; Postgres is the production backend.
type SQLiteStore struct {
	db *sql.DB
}

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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS users (
	id                TEXT PRIMARY KEY,
	external_id       TEXT NOT NULL UNIQUE,
	email             TEXT,
	credits_remaining INTEGER NOT NULL DEFAULT 5,
	credits_used      INTEGER NOT NULL DEFAULT 0,
	plan              TEXT NOT NULL DEFAULT 'free',
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS classifications (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	description    TEXT NOT NULL,
	hs_code        TEXT NOT NULL,
	hs_description TEXT,
	confidence     REAL NOT NULL,
	reasoning      TEXT,
	alternatives   TEXT,
	edge_cases     TEXT,
	tokens_used    INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS hs_codes (
	hs_code     TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	full_path   TEXT NOT NULL,
	duty_rate   TEXT NOT NULL DEFAULT '0'
);

CREATE INDEX IF NOT EXISTS idx_classifications_user_id ON classifications(user_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetAccount(ctx context.Context, userID string) (*model.CreditAccount, error) {
	var a model.CreditAccount
	err := s.db.QueryRowContext(ctx,
		`SELECT external_id, credits_remaining, credits_used, plan FROM users WHERE external_id = ?`,
		userID,
	).Scan(&a.UserID, &a.Remaining, &a.Used, &a.Plan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get account %s", userID)
	}
	return &a, nil
}

func (s *SQLiteStore) UpsertAccount(ctx context.Context, account model.CreditAccount) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, external_id, credits_remaining, credits_used, plan, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (external_id) DO UPDATE SET
		   credits_remaining = excluded.credits_remaining,
		   credits_used = excluded.credits_used,
		   plan = excluded.plan,
		   updated_at = excluded.updated_at`,
		uuid.New().String(), account.UserID, account.Remaining, account.Used, account.Plan, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert account %s", account.UserID)
}

func (s *SQLiteStore) DebitCredit(ctx context.Context, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET credits_remaining = credits_remaining - 1, credits_used = credits_used + 1, updated_at = ? WHERE external_id = ? AND credits_remaining > 0`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: debit credit %s", userID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: debit rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) RecordUsage(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET credits_used = credits_used + 1, updated_at = ? WHERE external_id = ?`,
		time.Now().UTC(), userID,
	)
	return eris.Wrapf(err, "sqlite: record usage %s", userID)
}

func (s *SQLiteStore) SaveClassification(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	altJSON, err := json.Marshal(rec.Alternatives)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal alternatives")
	}
	edgeJSON, err := json.Marshal(rec.EdgeCases)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal edge cases")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO classifications (id, user_id, description, hs_code, hs_description, confidence, reasoning, alternatives, edge_cases, tokens_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Description, rec.HSCode, rec.HSDescription,
		rec.Confidence, rec.Reasoning, string(altJSON), string(edgeJSON), rec.TokensUsed, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert classification")
	}
	return &rec, nil
}

func (s *SQLiteStore) ListClassifications(ctx context.Context, userID string, limit, offset int) ([]model.HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, description, hs_code, hs_description, confidence, reasoning, alternatives, edge_cases, tokens_used, created_at
		 FROM classifications WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list classifications %s", userID)
	}
	defer rows.Close()

	var out []model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		var hsDesc, reasoning, altJSON, edgeJSON sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Description, &rec.HSCode, &hsDesc,
			&rec.Confidence, &reasoning, &altJSON, &edgeJSON, &rec.TokensUsed, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan classification")
		}
		rec.HSDescription = hsDesc.String
		rec.Reasoning = reasoning.String
		if altJSON.Valid && altJSON.String != "" && altJSON.String != "null" {
			if err := json.Unmarshal([]byte(altJSON.String), &rec.Alternatives); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal alternatives")
			}
		}
		if edgeJSON.Valid && edgeJSON.String != "" && edgeJSON.String != "null" {
			if err := json.Unmarshal([]byte(edgeJSON.String), &rec.EdgeCases); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal edge cases")
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list classifications rows")
}

func (s *SQLiteStore) CodesByHeading(ctx context.Context, heading string) ([]model.TariffCode, error) {
	if heading == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT hs_code, description, full_path, duty_rate FROM hs_codes WHERE hs_code LIKE ? || '%' ORDER BY hs_code`,
		heading,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: codes by heading %s", heading)
	}
	defer rows.Close()

	var out []model.TariffCode
	for rows.Next() {
		var c model.TariffCode
		if err := rows.Scan(&c.Code, &c.Description, &c.FullPath, &c.DutyRate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tariff code")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: codes by heading rows")
}

func (s *SQLiteStore) UpsertTariffCodes(ctx context.Context, codes []model.TariffCode) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO hs_codes (hs_code, description, full_path, duty_rate) VALUES (?, ?, ?, ?)
		 ON CONFLICT (hs_code) DO UPDATE SET
		   description = excluded.description,
		   full_path = excluded.full_path,
		   duty_rate = excluded.duty_rate`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	var n int64
	for _, c := range codes {
		if _, err := stmt.ExecContext(ctx, c.Dotted(), c.Description, c.FullPath, c.DutyRate); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert code %s", c.Code)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return n, nil
}
