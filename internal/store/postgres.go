package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/customs-ai/hs-classify/internal/db"
	"github.com/customs-ai/hs-classify/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"get_account":     `SELECT external_id, credits_remaining, credits_used, plan FROM users WHERE external_id = $1`,
	"debit_credit":    `UPDATE users SET credits_remaining = credits_remaining - 1, credits_used = credits_used + 1, updated_at = now() WHERE external_id = $1 AND credits_remaining > 0`,
	"record_usage":    `UPDATE users SET credits_used = credits_used + 1, updated_at = now() WHERE external_id = $1`,
	"codes_by_heading": `SELECT hs_code, description, full_path, duty_rate FROM hs_codes WHERE hs_code LIKE $1 || '%' ORDER BY hs_code`,
}

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

	// Prepare hot-path statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS users (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	external_id       TEXT NOT NULL UNIQUE,
	email             TEXT,
	credits_remaining INTEGER NOT NULL DEFAULT 5,
	credits_used      INTEGER NOT NULL DEFAULT 0,
	plan              TEXT NOT NULL DEFAULT 'free',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS classifications (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id        TEXT NOT NULL,
	description    TEXT NOT NULL,
	hs_code        TEXT NOT NULL,
	hs_description TEXT,
	confidence     DOUBLE PRECISION NOT NULL,
	reasoning      TEXT,
	alternatives   JSONB,
	edge_cases     JSONB,
	tokens_used    INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hs_codes (
	hs_code     TEXT PRIMARY KEY,
	description TEXT NOT NULL,
	full_path   TEXT NOT NULL,
	duty_rate   TEXT NOT NULL DEFAULT '0'
);

CREATE INDEX IF NOT EXISTS idx_users_external_id ON users(external_id);
CREATE INDEX IF NOT EXISTS idx_classifications_user_id ON classifications(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_hs_codes_prefix ON hs_codes(hs_code text_pattern_ops);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

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

func (s *PostgresStore) GetAccount(ctx context.Context, userID string) (*model.CreditAccount, error) {
	var a model.CreditAccount
	err := s.pool.QueryRow(ctx,
		`SELECT external_id, credits_remaining, credits_used, plan FROM users WHERE external_id = $1`,
		userID,
	).Scan(&a.UserID, &a.Remaining, &a.Used, &a.Plan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get account %s", userID)
	}
	return &a, nil
}

func (s *PostgresStore) UpsertAccount(ctx context.Context, account model.CreditAccount) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, external_id, credits_remaining, credits_used, plan, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (external_id) DO UPDATE SET
		   credits_remaining = EXCLUDED.credits_remaining,
		   credits_used = EXCLUDED.credits_used,
		   plan = EXCLUDED.plan,
		   updated_at = now()`,
		uuid.New().String(), account.UserID, account.Remaining, account.Used, account.Plan,
	)
	return eris.Wrapf(err, "postgres: upsert account %s", account.UserID)
}

func (s *PostgresStore) DebitCredit(ctx context.Context, userID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET credits_remaining = credits_remaining - 1, credits_used = credits_used + 1, updated_at = now() WHERE external_id = $1 AND credits_remaining > 0`,
		userID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: debit credit %s", userID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) RecordUsage(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE users SET credits_used = credits_used + 1, updated_at = now() WHERE external_id = $1`,
		userID,
	)
	return eris.Wrapf(err, "postgres: record usage %s", userID)
}

func (s *PostgresStore) SaveClassification(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	altJSON, err := json.Marshal(rec.Alternatives)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal alternatives")
	}
	edgeJSON, err := json.Marshal(rec.EdgeCases)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal edge cases")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO classifications (id, user_id, description, hs_code, hs_description, confidence, reasoning, alternatives, edge_cases, tokens_used, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.UserID, rec.Description, rec.HSCode, rec.HSDescription,
		rec.Confidence, rec.Reasoning, altJSON, edgeJSON, rec.TokensUsed, rec.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert classification")
	}
	return &rec, nil
}

func (s *PostgresStore) ListClassifications(ctx context.Context, userID string, limit, offset int) ([]model.HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, description, hs_code, hs_description, confidence, reasoning, alternatives, edge_cases, tokens_used, created_at
		 FROM classifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list classifications %s", userID)
	}
	defer rows.Close()

	var out []model.HistoryRecord
	for rows.Next() {
		var rec model.HistoryRecord
		var hsDesc, reasoning *string
		var altJSON, edgeJSON []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Description, &rec.HSCode, &hsDesc,
			&rec.Confidence, &reasoning, &altJSON, &edgeJSON, &rec.TokensUsed, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan classification")
		}
		if hsDesc != nil {
			rec.HSDescription = *hsDesc
		}
		if reasoning != nil {
			rec.Reasoning = *reasoning
		}
		if len(altJSON) > 0 {
			if err := json.Unmarshal(altJSON, &rec.Alternatives); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal alternatives")
			}
		}
		if len(edgeJSON) > 0 {
			if err := json.Unmarshal(edgeJSON, &rec.EdgeCases); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal edge cases")
			}
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list classifications rows")
}

func (s *PostgresStore) CodesByHeading(ctx context.Context, heading string) ([]model.TariffCode, error) {
	if heading == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT hs_code, description, full_path, duty_rate FROM hs_codes WHERE hs_code LIKE $1 || '%' ORDER BY hs_code`,
		heading,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: codes by heading %s", heading)
	}
	defer rows.Close()

	var out []model.TariffCode
	for rows.Next() {
		var c model.TariffCode
		if err := rows.Scan(&c.Code, &c.Description, &c.FullPath, &c.DutyRate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tariff code")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: codes by heading rows")
}

func (s *PostgresStore) UpsertTariffCodes(ctx context.Context, codes []model.TariffCode) (int64, error) {
	rows := make([][]any, len(codes))
	for i, c := range codes {
		rows[i] = []any{c.Dotted(), c.Description, c.FullPath, c.DutyRate}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "hs_codes",
		Columns:      []string{"hs_code", "description", "full_path", "duty_rate"},
		ConflictKeys: []string{"hs_code"},
	}, rows)
	return n, eris.Wrap(err, "postgres: upsert tariff codes")
}
