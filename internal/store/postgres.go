package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/segment-cli/internal/db"
	"github.com/sells-group/segment-cli/internal/model"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
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
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         UUID PRIMARY KEY,
	input      TEXT NOT NULL,
	k          INTEGER NOT NULL,
	seed       BIGINT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	customers  INTEGER NOT NULL DEFAULT 0,
	ratio      DOUBLE PRECISION NOT NULL DEFAULT 0,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS customers (
	run_id                  UUID NOT NULL REFERENCES runs(id),
	customer_id             TEXT NOT NULL,
	recency                 INTEGER NOT NULL,
	frequency               INTEGER NOT NULL,
	monetary                DOUBLE PRECISION NOT NULL,
	avg_transaction_amount  DOUBLE PRECISION NOT NULL,
	last_transaction_amount DOUBLE PRECISION NOT NULL,
	avg_account_balance     DOUBLE PRECISION NOT NULL,
	last_account_balance    DOUBLE PRECISION NOT NULL,
	gender_flag             INTEGER NOT NULL,
	age                     DOUBLE PRECISION,
	recency_score           INTEGER NOT NULL,
	frequency_score         INTEGER NOT NULL,
	monetary_score          INTEGER NOT NULL,
	rfm_score               DOUBLE PRECISION NOT NULL,
	rfm_level               TEXT NOT NULL,
	segment                 TEXT NOT NULL,
	cluster                 INTEGER NOT NULL,
	PRIMARY KEY (run_id, customer_id)
);

CREATE TABLE IF NOT EXISTS cluster_profiles (
	run_id           UUID NOT NULL REFERENCES runs(id),
	cluster          INTEGER NOT NULL,
	label            TEXT,
	count            INTEGER NOT NULL,
	mean_recency     DOUBLE PRECISION NOT NULL,
	mean_frequency   DOUBLE PRECISION NOT NULL,
	mean_monetary    DOUBLE PRECISION NOT NULL,
	mean_balance     DOUBLE PRECISION NOT NULL,
	mean_gender_flag DOUBLE PRECISION NOT NULL,
	mean_age         DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, cluster)
);

CREATE TABLE IF NOT EXISTS elbow_points (
	run_id    UUID NOT NULL REFERENCES runs(id),
	k         INTEGER NOT NULL,
	within_ss DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, k)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_customers_run_id ON customers(run_id);
CREATE INDEX IF NOT EXISTS idx_customers_cluster ON customers(run_id, cluster);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, input string, k int, seed int64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, input, k, seed, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, input, k, seed, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Input:     input,
		K:         k,
		Seed:      seed,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, customers int, ratio float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, customers = $2, ratio = $3, updated_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), customers, ratio, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, msg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, input, k, seed, status, customers, ratio, COALESCE(error, ''), created_at, updated_at
		 FROM runs WHERE id = $1`, runID)

	var r model.Run
	var status string
	err := row.Scan(&r.ID, &r.Input, &r.K, &r.Seed, &status, &r.Customers, &r.Ratio, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input, k, seed, status, customers, ratio, COALESCE(error, ''), created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		if len(args) > 0 {
			query += ` LIMIT $2`
		} else {
			query += ` LIMIT $1`
		}
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		if err := rows.Scan(&r.ID, &r.Input, &r.K, &r.Seed, &status, &r.Customers, &r.Ratio, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

var customerColumns = []string{
	"run_id", "customer_id", "recency", "frequency", "monetary",
	"avg_transaction_amount", "last_transaction_amount", "avg_account_balance", "last_account_balance",
	"gender_flag", "age", "recency_score", "frequency_score", "monetary_score",
	"rfm_score", "rfm_level", "segment", "cluster",
}

func (s *PostgresStore) SaveCustomers(ctx context.Context, runID string, customers []model.Customer) error {
	rows := make([][]any, 0, len(customers))
	for _, c := range customers {
		var age any
		if c.Age != nil {
			age = *c.Age
		}
		rows = append(rows, []any{
			runID, c.ID, c.Recency, c.Frequency, c.Monetary,
			c.AvgAmount, c.LastAmount, c.AvgBalance, c.LastBalance,
			c.GenderFlag, age, c.RecencyScore, c.FrequencyScore, c.MonetaryScore,
			c.RFMScore, c.RFMLevel, string(c.Segment), c.Cluster,
		})
	}

	if _, err := db.CopyFrom(ctx, s.pool, "customers", customerColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: save %d customers", len(customers))
	}
	return nil
}

func (s *PostgresStore) SaveProfiles(ctx context.Context, runID string, profiles []model.ClusterProfile) error {
	for _, p := range profiles {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO cluster_profiles (run_id, cluster, label, count,
			  mean_recency, mean_frequency, mean_monetary, mean_balance, mean_gender_flag, mean_age)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			runID, p.Cluster, p.Label, p.Count,
			p.MeanRecency, p.MeanFrequency, p.MeanMonetary, p.MeanBalance, p.MeanGender, p.MeanAge,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert profile for cluster %d", p.Cluster)
		}
	}
	return nil
}

func (s *PostgresStore) SaveElbow(ctx context.Context, runID string, curve []model.ElbowPoint) error {
	for _, p := range curve {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO elbow_points (run_id, k, within_ss) VALUES ($1, $2, $3)`,
			runID, p.K, p.WithinSS,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert elbow point k=%d", p.K)
		}
	}
	return nil
}
