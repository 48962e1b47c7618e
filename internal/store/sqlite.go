package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/segment-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
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
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	input      TEXT NOT NULL,
	k          INTEGER NOT NULL,
	seed       INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	customers  INTEGER NOT NULL DEFAULT 0,
	ratio      REAL NOT NULL DEFAULT 0,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS customers (
	run_id                  TEXT NOT NULL REFERENCES runs(id),
	customer_id             TEXT NOT NULL,
	recency                 INTEGER NOT NULL,
	frequency               INTEGER NOT NULL,
	monetary                REAL NOT NULL,
	avg_transaction_amount  REAL NOT NULL,
	last_transaction_amount REAL NOT NULL,
	avg_account_balance     REAL NOT NULL,
	last_account_balance    REAL NOT NULL,
	gender_flag             INTEGER NOT NULL,
	age                     REAL,
	recency_score           INTEGER NOT NULL,
	frequency_score         INTEGER NOT NULL,
	monetary_score          INTEGER NOT NULL,
	rfm_score               REAL NOT NULL,
	rfm_level               TEXT NOT NULL,
	segment                 TEXT NOT NULL,
	cluster                 INTEGER NOT NULL,
	PRIMARY KEY (run_id, customer_id)
);

CREATE TABLE IF NOT EXISTS cluster_profiles (
	run_id           TEXT NOT NULL REFERENCES runs(id),
	cluster          INTEGER NOT NULL,
	label            TEXT,
	count            INTEGER NOT NULL,
	mean_recency     REAL NOT NULL,
	mean_frequency   REAL NOT NULL,
	mean_monetary    REAL NOT NULL,
	mean_balance     REAL NOT NULL,
	mean_gender_flag REAL NOT NULL,
	mean_age         REAL NOT NULL,
	PRIMARY KEY (run_id, cluster)
);

CREATE TABLE IF NOT EXISTS elbow_points (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	k         INTEGER NOT NULL,
	within_ss REAL NOT NULL,
	PRIMARY KEY (run_id, k)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_customers_run_id ON customers(run_id);
CREATE INDEX IF NOT EXISTS idx_customers_cluster ON customers(run_id, cluster);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, input string, k int, seed int64) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, k, seed, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, input, k, seed, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, customers int, ratio float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, customers = ?, ratio = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), customers, ratio, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input, k, seed, status, customers, ratio, COALESCE(error, ''), created_at, updated_at
		 FROM runs WHERE id = ?`, runID)

	var r model.Run
	var status string
	err := row.Scan(&r.ID, &r.Input, &r.K, &r.Seed, &status, &r.Customers, &r.Ratio, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, input, k, seed, status, customers, ratio, COALESCE(error, ''), created_at, updated_at FROM runs`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		if err := rows.Scan(&r.ID, &r.Input, &r.K, &r.Seed, &status, &r.Customers, &r.Ratio, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) SaveCustomers(ctx context.Context, runID string, customers []model.Customer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO customers (run_id, customer_id, recency, frequency, monetary,
		  avg_transaction_amount, last_transaction_amount, avg_account_balance, last_account_balance,
		  gender_flag, age, recency_score, frequency_score, monetary_score,
		  rfm_score, rfm_level, segment, cluster)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare customer insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, c := range customers {
		var age any
		if c.Age != nil {
			age = *c.Age
		}
		if _, err := stmt.ExecContext(ctx,
			runID, c.ID, c.Recency, c.Frequency, c.Monetary,
			c.AvgAmount, c.LastAmount, c.AvgBalance, c.LastBalance,
			c.GenderFlag, age, c.RecencyScore, c.FrequencyScore, c.MonetaryScore,
			c.RFMScore, c.RFMLevel, string(c.Segment), c.Cluster,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert customer %s", c.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit customers")
}

func (s *SQLiteStore) SaveProfiles(ctx context.Context, runID string, profiles []model.ClusterProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range profiles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cluster_profiles (run_id, cluster, label, count,
			  mean_recency, mean_frequency, mean_monetary, mean_balance, mean_gender_flag, mean_age)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, p.Cluster, p.Label, p.Count,
			p.MeanRecency, p.MeanFrequency, p.MeanMonetary, p.MeanBalance, p.MeanGender, p.MeanAge,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert profile for cluster %d", p.Cluster)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit profiles")
}

func (s *SQLiteStore) SaveElbow(ctx context.Context, runID string, curve []model.ElbowPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range curve {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO elbow_points (run_id, k, within_ss) VALUES (?, ?, ?)`,
			runID, p.K, p.WithinSS,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert elbow point k=%d", p.K)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit elbow")
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return nil
}
