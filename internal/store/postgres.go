package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/db"
	"github.com/sells-group/crm-import/internal/model"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres connects to connString and returns a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT,
	phone      TEXT,
	city       TEXT,
	data       JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS contracts (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL,
	start_date TEXT,
	end_date   TEXT,
	data       JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS branches (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL,
	name       TEXT NOT NULL,
	city       TEXT,
	data       JSONB NOT NULL DEFAULT '{}',
	UNIQUE (company_id, name)
);

CREATE TABLE IF NOT EXISTS cities (
	name       TEXT PRIMARY KEY,
	code       TEXT UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS import_runs (
	id           TEXT PRIMARY KEY,
	entity       TEXT NOT NULL,
	source       TEXT,
	total_rows   INTEGER NOT NULL DEFAULT 0,
	imported     INTEGER NOT NULL DEFAULT 0,
	error_rows   INTEGER NOT NULL DEFAULT 0,
	warning_rows INTEGER NOT NULL DEFAULT 0,
	skipped_rows INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS import_rows (
	run_id   TEXT NOT NULL REFERENCES import_runs(id),
	position INTEGER NOT NULL,
	data     JSONB NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_contracts_company_id ON contracts(company_id);
CREATE INDEX IF NOT EXISTS idx_branches_company_id ON branches(company_id);
CREATE INDEX IF NOT EXISTS idx_import_runs_created_at ON import_runs(created_at DESC);
`

var (
	companyColumns   = []string{"id", "name", "email", "phone", "city", "data", "updated_at"}
	contractColumns  = []string{"id", "company_id", "start_date", "end_date", "data"}
	branchColumns    = []string{"id", "company_id", "name", "city", "data"}
	importRowColumns = []string{"run_id", "position", "data"}
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Companies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(city, '') FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.City); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate companies")
}

func (s *PostgresStore) Contracts(ctx context.Context) ([]model.Contract, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, COALESCE(start_date, ''), COALESCE(end_date, '') FROM contracts ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contracts")
	}
	defer rows.Close()

	var out []model.Contract
	for rows.Next() {
		var c model.Contract
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.StartDate, &c.EndDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contract")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate contracts")
}

func (s *PostgresStore) Branches(ctx context.Context) ([]model.Branch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, name, COALESCE(city, '') FROM branches ORDER BY company_id, name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list branches")
	}
	defer rows.Close()

	var out []model.Branch
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.CompanyID, &b.Name, &b.City); err != nil {
			return nil, eris.Wrap(err, "postgres: scan branch")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate branches")
}

func (s *PostgresStore) Cities(ctx context.Context) ([]model.City, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, COALESCE(code, '') FROM cities ORDER BY created_at, name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cities")
	}
	defer rows.Close()

	var out []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.Name, &c.Code); err != nil {
			return nil, eris.Wrap(err, "postgres: scan city")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate cities")
}

func (s *PostgresStore) AddCity(ctx context.Context, c model.City) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	if c.Name == "" {
		return eris.New("postgres: city name is empty")
	}

	var existing string
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(code, '') FROM cities WHERE name = $1`, c.Name).Scan(&existing)
	switch {
	case err == nil:
		if c.Code == "" || existing == c.Code {
			return nil
		}
		if existing != "" {
			return eris.Wrapf(city.ErrCodeTaken, "city %q already registered with code %s", c.Name, existing)
		}
		_, err = s.pool.Exec(ctx, `UPDATE cities SET code = $1 WHERE name = $2`, c.Code, c.Name)
		return pgCityWriteErr(err, c)
	case !errors.Is(err, pgx.ErrNoRows):
		return eris.Wrap(err, "postgres: lookup city")
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO cities (name, code) VALUES ($1, $2)`, c.Name, nullIfEmpty(c.Code))
	return pgCityWriteErr(err, c)
}

func pgCityWriteErr(err error, c model.City) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return eris.Wrapf(city.ErrCodeTaken, "code %s", c.Code)
	}
	return eris.Wrapf(err, "postgres: write city %s", c.Name)
}

func (s *PostgresStore) SaveImport(ctx context.Context, run *model.ImportRun, rows []map[string]string) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin import")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO import_runs (id, entity, source, total_rows, imported, error_rows, warning_rows, skipped_rows, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.Entity.String(), run.Source, run.TotalRows, run.Imported,
		run.ErrorRows, run.WarningRows, run.SkippedRows, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert import run")
	}

	if err := s.applyRows(ctx, tx, run, rows); err != nil {
		return err
	}

	copyRows := make([][]any, len(rows))
	for i, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal row")
		}
		copyRows[i] = []any{run.ID, i, data}
	}
	if _, err := db.CopyFrom(ctx, tx, "import_rows", importRowColumns, copyRows); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit import")
}

func (s *PostgresStore) applyRows(ctx context.Context, tx pgx.Tx, run *model.ImportRun, rows []map[string]string) error {
	entity := run.Entity
	switch {
	case entity == model.EntityCompanies:
		var maxID int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(id::int), 0) FROM companies WHERE id ~ '^[0-9]+$'`).Scan(&maxID)
		if err != nil {
			return eris.Wrap(err, "postgres: max company id")
		}
		assignCompanyIDs(rows, maxID, run.IDWidth)

		now := time.Now().UTC()
		batch := make([][]any, 0, len(rows))
		for _, r := range rows {
			data, err := json.Marshal(r)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal company")
			}
			batch = append(batch, []any{
				r[model.KeyCompanyID], r[model.KeyCompanyName], nullIfEmpty(r[model.KeyEmail]),
				nullIfEmpty(r[model.KeyPhone]), nullIfEmpty(r[model.KeyCity]), data, now,
			})
		}
		_, err = db.BulkUpsert(ctx, tx, db.UpsertConfig{
			Table:        "companies",
			Columns:      companyColumns,
			ConflictKeys: []string{"id"},
		}, batch)
		return err

	case isContracts(entity):
		batch := make([][]any, 0, len(rows))
		for _, r := range rows {
			data, err := json.Marshal(r)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal contract")
			}
			batch = append(batch, []any{
				uuid.New().String(), r[model.KeyCompanyID], nullIfEmpty(r[model.KeyContractStartDate]),
				nullIfEmpty(r[model.KeyContractEndDate]), data,
			})
		}
		_, err := db.CopyFrom(ctx, tx, "contracts", contractColumns, batch)
		return err

	case entity == model.EntityBranches:
		byName, err := companyIDsByName(ctx, tx)
		if err != nil {
			return err
		}
		batch := make([][]any, 0, len(rows))
		for _, r := range rows {
			companyID, err := branchCompanyID(r, byName)
			if err != nil {
				return err
			}
			data, err := json.Marshal(r)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal branch")
			}
			batch = append(batch, []any{
				uuid.New().String(), companyID, r[model.KeyBranchName], nullIfEmpty(r[model.KeyCity]), data,
			})
		}
		_, err = db.BulkUpsert(ctx, tx, db.UpsertConfig{
			Table:        "branches",
			Columns:      branchColumns,
			ConflictKeys: []string{"company_id", "name"},
			UpdateCols:   []string{"city", "data"},
		}, batch)
		return err
	}
	return eris.Errorf("postgres: unknown entity type %d", int(entity))
}

func companyIDsByName(ctx context.Context, tx pgx.Tx) (map[string]string, error) {
	rows, err := tx.Query(ctx, `SELECT id, name FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list company names")
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company name")
		}
		if _, dup := out[nameKey(name)]; !dup {
			out[nameKey(name)] = id
		}
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate company names")
}

func (s *PostgresStore) ListImports(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity, COALESCE(source, ''), total_rows, imported, error_rows, warning_rows, skipped_rows, created_at
		 FROM import_runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list imports")
	}
	defer rows.Close()

	var out []model.ImportRun
	for rows.Next() {
		var r model.ImportRun
		var entity string
		if err := rows.Scan(&r.ID, &entity, &r.Source, &r.TotalRows, &r.Imported,
			&r.ErrorRows, &r.WarningRows, &r.SkippedRows, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan import run")
		}
		if r.Entity, err = model.ParseEntityType(entity); err != nil {
			return nil, eris.Wrap(err, "postgres: parse entity")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate import runs")
}
