package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/model"
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
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT,
	phone      TEXT,
	city       TEXT,
	data       TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS contracts (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	start_date TEXT,
	end_date   TEXT,
	data       TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS branches (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	name       TEXT NOT NULL,
	city       TEXT,
	data       TEXT NOT NULL DEFAULT '{}',
	UNIQUE (company_id, name)
);

CREATE TABLE IF NOT EXISTS cities (
	name TEXT PRIMARY KEY,
	code TEXT UNIQUE
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
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS import_rows (
	run_id   TEXT NOT NULL REFERENCES import_runs(id),
	position INTEGER NOT NULL,
	data     TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_contracts_company_id ON contracts(company_id);
CREATE INDEX IF NOT EXISTS idx_branches_company_id ON branches(company_id);
CREATE INDEX IF NOT EXISTS idx_import_runs_created_at ON import_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Companies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(city, '') FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Company
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.City); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate companies")
}

func (s *SQLiteStore) Contracts(ctx context.Context) ([]model.Contract, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, COALESCE(start_date, ''), COALESCE(end_date, '') FROM contracts ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contracts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Contract
	for rows.Next() {
		var c model.Contract
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.StartDate, &c.EndDate); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contract")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate contracts")
}

func (s *SQLiteStore) Branches(ctx context.Context) ([]model.Branch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, name, COALESCE(city, '') FROM branches ORDER BY company_id, name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list branches")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Branch
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.CompanyID, &b.Name, &b.City); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan branch")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate branches")
}

func (s *SQLiteStore) Cities(ctx context.Context) ([]model.City, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, COALESCE(code, '') FROM cities ORDER BY rowid`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cities")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.Name, &c.Code); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan city")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate cities")
}

func (s *SQLiteStore) AddCity(ctx context.Context, c model.City) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	if c.Name == "" {
		return eris.New("sqlite: city name is empty")
	}

	var existing sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT code FROM cities WHERE name = ?`, c.Name).Scan(&existing)
	switch {
	case err == nil:
		if c.Code == "" || existing.String == c.Code {
			return nil
		}
		if existing.Valid {
			return eris.Wrapf(city.ErrCodeTaken, "city %q already registered with code %s", c.Name, existing.String)
		}
		_, err = s.db.ExecContext(ctx, `UPDATE cities SET code = ? WHERE name = ?`, c.Code, c.Name)
		return cityWriteErr(err, c)
	case err != sql.ErrNoRows:
		return eris.Wrap(err, "sqlite: lookup city")
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO cities (name, code) VALUES (?, ?)`, c.Name, nullIfEmpty(c.Code))
	return cityWriteErr(err, c)
}

func cityWriteErr(err error, c model.City) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return eris.Wrapf(city.ErrCodeTaken, "code %s", c.Code)
	}
	return eris.Wrapf(err, "sqlite: write city %s", c.Name)
}

func (s *SQLiteStore) SaveImport(ctx context.Context, run *model.ImportRun, rows []map[string]string) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO import_runs (id, entity, source, total_rows, imported, error_rows, warning_rows, skipped_rows, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Entity.String(), run.Source, run.TotalRows, run.Imported,
		run.ErrorRows, run.WarningRows, run.SkippedRows, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert import run")
	}

	if err := s.applyRows(ctx, tx, run, rows); err != nil {
		return err
	}

	for i, r := range rows {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal row")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO import_rows (run_id, position, data) VALUES (?, ?, ?)`,
			run.ID, i, string(data),
		); err != nil {
			return eris.Wrap(err, "sqlite: insert import row")
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit import")
}

func (s *SQLiteStore) applyRows(ctx context.Context, tx *sql.Tx, run *model.ImportRun, rows []map[string]string) error {
	entity := run.Entity
	switch {
	case entity == model.EntityCompanies:
		var maxID int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(CAST(id AS INTEGER)), 0) FROM companies WHERE id GLOB '[0-9]*'`).Scan(&maxID)
		if err != nil {
			return eris.Wrap(err, "sqlite: max company id")
		}
		assignCompanyIDs(rows, maxID, run.IDWidth)
		for _, r := range rows {
			data, err := json.Marshal(r)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal company")
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO companies (id, name, email, phone, city, data, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, phone = excluded.phone,
				 city = excluded.city, data = excluded.data, updated_at = excluded.updated_at`,
				r[model.KeyCompanyID], r[model.KeyCompanyName], nullIfEmpty(r[model.KeyEmail]),
				nullIfEmpty(r[model.KeyPhone]), nullIfEmpty(r[model.KeyCity]), string(data), time.Now().UTC(),
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: upsert company %s", r[model.KeyCompanyID])
			}
		}

	case isContracts(entity):
		for _, r := range rows {
			data, err := json.Marshal(r)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal contract")
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO contracts (id, company_id, start_date, end_date, data) VALUES (?, ?, ?, ?, ?)`,
				uuid.New().String(), r[model.KeyCompanyID], nullIfEmpty(r[model.KeyContractStartDate]),
				nullIfEmpty(r[model.KeyContractEndDate]), string(data),
			)
			if err != nil {
				return eris.Wrap(err, "sqlite: insert contract")
			}
		}

	case entity == model.EntityBranches:
		byName, err := s.companyIDsByName(ctx, tx)
		if err != nil {
			return err
		}
		for _, r := range rows {
			companyID, err := branchCompanyID(r, byName)
			if err != nil {
				return err
			}
			data, err := json.Marshal(r)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal branch")
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO branches (id, company_id, name, city, data) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT (company_id, name) DO UPDATE SET city = excluded.city, data = excluded.data`,
				uuid.New().String(), companyID, r[model.KeyBranchName], nullIfEmpty(r[model.KeyCity]), string(data),
			)
			if err != nil {
				return eris.Wrap(err, "sqlite: upsert branch")
			}
		}

	default:
		return eris.Errorf("sqlite: unknown entity type %d", int(entity))
	}
	return nil
}

func (s *SQLiteStore) companyIDsByName(ctx context.Context, tx *sql.Tx) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, name FROM companies ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list company names")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company name")
		}
		if _, dup := out[nameKey(name)]; !dup {
			out[nameKey(name)] = id
		}
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate company names")
}

func (s *SQLiteStore) ListImports(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity, COALESCE(source, ''), total_rows, imported, error_rows, warning_rows, skipped_rows, created_at
		 FROM import_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list imports")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ImportRun
	for rows.Next() {
		var r model.ImportRun
		var entity string
		if err := rows.Scan(&r.ID, &entity, &r.Source, &r.TotalRows, &r.Imported,
			&r.ErrorRows, &r.WarningRows, &r.SkippedRows, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan import run")
		}
		if r.Entity, err = model.ParseEntityType(entity); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse entity")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate import runs")
}
