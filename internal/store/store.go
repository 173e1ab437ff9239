// Package store persists the CRM reference data the importer validates
// against, the city registry, and committed import runs.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crm-import/internal/model"
)

// Store defines the persistence interface of the import tool.
type Store interface {
	// Reference snapshot
	Companies(ctx context.Context) ([]model.Company, error)
	Contracts(ctx context.Context) ([]model.Contract, error)
	Branches(ctx context.Context) ([]model.Branch, error)

	// City registry. AddCity is a no-op for a known name with the same code
	// and fails with city.ErrCodeTaken when the code belongs to another city.
	Cities(ctx context.Context) ([]model.City, error)
	AddCity(ctx context.Context, c model.City) error

	// Import sink. SaveImport records run and applies the committed rows to
	// the entity tables in one transaction. Companies without an ID are
	// assigned the next free one, written back into their row.
	SaveImport(ctx context.Context, run *model.ImportRun, rows []map[string]string) error
	ListImports(ctx context.Context, limit int) ([]model.ImportRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Snapshot is everything a validation session reads from the store.
type Snapshot struct {
	Reference model.Reference
	Cities    []model.City
}

// LoadSnapshot reads the reference tables and the city registry concurrently.
func LoadSnapshot(ctx context.Context, st Store) (*Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	g.Go(func() error {
		var err error
		snap.Reference.Companies, err = st.Companies(gctx)
		return eris.Wrap(err, "store: load companies")
	})
	g.Go(func() error {
		var err error
		snap.Reference.Contracts, err = st.Contracts(gctx)
		return eris.Wrap(err, "store: load contracts")
	})
	g.Go(func() error {
		var err error
		snap.Reference.Branches, err = st.Branches(gctx)
		return eris.Wrap(err, "store: load branches")
	})
	g.Go(func() error {
		var err error
		snap.Cities, err = st.Cities(gctx)
		return eris.Wrap(err, "store: load cities")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Debug("store: snapshot loaded",
		zap.Int("companies", len(snap.Reference.Companies)),
		zap.Int("contracts", len(snap.Reference.Contracts)),
		zap.Int("branches", len(snap.Reference.Branches)),
		zap.Int("cities", len(snap.Cities)),
	)
	return &snap, nil
}

// FormatCompanyID renders n zero-padded to width digits, falling back to
// model.CompanyIDWidth when width is not positive.
func FormatCompanyID(n, width int) string {
	if width <= 0 {
		width = model.CompanyIDWidth
	}
	return fmt.Sprintf("%0*d", width, n)
}

// assignCompanyIDs gives every row without a company ID the next ID after
// maxID, in row order, and returns the new maximum.
func assignCompanyIDs(rows []map[string]string, maxID, width int) int {
	for _, r := range rows {
		id := strings.TrimSpace(r[model.KeyCompanyID])
		if id == "" {
			continue
		}
		if n, err := strconv.Atoi(id); err == nil && n > maxID {
			maxID = n
		}
	}
	for _, r := range rows {
		if strings.TrimSpace(r[model.KeyCompanyID]) == "" {
			maxID++
			r[model.KeyCompanyID] = FormatCompanyID(maxID, width)
		}
	}
	return maxID
}

// branchCompanyID returns the owning company of a branch row: its company
// ID, or the ID of the company whose name matches.
func branchCompanyID(row map[string]string, byName map[string]string) (string, error) {
	if id := strings.TrimSpace(row[model.KeyCompanyID]); id != "" {
		return id, nil
	}
	name := strings.TrimSpace(row[model.KeyCompanyName])
	if id, ok := byName[nameKey(name)]; ok {
		return id, nil
	}
	return "", eris.Errorf("store: no company named %q", name)
}

func nameKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func isContracts(e model.EntityType) bool {
	return e == model.EntityContracts || e == model.EntityContractsAdvanced
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
