package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/config"
	"github.com/sells-group/crm-import/internal/db"
	"github.com/sells-group/crm-import/internal/fetcher"
	"github.com/sells-group/crm-import/internal/importer"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/store"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "crm-import.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// seedCities loads the configured city seed file, if any.
func seedCities(c *config.Config) ([]model.City, error) {
	if c.Import.CitySeed == "" {
		return nil, nil
	}
	return city.LoadSeed(c.Import.CitySeed)
}

func newImporter(c *config.Config) *importer.Importer {
	return importer.New(importer.Options{
		IdentifierWidth: c.Import.IdentifierWidth,
		MaxRows:         c.Import.MaxRows,
		City: city.Options{
			Threshold:      c.Import.CityThreshold,
			MaxSuggestions: c.Import.MaxSuggestions,
			Unsorted:       !c.Import.SortSuggestions,
		},
	})
}

func newOpener(c *config.Config) *fetcher.Opener {
	timeout := time.Duration(c.Fetch.TimeoutSecs) * time.Second
	o := fetcher.NewOpener(
		fetcher.HTTPOptions{
			UserAgent:  c.Fetch.UserAgent,
			Timeout:    timeout,
			MaxRetries: c.Fetch.MaxRetries,
			RatePerSec: c.Fetch.RatePerSec,
		},
		fetcher.FTPOptions{Timeout: timeout},
	)
	o.MaxBytes = c.Fetch.MaxBytes
	return o
}
