package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/fetcher"
	"github.com/sells-group/crm-import/internal/importer"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/report"
	"github.com/sells-group/crm-import/internal/review"
	"github.com/sells-group/crm-import/internal/store"
)

type validateOptions struct {
	Source  string
	Entity  string
	Resolve []string
	Report  string
	Format  string
	Output  string
	Commit  bool
	Rows    bool
}

var validateOpts validateOptions

var validateCmd = &cobra.Command{
	Use:   "validate <file-or-url>",
	Short: "Validate an import file against the CRM data",
	Long: "Parses a CSV or XLSX file (local path, http(s):// or ftp:// URL), maps its headers, " +
		"normalizes and validates every row, and prints a summary. Optionally resolves misspelled " +
		"cities, writes a report, and commits the valid rows.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("validate"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		seed, err := seedCities(cfg)
		if err != nil {
			return err
		}

		opts := validateOpts
		opts.Source = args[0]
		return runValidate(ctx, opts, validateEnv{
			store:    st,
			importer: newImporter(cfg),
			load:     newOpener(cfg).Load,
			seed:     seed,
		}, cmd.OutOrStdout())
	},
}

// validateEnv holds the collaborators of runValidate.
type validateEnv struct {
	store    store.Store
	importer *importer.Importer
	load     func(ctx context.Context, location string) (*fetcher.Table, error)
	seed     []model.City
}

func runValidate(ctx context.Context, opts validateOptions, env validateEnv, out io.Writer) error {
	entity, err := model.ParseEntityType(opts.Entity)
	if err != nil {
		return err
	}
	resolutions, err := parseResolutions(opts.Resolve)
	if err != nil {
		return err
	}

	table, err := env.load(ctx, opts.Source)
	if err != nil {
		return eris.Wrap(err, "validate: load source")
	}
	snap, err := store.LoadSnapshot(ctx, env.store)
	if err != nil {
		return err
	}

	sess, err := env.importer.Run(ctx, importer.Input{
		Entity:    entity,
		Source:    filepath.Base(opts.Source),
		Table:     table,
		Reference: snap.Reference,
		Gazetteer: importer.Gazetteer(snap.Cities, env.seed),
		Persister: env.store,
	})
	if err != nil {
		return err
	}

	for _, r := range resolutions {
		n, err := sess.ResolveCity(r.from, r.to)
		if err != nil {
			return err
		}
		zap.L().Info("city resolved", zap.String("from", r.from), zap.String("to", r.to), zap.Int("rows", n))
	}

	formatSummary(out, sess.Summary())
	if pending := sess.PendingCities(); len(pending) > 0 {
		_, _ = fmt.Fprintln(out)
		formatPendingCities(out, pending)
	}
	if opts.Rows {
		_, _ = fmt.Fprintln(out)
		formatFindings(out, sess.Filter(review.Filter{ErrorsOnly: true}))
	}

	if opts.Report != "" {
		if err := writeReport(opts.Report, opts.Format, sess); err != nil {
			return err
		}
	}

	if !opts.Commit && opts.Output == "" {
		return nil
	}

	var sink importer.Sink
	if opts.Commit {
		sink = env.store
	}
	run, res, err := importer.Commit(ctx, sess, sink)
	if err != nil {
		return err
	}
	if opts.Output != "" {
		if err := writeJSONFile(opts.Output, res); err != nil {
			return err
		}
	}
	if opts.Commit {
		_, _ = fmt.Fprintf(out, "\nCommitted %d of %d rows (run %s)\n", run.Imported, run.TotalRows, run.ID)
	}
	return nil
}

type resolution struct{ from, to string }

func parseResolutions(pairs []string) ([]resolution, error) {
	out := make([]resolution, 0, len(pairs))
	for _, p := range pairs {
		from, to, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return nil, eris.Errorf("invalid --resolve %q, want old=new", p)
		}
		out = append(out, resolution{from: strings.TrimSpace(from), to: strings.TrimSpace(to)})
	}
	return out, nil
}

func writeReport(path, format string, sess *review.Session) error {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create report %s", path)
	}
	if err := report.Write(file, f, report.Build(sess)); err != nil {
		file.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(file.Close(), "close report %s", path)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "write output %s", path)
}

func init() {
	validateCmd.Flags().StringVarP(&validateOpts.Entity, "entity", "e", "", "entity type: companies, contracts, contractsAdvanced, branches (required)")
	validateCmd.Flags().StringArrayVar(&validateOpts.Resolve, "resolve", nil, "rewrite a misspelled city, old=new (repeatable)")
	validateCmd.Flags().StringVar(&validateOpts.Report, "report", "", "write a review report to this path")
	validateCmd.Flags().StringVar(&validateOpts.Format, "format", "", "report format: json, csv, xlsx (default from --report extension)")
	validateCmd.Flags().StringVarP(&validateOpts.Output, "output", "o", "", "write the approved rows as JSON to this path")
	validateCmd.Flags().BoolVar(&validateOpts.Commit, "commit", false, "save the approved rows to the store")
	validateCmd.Flags().BoolVar(&validateOpts.Rows, "rows", false, "list every finding of the invalid rows")
	_ = validateCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(validateCmd)
}
