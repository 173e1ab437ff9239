// Package importer runs the validation pipeline: parsed table, header
// mapping, per-cell normalization and row validation, producing a review
// session.
package importer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/fetcher"
	"github.com/sells-group/crm-import/internal/mapper"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/normalize"
	"github.com/sells-group/crm-import/internal/review"
	"github.com/sells-group/crm-import/internal/validate"
)

// ErrTooManyRows rejects files above the configured row limit.
var ErrTooManyRows = eris.New("importer: too many rows")

// Options configures the pipeline.
type Options struct {
	IdentifierWidth int
	// MaxRows caps data rows (including skipped empty rows); 0 disables the cap.
	MaxRows int
	City    city.Options
}

// Input is everything one pipeline run needs.
type Input struct {
	Entity    model.EntityType
	Source    string
	Table     *fetcher.Table
	Reference model.Reference
	// Gazetteer is cloned so session growth never leaks into the caller's copy.
	Gazetteer *city.Gazetteer
	Persister city.Persister
}

// Importer builds review sessions from parsed tables.
type Importer struct {
	opts Options
	norm *normalize.Normalizer
}

// New creates an Importer.
func New(opts Options) *Importer {
	if opts.IdentifierWidth <= 0 {
		opts.IdentifierWidth = model.CompanyIDWidth
	}
	return &Importer{
		opts: opts,
		norm: normalize.New(normalize.Options{IdentifierWidth: opts.IdentifierWidth}),
	}
}

// Run validates the table and returns the review session. Pre-flight
// failures (unknown entity, missing required headers, row limit) return an
// error and create no session.
func (im *Importer) Run(ctx context.Context, in Input) (*review.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "importer: run")
	}
	if in.Table == nil {
		return nil, eris.Wrap(fetcher.ErrEmptyFile, "importer: run")
	}
	log := zap.L().With(
		zap.String("component", "importer"),
		zap.String("entity", in.Entity.String()),
		zap.String("source", in.Source),
	)
	start := time.Now()

	mapping, err := mapper.Build(in.Table.Header, in.Entity)
	if err != nil {
		log.Warn("importer: header rejected", zap.Error(err))
		return nil, err
	}
	if len(mapping.Unmapped) > 0 {
		log.Debug("importer: unmapped headers", zap.Strings("headers", mapping.Unmapped))
	}

	if im.opts.MaxRows > 0 && in.Table.DataRowCount() > im.opts.MaxRows {
		return nil, eris.Wrapf(ErrTooManyRows, "%d data rows, limit %d", in.Table.DataRowCount(), im.opts.MaxRows)
	}

	gaz := in.Gazetteer
	if gaz == nil {
		gaz = city.NewGazetteer(city.DefaultCities())
	}
	resolver := city.NewResolver(gaz.Clone(), im.opts.City)

	v, err := validate.New(in.Entity, validate.NewIndex(in.Reference, im.opts.IdentifierWidth), resolver, im.opts.IdentifierWidth)
	if err != nil {
		return nil, err
	}

	schema := model.SchemaFor(in.Entity)
	inputs := make([]review.Input, 0, len(in.Table.Rows))
	for _, raw := range in.Table.Rows {
		inputs = append(inputs, im.normalizeRow(schema, mapping, raw))
	}

	s := review.NewSession(review.Config{
		Entity:      in.Entity,
		Source:      in.Source,
		SkippedRows: in.Table.SkippedEmpty,
		Validator:   v,
		Persister:   in.Persister,
	}, inputs)

	sum := s.Summary()
	log.Info("importer: validation complete",
		zap.String("session", s.ID),
		zap.Int("rows", sum.TotalRows),
		zap.Int("valid", sum.ValidRows),
		zap.Int("errors", sum.ErrorRows),
		zap.Int("skipped", sum.SkippedRows),
		zap.Duration("elapsed", time.Since(start)),
	)
	return s, nil
}

func (im *Importer) normalizeRow(schema *model.Schema, mapping *mapper.Mapping, raw fetcher.RawRow) review.Input {
	data := mapping.Row(raw.Cells)
	in := review.Input{Number: raw.Number, Data: data}
	for _, key := range schema.Fields.Keys() {
		val, ok := data[key]
		if !ok {
			continue
		}
		nv := im.norm.Normalize(val, schema.Fields.ByKey(key))
		data[key] = nv.Normalized
		for _, w := range nv.Warnings {
			in.Notes = append(in.Notes, model.Finding{
				Row:      raw.Number,
				Field:    key,
				Value:    nv.Original,
				Message:  w,
				Severity: model.SeverityWarning,
				Code:     model.CodeNormalized,
			})
		}
	}
	return in
}
