package importer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/review"
)

// Sink receives committed rows.
type Sink interface {
	SaveImport(ctx context.Context, run *model.ImportRun, rows []map[string]string) error
}

// Commit hands the session's approved rows to sink and closes the session
// once the save succeeds. When the save fails the session stays open so the
// commit can be retried. A nil sink only closes the session. The returned
// run carries the ID the sink assigned.
func Commit(ctx context.Context, s *review.Session, sink Sink) (*model.ImportRun, *model.ImportResults, error) {
	var run *model.ImportRun
	res, err := s.Commit(func(res *model.ImportResults) error {
		run = &model.ImportRun{
			Entity:      s.Entity,
			Source:      s.Source,
			TotalRows:   res.TotalRows,
			Imported:    res.SuccessfulRows,
			ErrorRows:   res.ErrorRows,
			WarningRows: res.WarningRows,
			SkippedRows: s.SkippedRows,
			IDWidth:     s.IDWidth(),
		}
		if sink == nil {
			return nil
		}
		return eris.Wrap(sink.SaveImport(ctx, run, res.ImportedData), "importer: save import")
	})
	if err != nil {
		if eris.Is(err, review.ErrSessionClosed) {
			return nil, nil, err
		}
		return nil, res, err
	}
	if sink != nil {
		zap.L().Info("importer: import saved",
			zap.String("run", run.ID),
			zap.String("entity", run.Entity.String()),
			zap.Int("imported", run.Imported),
		)
	}
	return run, res, nil
}

// Gazetteer builds the city list for a run: the stored cities first, then
// base (the built-in list when empty). A base entry whose code is already
// owned by a stored city is dropped.
func Gazetteer(stored, base []model.City) *city.Gazetteer {
	if len(base) == 0 {
		base = city.DefaultCities()
	}
	all := make([]model.City, 0, len(stored)+len(base))
	all = append(all, stored...)
	all = append(all, base...)
	return city.NewGazetteer(all)
}
