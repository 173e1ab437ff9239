package importer

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/review"
)

type recordingSink struct {
	run  *model.ImportRun
	rows []map[string]string
	err  error
}

func (r *recordingSink) SaveImport(_ context.Context, run *model.ImportRun, rows []map[string]string) error {
	if r.err != nil {
		return r.err
	}
	run.ID = "run-1"
	r.run, r.rows = run, rows
	return nil
}

const commitSrc = "اسم الشركة,رقم الهاتف,العنوان,المدينة\n" +
	"شركة الأمان,0501234567,حي الملز,الرياض\n" +
	"شركة النور,0502222222,حي العليا,مدينة مجهولة\n" +
	",,,\n"

func commitSession(t *testing.T) *review.Session {
	t.Helper()
	s, err := New(Options{}).Run(context.Background(), Input{
		Entity: model.EntityCompanies,
		Source: "c.csv",
		Table:  parse(t, commitSrc),
	})
	require.NoError(t, err)
	return s
}

func TestCommit_SavesApprovedRows(t *testing.T) {
	s := commitSession(t)
	sink := &recordingSink{}

	run, res, err := Commit(context.Background(), s, sink)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.EntityCompanies, run.Entity)
	assert.Equal(t, "c.csv", run.Source)
	assert.Equal(t, 2, run.TotalRows)
	assert.Equal(t, 1, run.Imported)
	assert.Equal(t, 1, run.ErrorRows)
	assert.Equal(t, 1, run.SkippedRows)
	assert.Equal(t, 1, res.SuccessfulRows)
	require.Len(t, sink.rows, 1)
	assert.Equal(t, "شركة الأمان", sink.rows[0][model.KeyCompanyName])
	assert.True(t, s.Closed())

	_, _, err = Commit(context.Background(), s, sink)
	assert.ErrorIs(t, err, review.ErrSessionClosed)
}

func TestCommit_NilSink(t *testing.T) {
	run, res, err := Commit(context.Background(), commitSession(t), nil)
	require.NoError(t, err)
	assert.Empty(t, run.ID)
	assert.Equal(t, 1, res.SuccessfulRows)
}

func TestCommit_SinkErrorKeepsSessionOpen(t *testing.T) {
	s := commitSession(t)
	n, err := s.ResolveCity("مدينة مجهولة", "جدة")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	sink := &recordingSink{err: eris.New("disk full")}
	_, res, err := Commit(context.Background(), s, sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "importer: save import")
	assert.NotNil(t, res)
	assert.False(t, s.Closed())

	sink.err = nil
	run, res, err := Commit(context.Background(), s, sink)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, 2, res.SuccessfulRows)
	require.Len(t, sink.rows, 2)
	assert.Equal(t, "جدة", sink.rows[1][model.KeyCity])
	assert.True(t, s.Closed())
}

func TestCommit_CarriesIDWidth(t *testing.T) {
	s, err := New(Options{IdentifierWidth: 6}).Run(context.Background(), Input{
		Entity: model.EntityCompanies,
		Table:  parse(t, commitSrc),
	})
	require.NoError(t, err)

	sink := &recordingSink{}
	run, _, err := Commit(context.Background(), s, sink)
	require.NoError(t, err)
	assert.Equal(t, 6, run.IDWidth)
}

func TestGazetteer(t *testing.T) {
	stored := []model.City{{Name: "عنيزة الجديدة", Code: "RUH"}}
	seed := []model.City{{Name: "تبوك"}, {Name: "جدة"}}

	g := Gazetteer(stored, seed)
	assert.Equal(t, 3, g.Len())
	assert.False(t, g.Contains("الرياض"))

	g = Gazetteer(stored, nil)
	assert.True(t, g.Contains("عنيزة الجديدة"))
	assert.True(t, g.Contains("جدة"))
	assert.False(t, g.Contains("الرياض"), "default entry with a taken code is dropped")

	assert.True(t, Gazetteer(nil, nil).Contains("الرياض"))
}
