package review

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/validate"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakePersister struct {
	added []model.City
	err   error
}

func (f *fakePersister) AddCity(_ context.Context, c model.City) error {
	if f.err != nil {
		return f.err
	}
	f.added = append(f.added, c)
	return nil
}

func company(name, cityName string) map[string]string {
	return map[string]string{
		model.KeyCompanyName: name,
		model.KeyPhone:       "0501234567",
		model.KeyAddress:     "حي الملز",
		model.KeyCity:        cityName,
	}
}

func newTestSession(t *testing.T, inputs []Input, p city.Persister) *Session {
	t.Helper()
	gaz := city.NewGazetteer([]model.City{{Name: "الرياض", Code: "RUH"}, {Name: "جدة", Code: "JED"}})
	v, err := validate.New(model.EntityCompanies, validate.NewIndex(model.Reference{}, 4), city.NewResolver(gaz, city.Options{}), 4)
	require.NoError(t, err)
	return NewSession(Config{Entity: model.EntityCompanies, Source: "test.csv", SkippedRows: 1, Validator: v, Persister: p}, inputs)
}

// tenRows yields 7 valid rows and 3 rows with an unknown city (rows 3, 6, 9).
func tenRows() []Input {
	var in []Input
	for i := 0; i < 10; i++ {
		c := "الرياض"
		if i%3 == 1 {
			c = "الریاض"
		}
		in = append(in, Input{Number: i + 2, Data: company(fmt.Sprintf("شركة %d", i), c)})
	}
	return in
}

func TestNewSession_SeedsApprovalFromValidity(t *testing.T) {
	s := newTestSession(t, tenRows(), nil)
	require.Equal(t, 10, s.Len())
	for _, r := range s.Rows() {
		assert.Equal(t, r.IsValid(), r.Approved, "row %d", r.RowNumber)
	}
	sum := s.Summary()
	assert.Equal(t, 7, sum.ValidRows)
	assert.Equal(t, 3, sum.ErrorRows)
	assert.Equal(t, 7, sum.ApprovedRows)
	assert.Equal(t, 1, sum.SkippedRows)
	assert.Equal(t, map[string]int{"city: unknown city": 3}, sum.Errors)
	assert.NotEmpty(t, s.ID)
}

func TestSession_BulkApprovalAndCommit(t *testing.T) {
	s := newTestSession(t, tenRows(), nil)
	require.NoError(t, s.DeselectAll())
	assert.Zero(t, s.Summary().ApprovedRows)

	n, err := s.SelectAll()
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	for _, r := range s.Rows() {
		if !r.IsValid() {
			assert.False(t, r.Approved)
		}
	}

	res, err := s.Commit(nil)
	require.NoError(t, err)
	assert.Equal(t, 10, res.TotalRows)
	assert.Equal(t, 7, res.SuccessfulRows)
	assert.Equal(t, 3, res.ErrorRows)
	assert.Len(t, res.ImportedData, 7)
	assert.Equal(t, "شركة 0", res.ImportedData[0][model.KeyCompanyName])

	_, err = s.Commit(nil)
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.SetApproved(2, true), ErrSessionClosed)
	assert.True(t, s.Closed())
}

func TestSession_CommitFailedSaveKeepsSession(t *testing.T) {
	s := newTestSession(t, tenRows(), nil)
	n, err := s.ResolveCity("الریاض", "الرياض")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, s.SetApproved(2, false))

	saveErr := eris.New("db down")
	res, err := s.Commit(func(*model.ImportResults) error { return saveErr })
	assert.ErrorIs(t, err, saveErr)
	require.NotNil(t, res)
	assert.Equal(t, 9, res.SuccessfulRows)
	assert.False(t, s.Closed())

	r2, err := s.Row(2)
	require.NoError(t, err)
	assert.False(t, r2.Approved)
	r3, err := s.Row(3)
	require.NoError(t, err)
	assert.Equal(t, "الرياض", r3.Data[model.KeyCity])

	var saved *model.ImportResults
	res, err = s.Commit(func(r *model.ImportResults) error {
		saved = r
		return nil
	})
	require.NoError(t, err)
	assert.Same(t, saved, res)
	assert.Equal(t, 9, res.SuccessfulRows)
	assert.True(t, s.Closed())
}

func TestSession_Results(t *testing.T) {
	s := newTestSession(t, tenRows(), nil)
	res, err := s.Results()
	require.NoError(t, err)
	assert.Equal(t, 7, res.SuccessfulRows)
	assert.False(t, s.Closed())
	assert.Equal(t, 4, s.IDWidth())

	s.Close()
	_, err = s.Results()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_WithoutResolver(t *testing.T) {
	v, err := validate.New(model.EntityCompanies, nil, nil, 4)
	require.NoError(t, err)
	s := NewSession(Config{Entity: model.EntityCompanies, Validator: v}, []Input{
		{Number: 2, Data: company("شركة", "مدينة ما")},
	})

	n, err := s.ResolveCity("مدينة ما", "الرياض")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, s.PendingCities())

	_, err = s.AddCity(context.Background(), "مدينة ما", model.City{Name: "مدينة ما"})
	assert.ErrorIs(t, err, ErrNoCityRegistry)
}

func TestSession_ApprovalMonotonicity(t *testing.T) {
	s := newTestSession(t, tenRows(), nil)

	err := s.SetApproved(3, true)
	assert.ErrorIs(t, err, ErrRowInvalid)
	_, err = s.Toggle(3)
	assert.ErrorIs(t, err, ErrRowInvalid)
	_, err = s.SelectAll()
	require.NoError(t, err)

	r, err := s.Row(3)
	require.NoError(t, err)
	assert.False(t, r.Approved)

	approved, err := s.Toggle(2)
	require.NoError(t, err)
	assert.False(t, approved)
	approved, err = s.Toggle(2)
	require.NoError(t, err)
	assert.True(t, approved)

	assert.ErrorIs(t, s.SetApproved(99, true), ErrRowNotFound)
	_, err = s.Row(99)
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestSession_FilterDoesNotMutate(t *testing.T) {
	s := newTestSession(t, tenRows(), nil)
	require.NoError(t, s.SetApproved(2, false))
	before := s.Rows()

	errorsOnly := s.Filter(Filter{ErrorsOnly: true})
	assert.Len(t, errorsOnly, 3)
	approvedOnly := s.Filter(Filter{ApprovedOnly: true})
	assert.Len(t, approvedOnly, 6)
	bucket := s.Filter(Filter{Bucket: "city: unknown city"})
	assert.Len(t, bucket, 3)
	assert.Empty(t, s.Filter(Filter{Bucket: "phone: nope"}))

	errorsOnly[0].Data[model.KeyCity] = "changed"
	errorsOnly[0].Approved = true
	assert.Equal(t, before, s.Rows())
}

func TestSession_ResolveCityClearsFindings(t *testing.T) {
	s := newTestSession(t, tenRows(), nil)

	pending := s.PendingCities()
	require.Len(t, pending, 3)
	assert.Equal(t, model.CitySuggestion{
		OriginalCity:  "الریاض",
		SuggestedCity: "الرياض",
		Suggestions:   []string{"الرياض"},
		RowNumber:     3,
		FieldName:     model.KeyCity,
	}, pending[0])

	n, err := s.ResolveCity("الریاض", "الرياض")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, r := range s.Rows() {
		assert.True(t, r.IsValid(), "row %d", r.RowNumber)
		assert.True(t, r.Approved, "row %d", r.RowNumber)
		assert.Equal(t, "الرياض", r.Data[model.KeyCity])
	}
	assert.Empty(t, s.PendingCities())
}

func TestSession_ResolveToUnknownKeepsFinding(t *testing.T) {
	s := newTestSession(t, tenRows(), nil)
	n, err := s.ResolveCity("الریاض", "Atlantis")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	r, err := s.Row(3)
	require.NoError(t, err)
	assert.False(t, r.IsValid())
	assert.False(t, r.Approved)
	assert.Equal(t, "Atlantis", r.Data[model.KeyCity])
	assert.Len(t, s.PendingCities(), 3)
}

func TestSession_ResolveKeepsUserToggleOnValidRows(t *testing.T) {
	in := []Input{
		{Number: 2, Data: company("أ", "الرياض")},
		{Number: 3, Data: company("ب", "Unaiza")},
	}
	s := newTestSession(t, in, nil)
	require.NoError(t, s.SetApproved(2, false))

	_, err := s.ResolveCity("unaiza", "جدة")
	require.NoError(t, err)

	r2, _ := s.Row(2)
	r3, _ := s.Row(3)
	assert.False(t, r2.Approved)
	assert.True(t, r3.Approved)
}

func TestSession_AddCity(t *testing.T) {
	p := &fakePersister{}
	in := []Input{
		{Number: 2, Data: company("أ", "عنيزة")},
		{Number: 4, Data: company("ب", "عنيزه")},
	}
	s := newTestSession(t, in, p)
	require.Len(t, s.PendingCities(), 2)

	n, err := s.AddCity(context.Background(), "عنيزة", model.City{Name: "عنيزة", Code: "UNZ"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []model.City{{Name: "عنيزة", Code: "UNZ"}}, p.added)

	r, _ := s.Row(2)
	assert.True(t, r.IsValid())
	assert.True(t, r.Approved)
	r4, _ := s.Row(4)
	assert.False(t, r4.IsValid())
}

func TestSession_AddCityWithoutOriginalRevalidates(t *testing.T) {
	s := newTestSession(t, []Input{{Number: 2, Data: company("أ", "تبوك")}}, nil)
	n, err := s.AddCity(context.Background(), "", model.City{Name: "تبوك"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	r, _ := s.Row(2)
	assert.True(t, r.Approved)
}

func TestSession_AddCityCodeCollision(t *testing.T) {
	p := &fakePersister{}
	s := newTestSession(t, []Input{{Number: 2, Data: company("أ", "تبوك")}}, p)

	_, err := s.AddCity(context.Background(), "تبوك", model.City{Name: "تبوك", Code: "RUH"})
	assert.ErrorIs(t, err, city.ErrCodeTaken)
	assert.Empty(t, p.added)

	p.err = eris.New("registry unavailable")
	_, err = s.AddCity(context.Background(), "تبوك", model.City{Name: "تبوك", Code: "TUU"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist city")

	r, _ := s.Row(2)
	assert.False(t, r.IsValid(), "failed persistence must not grow the gazetteer")
}

func TestSession_NormalizationNotesAreWarnings(t *testing.T) {
	note := model.Finding{Row: 2, Field: model.KeyPhone, Message: "non-numeric characters removed", Severity: model.SeverityWarning, Code: model.CodeNormalized}
	s := newTestSession(t, []Input{{Number: 2, Data: company("أ", "جدة"), Notes: []model.Finding{note}}}, nil)

	r, _ := s.Row(2)
	assert.True(t, r.Approved)
	assert.Equal(t, []model.Finding{note}, r.Warnings)

	_, err := s.ResolveCity("x", "y")
	require.NoError(t, err)
	r, _ = s.Row(2)
	assert.Equal(t, []model.Finding{note}, r.Warnings)
}

func TestSession_Close(t *testing.T) {
	s := newTestSession(t, tenRows(), nil)
	s.Close()
	assert.True(t, s.Closed())
	assert.Zero(t, s.Len())
	_, err := s.SelectAll()
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.ResolveCity("a", "b")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestBuckets(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Buckets(map[string]int{"a": 1, "b": 3, "c": 1}))
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, StateApproved, StateOf(&model.ImportRow{Approved: true}))
	assert.Equal(t, StateUnapproved, StateOf(&model.ImportRow{}))
	assert.Equal(t, StateInvalid, StateOf(&model.ImportRow{Errors: []model.Finding{{}}}))
}
