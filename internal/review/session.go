// Package review holds the in-memory review/approval state of one import:
// validated rows, user approval toggles, interactive city resolution and the
// final commit payload.
package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/validate"
)

var (
	// ErrRowNotFound is returned for a row number not present in the session.
	ErrRowNotFound = eris.New("review: row not found")
	// ErrRowInvalid is returned when approving a row that has errors.
	ErrRowInvalid = eris.New("review: row has errors and cannot be approved")
	// ErrSessionClosed is returned by mutations after Commit or Close.
	ErrSessionClosed = eris.New("review: session is closed")
	// ErrNoCityRegistry is returned by AddCity when the session validates without a city resolver.
	ErrNoCityRegistry = eris.New("review: session has no city registry")
)

// State is the review state of one row.
type State string

const (
	StateApproved   State = "approved"
	StateUnapproved State = "unapproved"
	StateInvalid    State = "invalid"
)

// StateOf derives the review state of r.
func StateOf(r *model.ImportRow) State {
	switch {
	case !r.IsValid():
		return StateInvalid
	case r.Approved:
		return StateApproved
	default:
		return StateUnapproved
	}
}

// Input is one mapped, normalized data row entering review.
type Input struct {
	Number int
	Data   map[string]string
	// Notes are normalization warnings carried alongside validator findings.
	Notes []model.Finding
}

// Config describes a session.
type Config struct {
	Entity      model.EntityType
	Source      string
	SkippedRows int
	Validator   *validate.Validator
	// Persister receives cities added during review; nil keeps additions session-local.
	Persister city.Persister
}

// Session is the review state of one import. All methods are safe for
// concurrent use.
type Session struct {
	ID          string
	Entity      model.EntityType
	Source      string
	SkippedRows int
	CreatedAt   time.Time

	mu        sync.Mutex
	rows      []*model.ImportRow
	byNumber  map[int]*model.ImportRow
	notes     map[int][]model.Finding
	validator *validate.Validator
	fileIdx   *validate.FileIndex
	persister city.Persister
	closed    bool
	log       *zap.Logger
}

// NewSession validates every input row and seeds approval from validity.
func NewSession(cfg Config, inputs []Input) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		Entity:      cfg.Entity,
		Source:      cfg.Source,
		SkippedRows: cfg.SkippedRows,
		CreatedAt:   time.Now().UTC(),
		byNumber:    make(map[int]*model.ImportRow, len(inputs)),
		notes:       make(map[int][]model.Finding, len(inputs)),
		validator:   cfg.Validator,
		persister:   cfg.Persister,
	}
	s.log = zap.L().With(zap.String("component", "review"), zap.String("session", s.ID))

	ordered := append([]Input(nil), inputs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	vrows := make([]validate.Row, len(ordered))
	for i, in := range ordered {
		vrows[i] = validate.Row{Number: in.Number, Data: in.Data}
	}
	s.fileIdx = s.validator.BuildFileIndex(vrows)

	for _, in := range ordered {
		if _, dup := s.byNumber[in.Number]; dup {
			continue
		}
		row := &model.ImportRow{RowNumber: in.Number, Data: copyData(in.Data)}
		s.notes[in.Number] = in.Notes
		s.validateLocked(row)
		row.Approved = row.IsValid()
		s.rows = append(s.rows, row)
		s.byNumber[row.RowNumber] = row
	}
	return s
}

func copyData(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// validateLocked recomputes findings for row. It never touches Approved.
func (s *Session) validateLocked(row *model.ImportRow) {
	errs, warns := s.validator.ValidateRow(row.RowNumber, row.Data, s.fileIdx)
	row.Errors = errs
	row.Warnings = append(append([]model.Finding(nil), s.notes[row.RowNumber]...), warns...)
}

// revalidateLocked re-runs validation and re-asserts the approval invariant:
// a row that becomes valid is approved, a row that becomes invalid is not.
func (s *Session) revalidateLocked(row *model.ImportRow) {
	wasValid := row.IsValid()
	s.validateLocked(row)
	switch {
	case !row.IsValid():
		row.Approved = false
	case !wasValid:
		row.Approved = true
	}
}

// Len returns the number of rows under review.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Closed reports whether the session has been committed or discarded.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Rows returns copies of all rows in row-number order.
func (s *Session) Rows() []model.ImportRow {
	return s.Filter(Filter{})
}

// Row returns a copy of one row.
func (s *Session) Row(number int) (model.ImportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.byNumber[number]
	if !ok {
		return model.ImportRow{}, eris.Wrapf(ErrRowNotFound, "row %d", number)
	}
	return row.Clone(), nil
}

// SetApproved is the single mutation entry point for approval. Approving an
// invalid row fails with ErrRowInvalid and leaves it unapproved.
func (s *Session) SetApproved(number int, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	row, ok := s.byNumber[number]
	if !ok {
		return eris.Wrapf(ErrRowNotFound, "row %d", number)
	}
	return setApprovedLocked(row, approved)
}

func setApprovedLocked(row *model.ImportRow, approved bool) error {
	if approved && !row.IsValid() {
		row.Approved = false
		return eris.Wrapf(ErrRowInvalid, "row %d", row.RowNumber)
	}
	row.Approved = approved
	return nil
}

// Toggle flips the approval of one row and returns the new value.
func (s *Session) Toggle(number int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSessionClosed
	}
	row, ok := s.byNumber[number]
	if !ok {
		return false, eris.Wrapf(ErrRowNotFound, "row %d", number)
	}
	if err := setApprovedLocked(row, !row.Approved); err != nil {
		return false, err
	}
	return row.Approved, nil
}

// SelectAll approves every valid row and unapproves every invalid one.
// It returns the number of approved rows.
func (s *Session) SelectAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	n := 0
	for _, row := range s.rows {
		_ = setApprovedLocked(row, row.IsValid())
		if row.Approved {
			n++
		}
	}
	return n, nil
}

// DeselectAll unapproves every row.
func (s *Session) DeselectAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	for _, row := range s.rows {
		_ = setApprovedLocked(row, false)
	}
	return nil
}

// Commit extracts the approved rows into the import payload and hands it to
// save. The session closes only when save succeeds; on failure it stays open
// with every approval and city change intact. A nil save just closes.
// The session lock is held while save runs.
func (s *Session) Commit(save func(*model.ImportResults) error) (*model.ImportResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	res := s.resultsLocked()
	if save != nil {
		if err := save(res); err != nil {
			s.log.Warn("review: commit failed, session kept open", zap.Error(err))
			return res, err
		}
	}
	s.closed = true
	s.log.Info("review: session committed",
		zap.String("entity", s.Entity.String()),
		zap.Int("total_rows", res.TotalRows),
		zap.Int("imported", res.SuccessfulRows),
		zap.Int("error_rows", res.ErrorRows),
	)
	return res, nil
}

// Results builds the import payload from the current row states without
// closing the session.
func (s *Session) Results() (*model.ImportResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.resultsLocked(), nil
}

func (s *Session) resultsLocked() *model.ImportResults {
	res := &model.ImportResults{
		TotalRows:    len(s.rows),
		ImportedData: []map[string]string{},
	}
	for _, row := range s.rows {
		if !row.IsValid() {
			res.ErrorRows++
		}
		if row.HasWarnings() {
			res.WarningRows++
		}
		if row.Approved && row.IsValid() {
			res.SuccessfulRows++
			res.ImportedData = append(res.ImportedData, copyData(row.Data))
		}
	}
	return res
}

// IDWidth is the company ID zero-pad width rows were validated with.
func (s *Session) IDWidth() int {
	return s.validator.Width()
}

// Close discards the session without committing.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.rows = nil
	s.byNumber = map[int]*model.ImportRow{}
	s.log.Debug("review: session discarded")
}

// AddCity appends a new city to the session gazetteer, hands it to the
// persister, and resolves cells spelled original (when set) to the new name.
// It returns the number of rows rewritten.
func (s *Session) AddCity(ctx context.Context, original string, c model.City) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrSessionClosed
	}
	resolver := s.validator.Resolver()
	if resolver == nil {
		s.mu.Unlock()
		return 0, ErrNoCityRegistry
	}
	gaz := resolver.Gazetteer()
	if err := gaz.CheckAdd(c); err != nil {
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.AddCity(ctx, c); err != nil {
			return 0, eris.Wrap(err, "review: persist city")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := gaz.Add(c); err != nil {
		return 0, err
	}
	s.log.Info("review: city added", zap.String("city", c.Name), zap.String("code", c.Code))
	if original == "" {
		return s.revalidateCitiesLocked(), nil
	}
	return s.resolveCityLocked(original, c.Name), nil
}

// revalidateCitiesLocked re-checks rows with a pending city error, which a
// newly added city may clear. It returns the number of rows that became valid.
func (s *Session) revalidateCitiesLocked() int {
	n := 0
	for _, row := range s.rows {
		if !hasCityError(row) {
			continue
		}
		s.revalidateLocked(row)
		if row.IsValid() {
			n++
		}
	}
	return n
}

func hasCityError(row *model.ImportRow) bool {
	for _, f := range row.Errors {
		if f.Code == model.CodeUnknownCity {
			return true
		}
	}
	return false
}
