package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/crm-import/internal/fetcher"
	"github.com/sells-group/crm-import/internal/importer"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/report"
	"github.com/sells-group/crm-import/internal/review"
	"github.com/sells-group/crm-import/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

type entityInfo struct {
	Entity model.EntityType    `json:"entity"`
	Fields []model.FieldConfig `json:"fields"`
	OneOf  [][]string          `json:"oneOf,omitempty"`
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	out := make([]entityInfo, 0, len(model.AllEntityTypes()))
	for _, e := range model.AllEntityTypes() {
		schema := model.SchemaFor(e)
		out = append(out, entityInfo{Entity: e, Fields: schema.Fields.Fields, OneOf: schema.OneOf})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": out})
}

func (s *Server) handleListCities(w http.ResponseWriter, r *http.Request) {
	var stored []model.City
	if s.store != nil {
		var err error
		if stored, err = s.store.Cities(r.Context()); err != nil {
			writeErr(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cities": importer.Gazetteer(stored, s.opts.SeedCities).Cities()})
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"imports": []model.ImportRun{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.ListImports(r.Context(), limit)
	if err != nil {
		writeErr(w, err)
		return
	}
	if runs == nil {
		runs = []model.ImportRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": runs})
}

type uploadResponse struct {
	SessionID     string                 `json:"sessionId"`
	Summary       review.Summary         `json:"summary"`
	PendingCities []model.CitySuggestion `json:"pendingCities"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", err.Error(), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_form", err.Error(), nil)
		return
	}

	entity, err := model.ParseEntityType(r.FormValue("entity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_entity", err.Error(), nil)
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "multipart field \"file\" is required", nil)
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read_failed", err.Error(), nil)
		return
	}
	table, err := fetcher.ReadTable(hdr.Filename, data)
	if err != nil {
		if errors.Is(err, fetcher.ErrEmptyFile) || errors.Is(err, fetcher.ErrNoDataRows) {
			writeErr(w, err)
			return
		}
		writeError(w, http.StatusBadRequest, "parse_failed", err.Error(), nil)
		return
	}

	in := importer.Input{Entity: entity, Source: hdr.Filename, Table: table}
	var stored []model.City
	if s.store != nil {
		snap, err := store.LoadSnapshot(r.Context(), s.store)
		if err != nil {
			writeErr(w, err)
			return
		}
		in.Reference = snap.Reference
		in.Persister = s.store
		stored = snap.Cities
	}
	in.Gazetteer = importer.Gazetteer(stored, s.opts.SeedCities)

	sess, err := s.importer.Run(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.sessions.Put(sess)

	writeJSON(w, http.StatusCreated, uploadResponse{
		SessionID:     sess.ID,
		Summary:       sess.Summary(),
		PendingCities: nonNilCities(sess.PendingCities()),
	})
}

// session resolves the {sessionID} URL parameter, writing 404 when unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*review.Session, bool) {
	sess, ok := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session_not_found", "session not found or expired", nil)
		return nil, false
	}
	return sess, true
}

func rowParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_row", "row must be a number", nil)
		return 0, false
	}
	return n, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body", nil)
		return false
	}
	return true
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Summary())
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "sessionID")) {
		writeError(w, http.StatusNotFound, "session_not_found", "session not found or expired", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := review.Filter{Bucket: q.Get("bucket")}
	f.ErrorsOnly, _ = strconv.ParseBool(q.Get("errors"))
	f.ApprovedOnly, _ = strconv.ParseBool(q.Get("approved"))
	writeJSON(w, http.StatusOK, map[string]any{"rows": sess.Filter(f)})
}

func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := rowParam(w, r)
	if !ok {
		return
	}
	row, err := sess.Row(n)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := rowParam(w, r)
	if !ok {
		return
	}
	approved, err := sess.Toggle(n)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rowNumber": n, "approved": approved})
}

func (s *Server) handleSetApproval(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, ok := rowParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Approved bool `json:"approved"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := sess.SetApproved(n, req.Approved); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rowNumber": n, "approved": req.Approved})
}

func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, err := sess.SelectAll()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"approvedRows": n})
}

func (s *Server) handleDeselectAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.DeselectAll(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"approvedRows": 0})
}

func (s *Server) handlePendingCities(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendingCities": nonNilCities(sess.PendingCities())})
}

func (s *Server) handleResolveCity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Original string `json:"original"`
		Resolved string `json:"resolved"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Original) == "" || strings.TrimSpace(req.Resolved) == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "original and resolved are required", nil)
		return
	}
	n, err := sess.ResolveCity(req.Original, req.Resolved)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rowsUpdated": n, "summary": sess.Summary()})
}

func (s *Server) handleAddCity(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Code     string `json:"code"`
		Original string `json:"original"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "name is required", nil)
		return
	}
	n, err := sess.AddCity(r.Context(), req.Original, model.City{Name: req.Name, Code: req.Code})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"rowsUpdated": n, "summary": sess.Summary()})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var sink importer.Sink
	if s.store != nil {
		sink = s.store
	}
	run, res, err := importer.Commit(r.Context(), sess, sink)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.sessions.Remove(sess.ID)
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "results": res})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(report.FormatJSON)
	}
	f, err := report.ParseFormat(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown_format", err.Error(), nil)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, f, report.Build(sess)); err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sess.Entity.String()+"-report."+string(f)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func nonNilCities(cs []model.CitySuggestion) []model.CitySuggestion {
	if cs == nil {
		return []model.CitySuggestion{}
	}
	return cs
}
