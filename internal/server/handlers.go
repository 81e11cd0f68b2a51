package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/collineage/internal/export"
	"github.com/leapstack-labs/collineage/internal/store"
	"github.com/leapstack-labs/collineage/pkg/lineage"
	"github.com/leapstack-labs/collineage/pkg/parser"
)

// lineageRequest is the body of the lineage and export endpoints.
type lineageRequest struct {
	SQL  string `json:"sql"`
	Mode string `json:"mode,omitempty"`
	Save bool   `json:"save,omitempty"`
}

// batchRequest is the body of the batch endpoint.
type batchRequest struct {
	Statements []string `json:"statements"`
	Mode       string   `json:"mode,omitempty"`
}

type lineageResponse struct {
	ID           string           `json:"id,omitempty"`
	Mode         string           `json:"mode"`
	SourceTables []string         `json:"source_tables"`
	Records      []lineage.Record `json:"records"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

type batchResult struct {
	*lineageResponse
	*errorResponse
}

// MarshalJSON flattens whichever half is set.
func (b batchResult) MarshalJSON() ([]byte, error) {
	if b.errorResponse != nil {
		return json.Marshal(b.errorResponse)
	}
	return json.Marshal(b.lineageResponse)
}

// httpError is a failure with its response status.
type httpError struct {
	status int
	body   errorResponse
}

func (e *httpError) Error() string { return e.body.Error }

func badRequest(format string, args ...any) *httpError {
	return &httpError{status: http.StatusBadRequest, body: errorResponse{Error: fmt.Sprintf(format, args...), Kind: "bad_request"}}
}

// extractionError maps a parser error to a 422 response body.
func extractionError(err error) errorResponse {
	body := errorResponse{Error: err.Error(), Kind: parser.KindName(err)}
	var perr *parser.Error
	if errors.As(err, &perr) && perr.Pos.IsValid() {
		body.Line = perr.Pos.Line
		body.Column = perr.Pos.Column
	}
	return body
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	var req lineageRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, ok := s.extract(w, req.SQL, req.Mode)
	if !ok {
		return
	}

	resp := newLineageResponse(res)
	if req.Save {
		if s.store == nil {
			s.writeError(w, &httpError{status: http.StatusNotImplemented, body: errorResponse{Error: "history is not enabled", Kind: "history_disabled"}})
			return
		}
		saved, err := s.store.Save(r.Context(), req.SQL, res)
		if err != nil {
			s.logger.Error("failed to save extraction", "error", err)
			s.writeError(w, internalError(err))
			return
		}
		resp.ID = saved.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(export.FormatXLSX)
	}
	format, err := export.ParseFormat(name)
	if err != nil || format == export.FormatAuto {
		s.writeError(w, badRequest("unsupported export format %q", name))
		return
	}

	var req lineageRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, ok := s.extract(w, req.SQL, req.Mode)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.FileName()))
	if err := export.Write(w, format, res.Records); err != nil {
		s.logger.Error("failed to write export", "format", format, "error", err)
	}
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Statements) == 0 {
		s.writeError(w, badRequest("statements must not be empty"))
		return
	}
	ex, err := s.extractorFor(req.Mode)
	if err != nil {
		s.writeError(w, badRequest("%v", err))
		return
	}

	results := make([]batchResult, len(req.Statements))
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, sql := range req.Statements {
		eg.Go(func() error {
			res, err := ex.Extract(sql)
			if err != nil {
				body := extractionError(err)
				results[i] = batchResult{errorResponse: &body}
				return nil
			}
			results[i] = batchResult{lineageResponse: newLineageResponse(res)}
			return nil
		})
	}
	_ = eg.Wait()

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, badRequest("invalid limit %q", v))
			return
		}
		limit = n
	}
	list, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, internalError(err))
		return
	}
	if list == nil {
		list = []store.Extraction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"extractions": list})
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	e, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, storeError(err))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, storeError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a size-limited JSON body into v. It writes the error
// response and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, &httpError{
				status: http.StatusRequestEntityTooLarge,
				body:   errorResponse{Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), Kind: "input_too_large"},
			})
			return false
		}
		s.writeError(w, badRequest("invalid request body: %v", err))
		return false
	}
	return true
}

// extract runs the extractor for mode. It writes the error response and
// returns false on failure.
func (s *Server) extract(w http.ResponseWriter, sql, mode string) (*lineage.Result, bool) {
	ex, err := s.extractorFor(mode)
	if err != nil {
		s.writeError(w, badRequest("%v", err))
		return nil, false
	}
	res, err := ex.Extract(sql)
	if err != nil {
		s.logger.Debug("extraction failed", "kind", parser.KindName(err), "error", err)
		s.writeError(w, &httpError{status: http.StatusUnprocessableEntity, body: extractionError(err)})
		return nil, false
	}
	return res, true
}

// extractorFor returns the configured extractor, or a copy using mode
// when mode is set.
func (s *Server) extractorFor(mode string) (*lineage.Extractor, error) {
	if mode == "" {
		return s.extractor, nil
	}
	m, err := lineage.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if m == s.extractor.Mode() {
		return s.extractor, nil
	}
	opts := append(slices.Clone(s.options), lineage.WithMode(m))
	return lineage.New(opts...), nil
}

func (s *Server) historyEnabled(w http.ResponseWriter) bool {
	if s.store == nil {
		s.writeError(w, &httpError{status: http.StatusNotFound, body: errorResponse{Error: "history is not enabled", Kind: "history_disabled"}})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err *httpError) {
	writeJSON(w, err.status, err.body)
}

func internalError(err error) *httpError {
	return &httpError{status: http.StatusInternalServerError, body: errorResponse{Error: err.Error(), Kind: "internal"}}
}

func storeError(err error) *httpError {
	if errors.Is(err, store.ErrNotFound) {
		return &httpError{status: http.StatusNotFound, body: errorResponse{Error: err.Error(), Kind: "not_found"}}
	}
	return internalError(err)
}

func newLineageResponse(res *lineage.Result) *lineageResponse {
	resp := &lineageResponse{
		Mode:         res.Mode.String(),
		SourceTables: res.Tables,
		Records:      res.Records,
	}
	if resp.SourceTables == nil {
		resp.SourceTables = []string{}
	}
	if resp.Records == nil {
		resp.Records = []lineage.Record{}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
