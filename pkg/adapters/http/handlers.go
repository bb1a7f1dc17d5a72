package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/aretw0/pipeprep/pkg/domain"
	"github.com/aretw0/pipeprep/pkg/preview"
	"github.com/aretw0/pipeprep/pkg/sourcestore"
	"github.com/aretw0/pipeprep/pkg/validation"
)

type selectDatasourceRequest struct {
	NodeID string `json:"node_id"`
}

type changeCredentialRequest struct {
	CredentialID string `json:"credential_id"`
}

type processRequest struct {
	Inputs map[string]any `json:"inputs"`
}

// ParamsResponse is the body of POST /sessions/{id}/params.
// Schema describes the inputs object that process accepts.
type ParamsResponse struct {
	Variables []domain.Variable `json:"variables"`
	Applied   bool              `json:"applied"`
	Schema    *openapi3.Schema  `json:"schema"`
}

// ProcessResponse is the body of an accepted POST /sessions/{id}/process.
type ProcessResponse struct {
	RunID string `json:"run_id"`
}

// PreviewResponse is the body of POST /preview.
type PreviewResponse struct {
	ChunkStructure domain.ChunkingMode  `json:"chunk_structure"`
	Chunks         domain.PreviewChunks `json:"chunks"`
	Limit          int                  `json:"limit"`
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// ListDatasources handles GET /datasources and GET /sessions/{id}/datasources.
func (s *Server) ListDatasources(w http.ResponseWriter, r *http.Request) {
	options, err := s.Service.Datasources(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if options == nil {
		options = []domain.DatasourceOption{}
	}
	writeJSON(w, http.StatusOK, options)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Service.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.Service.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.Service.Get(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Service.Delete(r.Context(), sessionID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectDatasource handles PUT /sessions/{id}/datasource.
func (s *Server) SelectDatasource(w http.ResponseWriter, r *http.Request) {
	var body selectDatasourceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, r, "Invalid request body", err)
		return
	}
	if body.NodeID == "" {
		s.badRequest(w, r, "node_id is required", nil)
		return
	}
	view, err := s.Service.SelectDatasource(r.Context(), sessionID(r), body.NodeID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ChangeCredential handles PUT /sessions/{id}/credential.
func (s *Server) ChangeCredential(w http.ResponseWriter, r *http.Request) {
	var body changeCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, r, "Invalid request body", err)
		return
	}
	view, err := s.Service.ChangeCredential(r.Context(), sessionID(r), body.CredentialID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UpdateSources handles PUT /sessions/{id}/sources.
func (s *Server) UpdateSources(w http.ResponseWriter, r *http.Request) {
	var patch sourcestore.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.badRequest(w, r, "Invalid request body", err)
		return
	}
	view, err := s.Service.UpdateSources(r.Context(), sessionID(r), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// UploadFile handles POST /sessions/{id}/files.
func (s *Server) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file too large"})
			return
		}
		s.badRequest(w, r, "Missing multipart field \"file\"", err)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	view, err := s.Service.Upload(r.Context(), sessionID(r), header.Filename, mimeType, header.Size, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Next handles POST /sessions/{id}/next.
func (s *Server) Next(w http.ResponseWriter, r *http.Request) {
	view, err := s.Service.Next(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Back handles POST /sessions/{id}/back.
func (s *Server) Back(w http.ResponseWriter, r *http.Request) {
	view, err := s.Service.Back(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// LoadParams handles POST /sessions/{id}/params.
func (s *Server) LoadParams(w http.ResponseWriter, r *http.Request) {
	vars, applied, err := s.Service.LoadParams(r.Context(), sessionID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if vars == nil {
		vars = []domain.Variable{}
	}
	writeJSON(w, http.StatusOK, ParamsResponse{
		Variables: vars,
		Applied:   applied,
		Schema:    validation.Compile(vars),
	})
}

// Process handles POST /sessions/{id}/process.
func (s *Server) Process(w http.ResponseWriter, r *http.Request) {
	var body processRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, r, "Invalid request body", err)
		return
	}
	runID, err := s.Service.Process(r.Context(), sessionID(r), body.Inputs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ProcessResponse{RunID: runID})
}

// Preview handles POST /preview. The limit query parameter overrides the
// service default; format=markdown renders the chunks as text.
func (s *Server) Preview(w http.ResponseWriter, r *http.Request) {
	var limit int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		s.badRequest(w, r, "Invalid format for parameter limit", err)
		return
	}

	var outputs domain.PreviewOutputs
	if err := json.NewDecoder(r.Body).Decode(&outputs); err != nil {
		s.badRequest(w, r, "Invalid request body", err)
		return
	}

	chunks, err := s.Service.Preview(&outputs, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if chunks == nil {
		s.badRequest(w, r, "Unsupported chunk_structure", nil)
		return
	}
	if limit <= 0 {
		limit = s.Service.PreviewLimit()
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(preview.Render(chunks)))
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{
		ChunkStructure: chunks.Mode(),
		Chunks:         chunks,
		Limit:          limit,
	})
}
