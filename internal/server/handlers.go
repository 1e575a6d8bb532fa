package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/medqa/internal/index"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/search"
	"github.com/hyperjump/medqa/internal/storage"
	"go.uber.org/zap"
)

// User-facing messages.
const (
	EmptyQueryWarning = "Please enter a medical query before analyzing."
	PipelineFailure   = "Something went wrong in the pipeline."
)

// MaxSources is the number of supporting chunks returned with an answer.
const MaxSources = 3

type askRequest struct {
	Query string `json:"query"`
}

type sourceView struct {
	RowID   int     `json:"row_id"`
	ChunkID string  `json:"chunk_id"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type askResponse struct {
	Query      string       `json:"query"`
	Answer     string       `json:"answer"`
	Refused    bool         `json:"refused"`
	Citations  []int        `json:"citations"`
	Ungrounded []int        `json:"ungrounded_citations,omitempty"`
	Sources    []sourceView `json:"sources"`
	DurationMS int64        `json:"duration_ms"`
}

type rowResponse struct {
	RowID  int    `json:"row_id"`
	Source string `json:"source,omitempty"`
	Chunks int    `json:"chunks"`
	Text   string `json:"text"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body", "")
		return
	}
	s.logger.Debug("ask request", zap.String("query", req.Query))

	res, err := s.pipeline.Run(r.Context(), req.Query)
	if errors.Is(err, models.ErrEmptyQuery) {
		s.respondError(w, r, http.StatusBadRequest, EmptyQueryWarning, string(models.FailureEmptyQuery))
		return
	}
	if err != nil {
		kind := models.Classify(err)
		s.logger.Error("ask failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("kind", string(kind)),
			zap.Error(err))
		s.respondError(w, r, statusFor(kind), PipelineFailure, string(kind))
		return
	}
	s.respondJSON(w, http.StatusOK, newAskResponse(res))
}

func newAskResponse(res *models.Result) askResponse {
	out := askResponse{
		Query:      res.Query,
		Answer:     res.Answer.Text,
		Refused:    res.Answer.Refused,
		Citations:  res.Answer.Citations,
		Ungrounded: res.Answer.Ungrounded,
		Sources:    []sourceView{},
		DurationMS: res.Duration.Milliseconds(),
	}
	if out.Citations == nil {
		out.Citations = []int{}
	}
	for i, sc := range res.Context {
		if i == MaxSources {
			break
		}
		out.Sources = append(out.Sources, sourceView{
			RowID:   sc.Chunk.RowID,
			ChunkID: sc.Chunk.ID,
			Snippet: search.Highlight(sc.Chunk.Text, search.SnippetLength),
			Score:   sc.Score,
		})
	}
	return out
}

func statusFor(kind models.FailureKind) int {
	switch kind {
	case models.FailureEmbeddingService, models.FailureGeneration:
		return http.StatusBadGateway
	case models.FailureTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.respondError(w, r, http.StatusServiceUnavailable, "index not loaded", "")
		return
	}
	s.respondJSON(w, http.StatusOK, s.index.Stats())
}

func (s *Server) handleRow(w http.ResponseWriter, r *http.Request) {
	rows, ok := s.index.(RowProvider)
	if !ok {
		s.respondError(w, r, http.StatusNotFound, "row lookup is not available", "")
		return
	}
	rowID, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil || rowID < 0 {
		s.respondError(w, r, http.StatusBadRequest, "row must be a non-negative integer", "")
		return
	}
	chunks, err := rows.Row(r.Context(), rowID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, r, http.StatusNotFound, fmt.Sprintf("row %d not found", rowID), "")
		return
	case err != nil:
		s.logger.Error("row lookup failed", zap.Int("row", rowID), zap.Error(err))
		s.respondError(w, r, http.StatusInternalServerError, "row lookup failed", "")
		return
	}
	s.respondJSON(w, http.StatusOK, rowResponse{
		RowID:  rowID,
		Source: chunks[0].Source,
		Chunks: len(chunks),
		Text:   index.RowText(chunks),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, message, kind string) {
	s.respondJSON(w, status, errorResponse{Error: message, Kind: kind, RequestID: RequestIDFrom(r.Context())})
}
