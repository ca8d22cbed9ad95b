package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"mqas/internal/api"
	"mqas/internal/logging"
	"mqas/internal/queue"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("request body must be a JSON object"))
		return
	}
	id, err := s.svc.Enqueue(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.EnqueueResponse{ID: id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var statuses []queue.Status
	for _, value := range query["status"] {
		for part := range strings.SplitSeq(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				writeJSON(w, http.StatusBadRequest, errorBody("unknown status "+strconv.Quote(part)))
				return
			}
			statuses = append(statuses, status)
		}
	}
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	items, err := s.svc.List(r.Context(), api.ListQuery{
		Channel:  strings.TrimSpace(query.Get("channel")),
		Statuses: statuses,
		Limit:    limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.JobListResponse{Items: items})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Describe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.JobResponse{Item: *job})
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.Release(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.JobResponse{Item: *job})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context(), strings.TrimSpace(r.URL.Query().Get("channel")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeError maps queue errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, queue.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, queue.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, queue.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, queue.ErrConnectionNotReady):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
		)
	}
	writeJSON(w, status, errorBody(err.Error()))
}
