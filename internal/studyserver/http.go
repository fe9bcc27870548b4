package studyserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/anatolykoptev/go_studykit/internal/engine"
	"github.com/anatolykoptev/go_studykit/internal/engine/sources"
	"github.com/anatolykoptev/go_studykit/internal/engine/study"
	"github.com/anatolykoptev/go_studykit/internal/storage"
)

// maxRequestBytes bounds JSON request bodies; transcripts can be long.
const maxRequestBytes = 8 << 20

// Router returns the HTTP API.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/study/stream", s.handleStream).Methods(http.MethodPost)
	r.HandleFunc("/api/transcripts", s.handleAcquire).Methods(http.MethodPost)
	r.HandleFunc("/api/transcripts/{id}", s.handleGetTranscript).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return r
}

type errorBody struct {
	Error      string              `json:"error"`
	Rejections []sources.Rejection `json:"rejections,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v)
}

// handleStream validates the request up front and answers 400 before any
// stream starts; after that every outcome is an NDJSON event.
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	var req study.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kind, err := study.ParseKind(string(req.Feature))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.Feature = kind
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", study.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := s.deps.Generator.Stream(r.Context(), req, study.NewEncoder(w)); err != nil {
		slog.Warn("study stream ended with error",
			slog.String("feature", string(req.Feature)), slog.Any("error", err))
	}
}

type acquireRequest struct {
	URL             string  `json:"url"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	AnyLanguage     bool    `json:"any_language,omitempty"`
}

func (s *Service) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req acquireRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}

	t, rejections, err := s.acquire(r.Context(), req.URL, req.DurationSeconds, req.AnyLanguage)
	if err != nil {
		var exhausted *sources.ExhaustedError
		if errors.As(err, &exhausted) {
			writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Rejections: exhausted.Rejections})
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.save(r.Context(), req.URL, t)
	if err != nil {
		slog.Error("save transcript failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAcquireResult(t, id, rejections, true))
}

func (s *Service) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	rec, err := s.record(r.Context(), mux.Vars(r)["id"])
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "metrics": engine.GetMetrics()})
}
