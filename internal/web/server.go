package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/conorfennell/knolsched/internal/domain"
	"github.com/conorfennell/knolsched/internal/fsrs"
	"github.com/conorfennell/knolsched/internal/review"
	"github.com/conorfennell/knolsched/internal/storage"
	"github.com/conorfennell/knolsched/internal/sync"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	reviews  *review.Service
	reposDir string
	router   *http.ServeMux
	now      func() time.Time
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, reviews *review.Service, reposDir string) *Server {
	s := &Server{
		db:       db,
		reviews:  reviews,
		reposDir: reposDir,
		router:   http.NewServeMux(),
		now:      time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /deck", s.handleGetDeck())
	s.router.HandleFunc("GET /review/next", s.handleGetNextReview())
	s.router.HandleFunc("GET /review/{hash}/preview", s.handleGetPreview())
	s.router.HandleFunc("GET /review/{hash}/history", s.handleGetHistory())
	s.router.HandleFunc("POST /review/{hash}", s.handlePostReview())

	s.router.HandleFunc("GET /sources", s.handleGetSources())
	s.router.HandleFunc("POST /sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /sync", s.handlePostSync())
}

// handleGetDeck reports how many cards are due.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.reviews.DueCount(r.Context(), s.now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"due_count":     n,
			"has_due_cards": n > 0,
		})
	}
}

// handleGetNextReview returns the preview of the most overdue card, or 204
// when nothing is due.
func (s *Server) handleGetNextReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := s.now()
		next, err := s.reviews.Next(r.Context(), now)
		if errors.Is(err, review.ErrNothingDue) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := s.reviews.Preview(r.Context(), next.Hash, now)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleGetPreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := s.reviews.Preview(r.Context(), r.PathValue("hash"), s.now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) handleGetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := s.reviews.History(r.Context(), r.PathValue("hash"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if logs == nil {
			logs = []storage.ReviewRecord{}
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

// handlePostReview commits a rating given as a form field or JSON body.
// The rating is a name ("good") or a 1-4 keyboard number, never the 0-3
// ordinal. A missing rating is rejected rather than read as Again.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Rating *fsrs.Rating `json:"rating"`
		}
		if isJSON(r) {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, r, badRequest(err))
				return
			}
		} else if v := r.PostFormValue("rating"); v != "" {
			rating, err := fsrs.ParseRating(v)
			if err != nil {
				writeError(w, r, err)
				return
			}
			body.Rating = &rating
		}
		if body.Rating == nil {
			writeError(w, r, badRequest(errors.New("rating is required")))
			return
		}

		res, err := s.reviews.Answer(r.Context(), r.PathValue("hash"), *body.Rating, s.now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleGetSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeSources(w, r, http.StatusOK)
	}
}

// handlePostSource adds a new source and returns the updated source list.
func (s *Server) handlePostSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Path string `json:"path"`
		}
		if isJSON(r) {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, r, badRequest(err))
				return
			}
		} else {
			body.Path = r.PostFormValue("path")
		}
		if body.Path == "" {
			writeError(w, r, badRequest(errors.New("path cannot be empty")))
			return
		}

		if _, err := s.db.InsertSource(r.Context(), body.Path, domain.DetectSourceType(body.Path)); err != nil {
			writeError(w, r, err)
			return
		}
		s.writeSources(w, r, http.StatusCreated)
	}
}

// handleDeleteSource deletes a source and returns the updated source list.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, r, badRequest(errors.New("invalid source ID")))
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		s.writeSources(w, r, http.StatusOK)
	}
}

// handlePostSync runs a sync in the foreground and reports the result.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := sync.RunSync(r.Context(), s.db, s.reposDir, s.now())
		if err != nil {
			writeError(w, r, err)
			return
		}
		errs := make([]string, 0, len(report.Errors))
		for _, e := range report.Errors {
			errs = append(errs, e.Error())
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sources":  report.Sources,
			"parsed":   report.Parsed,
			"inserted": report.Inserted,
			"deleted":  report.Deleted,
			"errors":   errs,
		})
	}
}

func (s *Server) writeSources(w http.ResponseWriter, r *http.Request, status int) {
	sources, err := s.db.AllSources(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sources == nil {
		sources = []domain.Source{}
	}
	writeJSON(w, status, map[string]any{"sources": sources})
}

type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error { return badRequestError{err: err} }

func statusFor(err error) int {
	var br badRequestError
	switch {
	case errors.As(err, &br),
		errors.Is(err, fsrs.ErrInvalidRating),
		errors.Is(err, storage.ErrAmbiguous):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrExists):
		return http.StatusConflict
	case errors.Is(err, fsrs.ErrInvalidCard), errors.Is(err, fsrs.ErrInvalidState):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
