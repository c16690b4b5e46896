package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/franckalain/cropguard/internal/alerts"
	"github.com/franckalain/cropguard/internal/analytics"
	"github.com/franckalain/cropguard/internal/apperrors"
	"github.com/franckalain/cropguard/internal/export"
	"github.com/franckalain/cropguard/internal/outbreaks"
	"github.com/franckalain/cropguard/internal/projector"
	"github.com/franckalain/cropguard/internal/report"
)

// Routes returns the HTTP handler for the websocket, REST API and static
// files.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebSocket)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(s.requestLogger)

		r.Get("/history", s.handleListHistory)
		r.Delete("/history", s.handleClearHistory)
		r.Get("/history/export.csv", s.handleExportCSV)
		r.Get("/history/export.parquet", s.handleExportParquet)
		r.Get("/history/{id}", s.handleGetScan)
		r.Delete("/history/{id}", s.handleDeleteScan)
		r.Get("/history/{id}/treatment", s.handleTreatment)
		r.Get("/history/{id}/report", s.handleReport)
		r.Get("/history/{id}/share", s.handleShare)

		r.Post("/scans", s.handleCreateScan)

		r.Get("/catalog", s.handleCatalog)
		r.Get("/catalog/{disease}", s.handleCatalogEntry)

		r.Get("/alerts", s.handleAlerts)
		r.Get("/alerts/critical", s.handleLatestCritical)
		r.Get("/analytics", s.handleAnalytics)

		r.Get("/community", s.handleListPosts)
		r.Post("/community", s.handleCreatePost)
		r.Get("/outbreaks", s.handleListOutbreaks)
		r.Post("/outbreaks", s.handleCreateOutbreak)
	})

	r.Handle("/*", http.FileServer(http.Dir(s.staticDir)))
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Unable to encode JSON response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if appErr, ok := apperrors.As(err); ok {
		appErr.Log(s.logger)
		switch appErr.Type {
		case apperrors.ErrTypeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrTypeValidation:
			status = http.StatusBadRequest
		case apperrors.ErrTypeStorage:
			status = http.StatusServiceUnavailable
		case apperrors.ErrTypeModel:
			status = http.StatusBadGateway
		}
	} else {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, apperrors.ToFrontendError(err))
}

func scanID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.ErrInvalidRequest.WithContext("id", raw)
	}
	return id, nil
}

func (s *Server) viewFor(r *http.Request) (*projector.View, error) {
	id, err := scanID(r)
	if err != nil {
		return nil, err
	}
	rec, err := s.history.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	v := s.projector.Project(*rec)
	return &v, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		s.logger.Warn("Unable to write healthcheck", zap.Error(err))
	}
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.historyResponse(r.Context()))
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.broadcast("history_changed", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, err := scanID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec, err := s.history.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	id, err := scanID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.history.DeleteByID(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.broadcast("history_changed", nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTreatment(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.RenderHTML(&buf, *v, s.now()); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("Unable to write report", zap.Error(err))
	}
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	v, err := s.viewFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"text": report.ShareText(*v)})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, export.Rows(s.history.List(r.Context()), s.catalog)); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="scan-history.csv"`)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("Unable to write csv export", zap.Error(err))
	}
}

func (s *Server) handleExportParquet(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteParquet(&buf, export.Rows(s.history.List(r.Context()), s.catalog)); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="scan-history.parquet"`)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("Unable to write parquet export", zap.Error(err))
	}
}

func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.ErrInvalidRequest.Wrap(err))
		return
	}

	result, err := s.scan(r.Context(), req.Image)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Warning != nil {
		// Nothing was stored
		status = http.StatusOK
	}
	s.writeJSON(w, status, result)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.catalog.Labels())
}

func (s *Server) handleCatalogEntry(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "disease")
	entry, ok := s.catalog.Lookup(label)
	if !ok {
		s.writeError(w, apperrors.ErrUnknownDisease.WithContext("disease", label))
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.alerts.List(alerts.Filter{
		Crop:     q.Get("crop"),
		Severity: q.Get("severity"),
		Window:   q.Get("window"),
	})
	if err != nil {
		s.writeError(w, apperrors.ErrInvalidRequest.Wrap(err).WithContext("window", q.Get("window")))
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLatestCritical(w http.ResponseWriter, r *http.Request) {
	a, ok := s.alerts.LatestCritical()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, analytics.Summarize(s.history.List(r.Context()), s.now()))
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.community.Posts())
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.ErrInvalidRequest.Wrap(err))
		return
	}
	post, err := s.addPost(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleListOutbreaks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.writeJSON(w, http.StatusOK, s.outbreaks.List(outbreaks.Filter{
		Disease:  q.Get("disease"),
		Severity: q.Get("severity"),
	}))
}

func (s *Server) handleCreateOutbreak(w http.ResponseWriter, r *http.Request) {
	var req outbreaks.NewReport
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperrors.ErrInvalidRequest.Wrap(err))
		return
	}
	ob, err := s.addOutbreak(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ob)
}
