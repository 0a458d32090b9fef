package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ari/api/schemas"
	"github.com/xkilldash9x/ari/internal/admin"
	"github.com/xkilldash9x/ari/internal/assessment"
	"github.com/xkilldash9x/ari/internal/download"
	"github.com/xkilldash9x/ari/internal/observability"
	"github.com/xkilldash9x/ari/internal/report"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const maxBodyBytes = 64 << 10

const internalErrorMessage = "An internal error occurred."

type errorBody struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// statusForError maps service errors to an HTTP status and the message shown
// to the client. Unknown errors are 500 with a generic message.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, assessment.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found. Please restart the assessment."
	case errors.Is(err, assessment.ErrInvalidAction):
		return http.StatusBadRequest, "Invalid action."
	case errors.Is(err, assessment.ErrMalformedAnswerPayload),
		errors.Is(err, assessment.ErrActionNotAllowed),
		errors.Is(err, assessment.ErrNoHistoryAvailable):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, download.ErrExpired):
		return http.StatusGone, "Download link has expired (24 hours). Please retake the assessment to get a new report."
	case errors.Is(err, download.ErrExpiredOrInvalid):
		return http.StatusNotFound, "Download link expired or invalid. Please request a new profile report."
	case errors.Is(err, download.ErrInvalidArchetype):
		return http.StatusBadRequest, "Invalid archetype in download token"
	case errors.Is(err, download.ErrReportNotFound):
		return http.StatusNotFound, "PDF report not found. Please contact support."
	case errors.Is(err, report.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, admin.ErrMissingParameter):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

// -- Responses --

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observability.FromContext(r.Context(), nil).Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, errorBody{Status: "error", Error: message})
}

// respondWithServiceError logs err and answers with its mapped status.
func (s *Server) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusForError(err)
	log := observability.FromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Error(err))
	} else {
		log.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondWithError(w, r, status, message)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
}

// -- Handlers --

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	var req schemas.AssessmentRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}
	resp, err := s.deps.Assessments.Handle(r.Context(), req)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleSendReport(w http.ResponseWriter, r *http.Request) {
	var req schemas.ReportRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondWithError(w, r, http.StatusBadRequest, "Invalid request body.")
		return
	}
	resp, err := s.deps.Reports.Send(r.Context(), req)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.respondWithError(w, r, http.StatusBadRequest, "Download token required")
		return
	}
	d, err := s.deps.Downloads.Resolve(r.Context(), token, r.UserAgent())
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	defer d.Body.Close()

	h := w.Header()
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Disposition", `inline; filename="`+d.Filename+`"`)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, d.Body); err != nil {
		observability.FromContext(r.Context(), s.logger).Warn("PDF stream interrupted", zap.Error(err))
	}
}

func (s *Server) handleManageData(w http.ResponseWriter, r *http.Request) {
	if s.deps.Admin == nil || !admin.Authorized(r.Header.Get("Authorization"), s.deps.AdminKey) {
		s.respondWithError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	q := r.URL.Query()
	ctx := r.Context()
	svc := s.deps.Admin

	switch action := q.Get("action"); action {
	case "list":
		res, err := svc.List(ctx, q.Get("pattern"))
		if err != nil {
			s.respondWithServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, res)

	case "delete":
		key := q.Get("key")
		if err := svc.Delete(ctx, key); err != nil {
			s.respondWithServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{
			"success": true,
			"message": "Deleted key: " + key,
		})

	case "delete-pattern":
		pattern := q.Get("pattern")
		n, err := svc.DeletePattern(ctx, pattern)
		if err != nil {
			s.respondWithServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]any{
			"success":      true,
			"message":      "Deleted keys matching pattern: " + pattern,
			"deletedCount": n,
		})

	case "export":
		s.exportData(w, r, q.Get("pattern"), strings.ToLower(q.Get("format")))

	case "stats":
		st, err := svc.Stats(ctx)
		if err != nil {
			s.respondWithServiceError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, st)

	default:
		writeJSON(w, r, http.StatusOK, admin.Usage())
	}
}

func (s *Server) exportData(w http.ResponseWriter, r *http.Request, pattern, format string) {
	records, err := s.deps.Admin.Export(r.Context(), pattern)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}
	if format != "csv" {
		format = "json"
	}
	filename := admin.ExportFilename(s.now(), format)

	write := admin.WriteJSON
	contentType := "application/json"
	if format == "csv" {
		write = admin.WriteCSV
		contentType = "text/csv; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if err := write(w, records); err != nil {
		observability.FromContext(r.Context(), s.logger).Warn("Export write failed", zap.Error(err))
	}
}
