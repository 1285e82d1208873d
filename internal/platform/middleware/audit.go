package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/edtriage/triage/internal/platform/auth"
)

// AuditEntry records who touched which patient data and how.
type AuditEntry struct {
	StaffID    string
	Role       string
	Resource   string
	PatientID  string
	Action     string
	Method     string
	Path       string
	IPAddress  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every /api/v1 request after it completes. A recorder, when
// given, also receives the entry; its failures are logged but never fail
// the request.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Resource:   extractResource(path),
				PatientID:  extractPatientID(c),
				Action:     httpMethodToAction(req.Method),
				Method:     req.Method,
				Path:       path,
				IPAddress:  c.RealIP(),
				StatusCode: c.Response().Status,
				Timestamp:  time.Now().UTC(),
			}
			if err != nil {
				entry.StatusCode, _ = Render(err)
			}
			if p, ok := auth.PrincipalFromContext(req.Context()); ok {
				entry.StaffID = p.StaffID.String()
				entry.Role = p.Role
			}
			entry.RequestID, _ = c.Get("request_id").(string)

			if recorder != nil {
				if recErr := recorder.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("staff_id", entry.StaffID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Int("status", entry.StatusCode).
				Msg("patient_data_access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource returns the first path segment after /api/v1/.
func extractResource(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/api/v1/"), "/")
	if seg == "" {
		return "unknown"
	}
	return seg
}

// extractPatientID finds a patient id in /api/v1/patients/<id> paths or in
// a patient_id query parameter.
func extractPatientID(c echo.Context) string {
	path := c.Request().URL.Path
	if rest, ok := strings.CutPrefix(path, "/api/v1/patients/"); ok {
		seg, _, _ := strings.Cut(rest, "/")
		if _, err := uuid.Parse(seg); err == nil {
			return seg
		}
	}
	if pid := c.QueryParam("patient_id"); pid != "" {
		if _, err := uuid.Parse(pid); err == nil {
			return pid
		}
	}
	return ""
}
