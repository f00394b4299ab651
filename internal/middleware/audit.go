package middleware

import (
	"context"
	"net/http"
	"time"

	"fairtix/internal/audit"
	"fairtix/internal/domain"
	"fairtix/pkg/logger"
)

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, req audit.RecordRequest) (*domain.AuditLogEntry, error)
}

// AuditMiddleware records every request it wraps, e.g. the admin routes.
type AuditMiddleware struct {
	recorder AuditRecorder
	logger   logger.Logger
	async    bool
}

// NewAuditMiddleware writes entries in the background so a slow audit
// store does not delay the response.
func NewAuditMiddleware(recorder AuditRecorder, log logger.Logger) *AuditMiddleware {
	return &AuditMiddleware{recorder: recorder, logger: log, async: true}
}

// Audit records the request once the handler has finished.
func (m *AuditMiddleware) Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		req := audit.RecordRequest{
			Action: audit.ActionAdminRequest,
			Metadata: domain.Metadata{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrapped.statusCode,
				"request_id": RequestIDFromContext(r.Context()),
			},
		}
		if userID, ok := UserIDFromContext(r.Context()); ok {
			req.ActorID = &userID
		}
		ip := ClientIP(r)
		req.IPAddress = &ip

		if !m.async {
			m.record(req)
			return
		}
		go m.record(req)
	})
}

func (m *AuditMiddleware) record(req audit.RecordRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := m.recorder.Record(ctx, req); err != nil {
		m.logger.Error("Failed to create audit log", map[string]interface{}{
			"error": err,
			"path":  req.Metadata["path"],
		})
	}
}
