package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the trace id between clients, the API and its logs.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 64

// CorrelationID tags each request with a trace id. A caller-supplied id is
// reused only when it is short and made of safe characters, so it can be
// written to logs and audit metadata verbatim.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(RequestIDHeader)
		if !validTraceID(traceID) {
			traceID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, traceID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxTraceIDKey, traceID)))
	})
}

// RequestIDFromContext returns the trace id, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(ctxTraceIDKey).(string)
	return traceID
}

func validTraceID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}
