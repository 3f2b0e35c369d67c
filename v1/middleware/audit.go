package middleware

import (
	"log/slog"
	"net/http"
)

// LogAudit records a write operation against a submission resource. Read
// operations are skipped; the log line is the audit trail for this
// deployment.
func LogAudit(r *http.Request, resource string, resourceID string, status string) {
	if !isWriteOperation(r.Method) {
		return
	}
	slog.Info("audit",
		"action", eventAction(r.Method),
		"resource", resource,
		"resourceId", resourceID,
		"status", status,
		"remoteAddr", r.RemoteAddr,
	)
}

func isWriteOperation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func eventAction(method string) string {
	switch method {
	case http.MethodPost:
		return "CREATE"
	case http.MethodPut, http.MethodPatch:
		return "UPDATE"
	case http.MethodDelete:
		return "DELETE"
	}
	return ""
}
