package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (al *Logger) LogAction(ctx context.Context, tenantID, subjectID, action, status, details string) {
	requestID := ""
	if reqID := ctx.Value("request_id"); reqID != nil {
		requestID = reqID.(string)
	}

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("tenant_id", tenantID),
		slog.String("subject_id", subjectID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

// LogIdentify records the outcome of an identify step. The identifier
// itself is never written; only tenant and outcome.
func (al *Logger) LogIdentify(ctx context.Context, tenantID, status string) {
	al.LogAction(ctx, tenantID, "", "identify", status, "")
}

// LogAmbiguousMatch records a both-directories match. This is a
// data-integrity fault in the upstream stores, logged at error level.
func (al *Logger) LogAmbiguousMatch(ctx context.Context, tenantID, staffSubjectID, customerSubjectID string) {
	al.logger.Error("audit",
		slog.String("action", "identify"),
		slog.String("status", "ambiguous_match"),
		slog.String("tenant_id", tenantID),
		slog.String("staff_subject_id", staffSubjectID),
		slog.String("customer_subject_id", customerSubjectID),
		slog.String("details", "identifier matched in both staff and customer directories"),
		slog.Time("timestamp", time.Now()),
	)
}

// LogCrossTenantRejection records a candidate rejected by the
// pre-issuance membership re-check.
func (al *Logger) LogCrossTenantRejection(ctx context.Context, tenantID, subjectID string) {
	al.LogAction(ctx, tenantID, subjectID, "authenticate", "cross_tenant_rejected", "membership re-check failed")
}

// LogSessionIssued records a successful login
func (al *Logger) LogSessionIssued(ctx context.Context, tenantID, subjectID, role string) {
	al.LogAction(ctx, tenantID, subjectID, "session_issued", "success", "role="+role)
}

// LogLogout records an explicit session deletion
func (al *Logger) LogLogout(ctx context.Context, tenantID, subjectID string) {
	al.LogAction(ctx, tenantID, subjectID, "logout", "success", "")
}
