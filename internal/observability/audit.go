package observability

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/codelet/internal/tracing"
)

// AuditKind groups audit records by what produced them
type AuditKind string

const (
	AuditControl AuditKind = "control"
	AuditTool    AuditKind = "tool"
	AuditConfig  AuditKind = "config"
)

// AuditEvent is one line of the audit trail
type AuditEvent struct {
	Kind      AuditKind
	Time      time.Time
	SessionID string
	Action    string
	Result    string
	TraceID   string
	Fields    map[string]interface{}
}

// AuditLog writes audit events as JSON lines
type AuditLog struct {
	mu     sync.Mutex
	logger zerolog.Logger
	file   *os.File
}

var (
	auditMu  sync.RWMutex
	auditLog *AuditLog
)

// current falls back to the global logger until OpenAuditLog succeeds
func current() *AuditLog {
	auditMu.RLock()
	a := auditLog
	auditMu.RUnlock()
	if a != nil {
		return a
	}
	return &AuditLog{logger: log.Logger.With().Str("component", "audit").Logger()}
}

// OpenAuditLog appends audit events to the file at path, replacing any
// previously opened log.
func OpenAuditLog(path string) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	auditMu.Lock()
	prev := auditLog
	auditLog = &AuditLog{
		logger: zerolog.New(file).With().Timestamp().Logger(),
		file:   file,
	}
	auditMu.Unlock()

	if prev != nil {
		_ = prev.close()
	}
	return nil
}

// CloseAuditLog closes the audit file; later events go to the global logger
func CloseAuditLog() error {
	auditMu.Lock()
	prev := auditLog
	auditLog = nil
	auditMu.Unlock()
	if prev == nil {
		return nil
	}
	return prev.close()
}

// Record writes event and mirrors it onto the active span, if any
func (a *AuditLog) Record(ctx context.Context, event AuditEvent) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	if event.TraceID == "" {
		event.TraceID = tracing.GetTraceID(ctx)
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		if event.TraceID == "" {
			event.TraceID = span.SpanContext().TraceID().String()
		}
		span.AddEvent("audit."+string(event.Kind), trace.WithAttributes(
			attribute.String("audit.action", event.Action),
			attribute.String("audit.result", event.Result),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Time("at", event.Time).
		Str("kind", string(event.Kind)).
		Str("action", event.Action).
		Str("result", event.Result)
	if event.SessionID != "" {
		entry = entry.Str("session_id", event.SessionID)
	}
	if event.TraceID != "" {
		entry = entry.Str("trace_id", event.TraceID)
	}
	if len(event.Fields) > 0 {
		entry = entry.Fields(event.Fields)
	}
	entry.Send()
}

func (a *AuditLog) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// RecordControlAudit records a control operation on a session. A failed
// operation is stored with result "error" and its message.
func RecordControlAudit(ctx context.Context, op, sessionID string, err error, fields map[string]interface{}) {
	result := "ok"
	if err != nil {
		result = "error"
		merged := make(map[string]interface{}, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged["error"] = err.Error()
		fields = merged
	}
	current().Record(ctx, AuditEvent{
		Kind:      AuditControl,
		SessionID: sessionID,
		Action:    op,
		Result:    result,
		Fields:    fields,
	})
}

// RecordToolAudit records a finished tool call with its outcome
func RecordToolAudit(ctx context.Context, toolName, sessionID, outcome string, fields map[string]interface{}) {
	current().Record(ctx, AuditEvent{
		Kind:      AuditTool,
		SessionID: sessionID,
		Action:    toolName,
		Result:    outcome,
		Fields:    fields,
	})
}

// RecordConfigAudit records a configuration change
func RecordConfigAudit(ctx context.Context, action string, fields map[string]interface{}) {
	current().Record(ctx, AuditEvent{
		Kind:   AuditConfig,
		Action: action,
		Result: "ok",
		Fields: fields,
	})
}
