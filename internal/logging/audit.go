// Package logging - audit.go writes the query audit trail.
// Audit events are JSON lines, one per line, so the trail can be grepped
// or fed to jq without a parser.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event
type AuditEventType string

const (
	AuditQueryReceived AuditEventType = "query_received"
	AuditIntentParsed  AuditEventType = "intent_parsed"
	AuditMemberMiss    AuditEventType = "member_not_found"
	AuditSourceFetch   AuditEventType = "source_fetch"
	AuditQueryAnswered AuditEventType = "query_answered"
	AuditCheckRun      AuditEventType = "connectivity_check"
)

// AuditEvent is one structured audit log entry.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	RequestID  string         `json:"req,omitempty"`
	Member     string         `json:"member,omitempty"`
	Intent     string         `json:"intent,omitempty"`
	Window     string         `json:"window,omitempty"`
	Source     string         `json:"source,omitempty"`
	Count      int            `json:"count,omitempty"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"msg,omitempty"`
}

var (
	auditFile *os.File
	auditMu   sync.Mutex
)

// InitAudit opens the audit trail file. No-op while logging is disabled.
func InitAudit() error {
	if !Enabled() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	optsMu.RLock()
	dir := opts.Dir
	optsMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(dir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	fmt.Fprintf(auditFile, "# Audit trail started at %s\n", time.Now().Format(time.RFC3339))
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// AuditLogger emits audit events scoped to one request.
type AuditLogger struct {
	requestID string
}

// AuditFor returns an audit logger scoped to the given request ID.
func AuditFor(requestID string) *AuditLogger {
	return &AuditLogger{requestID: requestID}
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RequestID == "" {
		event.RequestID = a.requestID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// QueryReceived records an incoming free-text query.
func (a *AuditLogger) QueryReceived(text string) {
	a.Log(AuditEvent{EventType: AuditQueryReceived, Success: true, Message: text})
}

// IntentParsed records a successful interpretation.
func (a *AuditLogger) IntentParsed(member, intent, window string, elapsed time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditIntentParsed,
		Member:     member,
		Intent:     intent,
		Window:     window,
		Success:    true,
		DurationMs: elapsed.Milliseconds(),
	})
}

// MemberNotFound records an interpretation failure.
func (a *AuditLogger) MemberNotFound(text string) {
	a.Log(AuditEvent{EventType: AuditMemberMiss, Success: false, Message: text})
}

// SourceFetch records one source call outcome.
func (a *AuditLogger) SourceFetch(source string, count int, elapsed time.Duration, err error) {
	ev := AuditEvent{
		EventType:  AuditSourceFetch,
		Source:     source,
		Count:      count,
		Success:    err == nil,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}

// QueryAnswered records the completed request.
func (a *AuditLogger) QueryAnswered(member string, elapsed time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditQueryAnswered,
		Member:     member,
		Success:    true,
		DurationMs: elapsed.Milliseconds(),
	})
}

// CheckRun records a connectivity check outcome.
func (a *AuditLogger) CheckRun(source string, err error) {
	ev := AuditEvent{EventType: AuditCheckRun, Source: source, Success: err == nil}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}
