package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditOutcome classifies a login attempt in the audit log. The set mirrors
// the production login-log table: success, failed, locked, error.
type AuditOutcome string

const (
	// AuditSuccess records a granted login.
	AuditSuccess AuditOutcome = "success"
	// AuditFailed records a rejected login (unknown account, wrong password,
	// deactivated account). FailReason carries the internal distinction the
	// caller never sees.
	AuditFailed AuditOutcome = "failed"
	// AuditLocked records an attempt rejected by an active lockout, or the
	// failure that triggered one.
	AuditLocked AuditOutcome = "locked"
	// AuditError records an attempt aborted by a backend failure.
	AuditError AuditOutcome = "error"
)

// LoginAuditEntry is one append-only record per login attempt. AccountID is
// empty when the email did not resolve to an account.
type LoginAuditEntry struct {
	ID         string       `json:"id"`
	Timestamp  time.Time    `json:"timestamp"`
	AccountID  string       `json:"account_id,omitempty"`
	Email      string       `json:"email"`
	IP         string       `json:"ip,omitempty"`
	UserAgent  string       `json:"user_agent,omitempty"`
	Outcome    AuditOutcome `json:"outcome"`
	FailReason string       `json:"fail_reason,omitempty"`
}

// AuditSink receives login audit entries from the engine's dispatcher.
// Append must not block indefinitely; sink failures are the sink's own
// problem and never surface to login callers.
type AuditSink interface {
	Append(ctx context.Context, entry LoginAuditEntry)
}

// NoOpSink discards all entries.
type NoOpSink struct{}

// Append implements [AuditSink].
func (NoOpSink) Append(context.Context, LoginAuditEntry) {}

// ChannelSink buffers entries on a channel for consumption by application
// code, typically a database writer.
type ChannelSink struct {
	entries chan LoginAuditEntry
}

// NewChannelSink creates a ChannelSink with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		entries: make(chan LoginAuditEntry, buffer),
	}
}

// Append implements [AuditSink].
func (s *ChannelSink) Append(ctx context.Context, entry LoginAuditEntry) {
	select {
	case s.entries <- entry:
	case <-ctx.Done():
	}
}

// Entries exposes the receiving end of the sink.
func (s *ChannelSink) Entries() <-chan LoginAuditEntry {
	return s.entries
}

// JSONWriterSink writes one JSON object per line to w.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a JSONWriterSink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Append implements [AuditSink].
func (s *JSONWriterSink) Append(ctx context.Context, entry LoginAuditEntry) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
