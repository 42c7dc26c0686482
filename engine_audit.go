package authcore

import "context"

// emitAudit stamps event with the clock and request metadata and hands it
// to the dispatcher. It is a no-op when auditing is disabled.
func (e *Engine) emitAudit(ctx context.Context, event AuditEvent) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now().UTC()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if event.UserAgent == "" {
		event.UserAgent = userAgentFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

// AuditStats reports dispatcher counters.
func (e *Engine) AuditStats() (delivered, dropped uint64) {
	if e == nil {
		return 0, 0
	}
	s := e.audit.Stats()
	return s.Delivered, s.Dropped
}
