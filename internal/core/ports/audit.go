package ports

import (
	"context"

	"github.com/esig/task-manager/internal/core/domain"
)

// AuditRecorder accepts audit events without blocking the caller.
type AuditRecorder interface {
	Record(event domain.AuditEvent)
}

// AuditRepository stores audit events.
type AuditRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) error
}
