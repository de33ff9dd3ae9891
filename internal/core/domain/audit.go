package domain

import "time"

// AuditType names a security-relevant action.
type AuditType string

const (
	AuditLoginSucceeded AuditType = "login_succeeded"
	AuditLoginFailed    AuditType = "login_failed"
	AuditLoginThrottled AuditType = "login_throttled"
	AuditRegistered     AuditType = "account_registered"
	AuditAdminCreated   AuditType = "admin_created"
	AuditAccessDenied   AuditType = "access_denied"
	AuditTaskDeleted    AuditType = "task_deleted"
)

// AuditEvent is an append-only record of a security-relevant action.
type AuditEvent struct {
	Type    AuditType `json:"type"`
	Actor   string    `json:"actor"`
	Target  string    `json:"target,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	At      time.Time `json:"at"`
}
