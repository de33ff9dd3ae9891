package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/esig/task-manager/internal/core/domain"
)

// AuditStore appends audit events to the audit_events table.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

func (s *AuditStore) Append(ctx context.Context, e domain.AuditEvent) error {
	const query = `INSERT INTO audit_events (type, actor, target, outcome, at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, query, string(e.Type), e.Actor, e.Target, e.Outcome, e.At.UTC()); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
