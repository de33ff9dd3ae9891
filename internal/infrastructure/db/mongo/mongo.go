package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/esig/task-manager/internal/core/ports"
)

const (
	defaultTimeout = 10 * time.Second
	appName        = "task-manager"
)

type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect opens a client, pings the primary and returns the task database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(cfg.Database), nil
}

// Repositories bundles the collections backing one database.
type Repositories struct {
	Accounts *AccountRepository
	Tasks    *TaskRepository
	Audit    ports.AuditRepository
}

// Open builds every repository over db and creates their indexes.
func Open(ctx context.Context, db *mongo.Database) (*Repositories, error) {
	repos := &Repositories{
		Accounts: NewAccountRepository(db),
		Tasks:    NewTaskRepository(db),
		Audit:    NewAuditRepository(db),
	}
	if err := repos.Accounts.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("account indexes: %w", err)
	}
	if err := repos.Tasks.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("task indexes: %w", err)
	}
	return repos, nil
}
