package storage

import (
	"context"
	"errors"
	"strings"

	"chainnotes/internal/application"
	"chainnotes/internal/domain"
	"chainnotes/internal/infrastructure/mysql"
	"chainnotes/internal/infrastructure/sqlite"
)

// Repository is the document store behind both services.
type Repository interface {
	application.SnapshotRepository
	application.LabelRepository
	GetSnapshot(ctx context.Context, userID, address string) (domain.TransactionSnapshot, bool, error)
	SnapshotCount(ctx context.Context, userID, address string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Repository = (*mysql.Repository)(nil)
	_ Repository = (*sqlite.Repository)(nil)
)

// Open picks the backend from the DSN. "sqlite:" and "file:" prefixes select
// the embedded SQLite store; anything else is handed to the MySQL driver.
func Open(dsn string) (Repository, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return sqlite.NewRepository(path)
	}
	if strings.HasPrefix(dsn, "file:") {
		return sqlite.NewRepository(dsn)
	}
	return mysql.NewRepository(dsn)
}

// Backend names the store behind repo, for logs.
func Backend(repo Repository) string {
	switch r := repo.(type) {
	case *CachedRepository:
		if !r.Enabled() {
			return Backend(r.Repository)
		}
		return Backend(r.Repository) + "+redis"
	case *sqlite.Repository:
		return "sqlite"
	case *mysql.Repository:
		return "mysql"
	default:
		return "unknown"
	}
}
