package pgx

import (
	"context"
	"fmt"

	"github.com/ctxeco/backend/pkg/common"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// DBStorage implements the store.Storage interface on PostgreSQL.
// Keyword search runs on generated tsvector columns, vector similarity
// on pgvector, and graph entity matching on pg_trgm. The caller's
// access predicate is composed into every read that returns
// caller-visible rows.
type DBStorage struct {
	conn pgxIConn
}

// NewDBStorage creates a DBStorage on an existing connection or pool.
func NewDBStorage(conn pgxIConn) *DBStorage {
	return &DBStorage{conn: conn}
}

// Ping verifies that the database answers queries.
func (s *DBStorage) Ping(ctx context.Context) error {
	var one int
	if err := s.conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("%w: database unreachable: %v", common.ErrDependencyUnavailable, err)
	}
	return nil
}
