package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"threaded_messaging/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresStore struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
	log  logger.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, log logger.Logger) Store {
	return &postgresStore{pool: pool, db: pool, log: log}
}

func (s *postgresStore) Users() UserRepository {
	return &userRepository{db: s.db, log: s.log}
}

func (s *postgresStore) Messages() MessageRepository {
	return &messageRepository{db: s.db, log: s.log}
}

func (s *postgresStore) Histories() HistoryRepository {
	return &historyRepository{db: s.db, log: s.log}
}

func (s *postgresStore) Notifications() NotificationRepository {
	return &notificationRepository{db: s.db, log: s.log}
}

func (s *postgresStore) Audit() AuditRepository {
	return &auditRepository{db: s.db, log: s.log}
}

func (s *postgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		s.log.Error("Failed to begin transaction", "error", err)
		return fmt.Errorf("begin transaction: %w", err)
	}
	// no-op once committed
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&postgresStore{pool: s.pool, db: tx, inTx: true, log: s.log}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.log.Error("Failed to commit transaction", "error", err)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Migrate creates the schema when it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	// 23505 = unique_violation
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	// 23503 = foreign_key_violation
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
