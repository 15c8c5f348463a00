package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

/*
абстрактный слой над *pgxpool.Pool / pgx.Tx,
транзакция едет в контексте, чтобы несколько Store писали атомарно
*/
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type txKey struct{}

// TxManager реализует store.TxManager поверх пула.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

var _ store.TxManager = (*TxManager)(nil)

func (m *TxManager) Begin(ctx context.Context) (context.Context, store.Tx, error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return ctx, store.NopTx{}, nil
	}
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, txKey{}, tx), tx, nil
}

func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// inTx выполняет fn в текущей транзакции или открывает новую.
func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(q querier) error) error {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(tx)
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

func mapPgError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &domain.ConflictError{Reason: pgErr.ConstraintName}
		case "23503": // foreign_key_violation
			return &domain.NotFoundError{Entity: "room"}
		}
	}

	return domain.WrapStorage(op, err)
}

func exec(ctx context.Context, q querier, op string, b sq.Sqlizer) (int64, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return 0, domain.WrapStorage(op, err)
	}
	tag, err := q.Exec(ctx, sqlStr, args...)
	if err != nil {
		return 0, mapPgError(op, err)
	}
	return tag.RowsAffected(), nil
}

func count(ctx context.Context, q querier, op string, b sq.SelectBuilder) (int, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return 0, domain.WrapStorage(op, err)
	}
	var n int
	if err := q.QueryRow(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, mapPgError(op, err)
	}
	return n, nil
}

func selectRows[T any](ctx context.Context, q querier, op string, b sq.SelectBuilder, scan func(pgx.CollectableRow) (T, error)) ([]T, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return nil, domain.WrapStorage(op, err)
	}
	rows, err := q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapPgError(op, err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, mapPgError(op, err)
	}
	return out, nil
}

func pageBounds(pageIndex, pageSize int) (int, int, uint64, uint64) {
	pageIndex, pageSize = domain.NormalizePage(pageIndex, pageSize)
	return pageIndex, pageSize, uint64((pageIndex - 1) * pageSize), uint64(pageSize)
}

func orderClause(column string, desc bool) string {
	if desc {
		return column + " DESC"
	}
	return column + " ASC"
}
