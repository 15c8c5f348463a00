// Package store описывает обобщённое хранилище с фильтрами, сортировкой и пагинацией.
// Реализации: internal/postgres (pgx + squirrel) и store/memory.
package store

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
)

type Include uint8

const (
	IncludeNone    Include = 0
	IncludeMembers Include = 1 << 0
	// IncludeForUpdate блокирует строку до конца транзакции (SELECT ... FOR UPDATE).
	// Нужен для чтения с последующей перезаписью состава участников.
	IncludeForUpdate Include = 1 << 1
)

func (i Include) Has(f Include) bool { return i&f != 0 }

type Order[K any] struct {
	Key  K
	Desc bool
}

func Asc[K any](k K) Order[K] { return Order[K]{Key: k} }

func Desc[K any](k K) Order[K] { return Order[K]{Key: k, Desc: true} }

// Query спецификация выборки. Фильтры объединяются через AND,
// без OrderBy сортировка по первичному ключу по возрастанию.
type Query[F, K any] struct {
	Filters   []F
	OrderBy   []Order[K]
	Include   Include
	PageIndex int
	PageSize  int
}

type Store[T, F, K any] interface {
	Add(ctx context.Context, e T) (T, error)
	GetByID(ctx context.Context, id uuid.UUID, inc Include) (T, error)
	GetOne(ctx context.Context, filters []F, inc Include) (T, error)
	GetPage(ctx context.Context, q Query[F, K]) (domain.PagedResult[T], error)
	Count(ctx context.Context, filters []F) (int, error)
	Update(ctx context.Context, e T) error
	Delete(ctx context.Context, e T) error
	DeleteWhere(ctx context.Context, filters []F) (int, error)
}

type (
	MessageStore = Store[domain.Message, MessageFilter, MessageSortKey]
	RoomStore    = Store[domain.Room, RoomFilter, RoomSortKey]
	MessageQuery = Query[MessageFilter, MessageSortKey]
	RoomQuery    = Query[RoomFilter, RoomSortKey]
)

// Tx единица работы. Commit фиксирует все изменения, сделанные с контекстом транзакции.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TxManager начинает транзакцию и возвращает контекст, который нужно передавать в Store.
// Вложенный Begin присоединяется к внешней транзакции.
type TxManager interface {
	Begin(ctx context.Context) (context.Context, Tx, error)
}

// WithinTx выполняет fn в транзакции: commit при nil, иначе rollback.
func WithinTx(ctx context.Context, m TxManager, fn func(ctx context.Context) error) (err error) {
	txCtx, tx, err := m.Begin(ctx)
	if err != nil {
		return domain.WrapStorage("tx.begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, domain.WrapStorage("tx.rollback", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.WrapStorage("tx.commit", err)
	}

	return nil
}

// NopTx для вложенных транзакций: фиксирует внешняя.
type NopTx struct{}

func (NopTx) Commit(context.Context) error   { return nil }
func (NopTx) Rollback(context.Context) error { return nil }
