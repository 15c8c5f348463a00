// Package memory хранилище в памяти процесса: для тестов и storage.driver=memory.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"
)

var errTxDone = errors.New("memory: transaction already finished")

// DB общий замок для всех таблиц. Транзакция держит его на запись до Commit/Rollback,
// операции с контекстом транзакции замок повторно не берут.
type DB struct {
	mu       sync.RWMutex
	messages *table[domain.Message]
	rooms    *table[domain.Room]
}

func NewDB() *DB {
	return &DB{
		messages: newTable[domain.Message](),
		rooms:    newTable[domain.Room](),
	}
}

type txKey struct{}

type memTx struct {
	db   *DB
	undo []func()
	done bool
}

func (db *DB) txFrom(ctx context.Context) *memTx {
	tx, ok := ctx.Value(txKey{}).(*memTx)
	if !ok || tx.db != db || tx.done {
		return nil
	}
	return tx
}

// Begin реализует store.TxManager.
func (db *DB) Begin(ctx context.Context) (context.Context, store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return ctx, nil, err
	}
	if db.txFrom(ctx) != nil {
		return ctx, store.NopTx{}, nil
	}
	db.mu.Lock()
	tx := &memTx{db: db}
	return context.WithValue(ctx, txKey{}, tx), tx, nil
}

func (tx *memTx) Commit(context.Context) error {
	if tx.done {
		return errTxDone
	}
	tx.done = true
	tx.undo = nil
	tx.db.mu.Unlock()
	return nil
}

func (tx *memTx) Rollback(context.Context) error {
	if tx.done {
		return nil
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.done = true
	tx.undo = nil
	tx.db.mu.Unlock()
	return nil
}

// read выполняет fn под замком на чтение, если вызов не внутри транзакции.
func (db *DB) read(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if db.txFrom(ctx) != nil {
		return fn()
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn()
}

// write передаёт в fn функцию регистрации отката; вне транзакции откат не нужен.
func (db *DB) write(ctx context.Context, fn func(onUndo func(func())) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx := db.txFrom(ctx); tx != nil {
		return fn(func(u func()) { tx.undo = append(tx.undo, u) })
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(func(func()) {})
}
