package memory

import (
	"context"
	"slices"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"

	"github.com/google/uuid"
)

type table[T any] struct {
	rows map[uuid.UUID]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[uuid.UUID]T)}
}

// schema описывает сущность для обобщённого Store.
type schema[T, F, K any] struct {
	entity  string
	id      func(T) uuid.UUID
	match   func(F, T) bool
	compare func(K, T, T) int
	clone   func(T) T
	project func(T, store.Include) T
	// keep объединяет новую версию со старой при Update (например, не загруженные участники).
	keep func(updated, current T) T
}

// Store обобщённая реализация store.Store поверх таблицы в памяти.
type Store[T, F, K any] struct {
	db     *DB
	tbl    *table[T]
	schema schema[T, F, K]
}

var (
	_ store.MessageStore = (*Store[domain.Message, store.MessageFilter, store.MessageSortKey])(nil)
	_ store.RoomStore    = (*Store[domain.Room, store.RoomFilter, store.RoomSortKey])(nil)
	_ store.TxManager    = (*DB)(nil)
)

func (s *Store[T, F, K]) Add(ctx context.Context, e T) (T, error) {
	var zero T
	id := s.schema.id(e)
	err := s.db.write(ctx, func(onUndo func(func())) error {
		if _, ok := s.tbl.rows[id]; ok {
			return &domain.ConflictError{Reason: s.schema.entity + " " + id.String() + " already exists"}
		}
		s.tbl.rows[id] = s.schema.clone(e)
		onUndo(func() { delete(s.tbl.rows, id) })
		return nil
	})
	if err != nil {
		return zero, err
	}
	return s.schema.clone(e), nil
}

func (s *Store[T, F, K]) GetByID(ctx context.Context, id uuid.UUID, inc store.Include) (T, error) {
	var out T
	err := s.db.read(ctx, func() error {
		row, ok := s.tbl.rows[id]
		if !ok {
			return domain.NewNotFound(s.schema.entity, id)
		}
		out = s.schema.project(s.schema.clone(row), inc)
		return nil
	})
	return out, err
}

func (s *Store[T, F, K]) GetOne(ctx context.Context, filters []F, inc store.Include) (T, error) {
	var out T
	err := s.db.read(ctx, func() error {
		rows := s.filtered(filters, nil)
		if len(rows) == 0 {
			return &domain.NotFoundError{Entity: s.schema.entity}
		}
		out = s.schema.project(s.schema.clone(rows[0]), inc)
		return nil
	})
	return out, err
}

func (s *Store[T, F, K]) GetPage(ctx context.Context, q store.Query[F, K]) (domain.PagedResult[T], error) {
	pageIndex, pageSize := domain.NormalizePage(q.PageIndex, q.PageSize)
	var out domain.PagedResult[T]
	err := s.db.read(ctx, func() error {
		rows := s.filtered(q.Filters, q.OrderBy)
		total := len(rows)

		start := min((pageIndex-1)*pageSize, total)
		end := min(start+pageSize, total)
		items := make([]T, 0, end-start)
		for _, r := range rows[start:end] {
			items = append(items, s.schema.project(s.schema.clone(r), q.Include))
		}
		out = domain.NewPagedResult(items, pageIndex, pageSize, total)
		return nil
	})
	return out, err
}

func (s *Store[T, F, K]) Count(ctx context.Context, filters []F) (int, error) {
	var n int
	err := s.db.read(ctx, func() error {
		for _, r := range s.tbl.rows {
			if s.matches(filters, r) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store[T, F, K]) Update(ctx context.Context, e T) error {
	id := s.schema.id(e)
	return s.db.write(ctx, func(onUndo func(func())) error {
		cur, ok := s.tbl.rows[id]
		if !ok {
			return domain.NewNotFound(s.schema.entity, id)
		}
		next := s.schema.clone(e)
		if s.schema.keep != nil {
			next = s.schema.keep(next, cur)
		}
		s.tbl.rows[id] = next
		onUndo(func() { s.tbl.rows[id] = cur })
		return nil
	})
}

func (s *Store[T, F, K]) Delete(ctx context.Context, e T) error {
	id := s.schema.id(e)
	return s.db.write(ctx, func(onUndo func(func())) error {
		cur, ok := s.tbl.rows[id]
		if !ok {
			return domain.NewNotFound(s.schema.entity, id)
		}
		delete(s.tbl.rows, id)
		onUndo(func() { s.tbl.rows[id] = cur })
		return nil
	})
}

func (s *Store[T, F, K]) DeleteWhere(ctx context.Context, filters []F) (int, error) {
	var n int
	err := s.db.write(ctx, func(onUndo func(func())) error {
		for id, r := range s.tbl.rows {
			if !s.matches(filters, r) {
				continue
			}
			delete(s.tbl.rows, id)
			onUndo(func() { s.tbl.rows[id] = r })
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store[T, F, K]) matches(filters []F, row T) bool {
	for _, f := range filters {
		if !s.schema.match(f, row) {
			return false
		}
	}
	return true
}

// filtered вызывается под замком. Первичный ключ всегда последний критерий сортировки.
func (s *Store[T, F, K]) filtered(filters []F, order []store.Order[K]) []T {
	rows := make([]T, 0, len(s.tbl.rows))
	for _, r := range s.tbl.rows {
		if s.matches(filters, r) {
			rows = append(rows, r)
		}
	}
	slices.SortFunc(rows, func(a, b T) int {
		for _, o := range order {
			c := s.schema.compare(o.Key, a, b)
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return store.CompareIDs(s.schema.id(a), s.schema.id(b))
	})
	return rows
}
