package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageStore struct {
	db *pgxpool.Pool
}

func NewMessageStore(db *pgxpool.Pool) *MessageStore {
	return &MessageStore{db: db}
}

var _ store.MessageStore = (*MessageStore)(nil)

func messageWhere(filters []store.MessageFilter) sq.And {
	and := sq.And{}
	for _, f := range filters {
		if len(f.IDs) > 0 {
			and = append(and, sq.Eq{"id": f.IDs})
		}
		if f.SenderID != nil {
			and = append(and, sq.Eq{"sender_id": *f.SenderID})
		}
		if f.NotSenderID != nil {
			and = append(and, sq.NotEq{"sender_id": *f.NotSenderID})
		}
		if f.ReceiverID != nil {
			and = append(and, sq.Eq{"receiver_id": *f.ReceiverID})
		}
		if f.ChatRoomID != nil {
			and = append(and, sq.Eq{"chat_room_id": *f.ChatRoomID})
		}
		if f.IsRead != nil {
			and = append(and, sq.Eq{"is_read": *f.IsRead})
		}
		if f.Direct != nil {
			if *f.Direct {
				and = append(and, sq.NotEq{"receiver_id": nil})
			} else {
				and = append(and, sq.NotEq{"chat_room_id": nil})
			}
		}
		if f.Between != nil {
			and = append(and, sq.Or{
				sq.Eq{"sender_id": f.Between.A, "receiver_id": f.Between.B},
				sq.Eq{"sender_id": f.Between.B, "receiver_id": f.Between.A},
			})
		}
		if f.Involving != nil {
			and = append(and,
				sq.NotEq{"receiver_id": nil},
				sq.Or{sq.Eq{"sender_id": *f.Involving}, sq.Eq{"receiver_id": *f.Involving}},
			)
		}
	}
	return and
}

func messageOrder(order []store.Order[store.MessageSortKey]) []string {
	out := make([]string, 0, len(order)+1)
	for _, o := range order {
		col := "id"
		switch o.Key {
		case store.MessageByTimestamp:
			col = "sent_at"
		case store.MessageBySender:
			col = "sender_id"
		}
		out = append(out, orderClause(col, o.Desc))
	}
	return append(out, "id ASC")
}

func scanMessage(row pgx.CollectableRow) (domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ChatRoomID, &m.Content, &m.Timestamp, &m.IsRead)
	return m, err
}

func (s *MessageStore) Add(ctx context.Context, m domain.Message) (domain.Message, error) {
	b := psql.Insert(tableMessages).
		Columns(messageColumns...).
		Values(m.ID, m.SenderID, m.ReceiverID, m.ChatRoomID, m.Content, m.Timestamp, m.IsRead)
	if _, err := exec(ctx, conn(ctx, s.db), "messages.add", b); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

func (s *MessageStore) GetByID(ctx context.Context, id uuid.UUID, inc store.Include) (domain.Message, error) {
	m, err := s.GetOne(ctx, []store.MessageFilter{store.MessageIDs(id)}, inc)
	if errors.Is(err, domain.ErrNotFound) {
		return m, domain.NewNotFound("message", id)
	}
	return m, err
}

func (s *MessageStore) GetOne(ctx context.Context, filters []store.MessageFilter, _ store.Include) (domain.Message, error) {
	b := psql.Select(messageColumns...).From(tableMessages).
		Where(messageWhere(filters)).
		OrderBy("id ASC").
		Limit(1)
	items, err := selectRows(ctx, conn(ctx, s.db), "messages.get_one", b, scanMessage)
	if err != nil {
		return domain.Message{}, err
	}
	if len(items) == 0 {
		return domain.Message{}, &domain.NotFoundError{Entity: "message"}
	}
	return items[0], nil
}

func (s *MessageStore) GetPage(ctx context.Context, q store.MessageQuery) (domain.PagedResult[domain.Message], error) {
	pageIndex, pageSize, offset, limit := pageBounds(q.PageIndex, q.PageSize)
	where := messageWhere(q.Filters)
	db := conn(ctx, s.db)

	total, err := count(ctx, db, "messages.count", psql.Select("COUNT(*)").From(tableMessages).Where(where))
	if err != nil {
		return domain.PagedResult[domain.Message]{}, err
	}

	b := psql.Select(messageColumns...).From(tableMessages).
		Where(where).
		OrderBy(messageOrder(q.OrderBy)...).
		Offset(offset).
		Limit(limit)
	items, err := selectRows(ctx, db, "messages.page", b, scanMessage)
	if err != nil {
		return domain.PagedResult[domain.Message]{}, err
	}

	return domain.NewPagedResult(items, pageIndex, pageSize, total), nil
}

func (s *MessageStore) Count(ctx context.Context, filters []store.MessageFilter) (int, error) {
	return count(ctx, conn(ctx, s.db), "messages.count",
		psql.Select("COUNT(*)").From(tableMessages).Where(messageWhere(filters)))
}

// Update меняет только is_read: сообщения неизменяемы после создания.
func (s *MessageStore) Update(ctx context.Context, m domain.Message) error {
	n, err := exec(ctx, conn(ctx, s.db), "messages.update",
		psql.Update(tableMessages).Set("is_read", m.IsRead).Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("message", m.ID)
	}
	return nil
}

func (s *MessageStore) Delete(ctx context.Context, m domain.Message) error {
	n, err := exec(ctx, conn(ctx, s.db), "messages.delete",
		psql.Delete(tableMessages).Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("message", m.ID)
	}
	return nil
}

func (s *MessageStore) DeleteWhere(ctx context.Context, filters []store.MessageFilter) (int, error) {
	n, err := exec(ctx, conn(ctx, s.db), "messages.delete_where",
		psql.Delete(tableMessages).Where(messageWhere(filters)))
	return int(n), err
}
