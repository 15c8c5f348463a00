package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoomStore комнаты и их участники (chat_room_members). Сообщения комнаты удаляются каскадом по FK.
type RoomStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewRoomStore(db *pgxpool.Pool) *RoomStore {
	return &RoomStore{db: db, now: time.Now}
}

var _ store.RoomStore = (*RoomStore)(nil)

func roomWhere(filters []store.RoomFilter) sq.And {
	and := sq.And{}
	for _, f := range filters {
		if len(f.IDs) > 0 {
			and = append(and, sq.Eq{"chat_rooms.id": f.IDs})
		}
		if f.MemberID != nil {
			and = append(and, sq.Expr(queryMemberExists, *f.MemberID))
		}
		if f.NameContains != "" {
			and = append(and, sq.ILike{"chat_rooms.name": "%" + f.NameContains + "%"})
		}
	}
	return and
}

func roomOrder(order []store.Order[store.RoomSortKey]) []string {
	out := make([]string, 0, len(order)+1)
	for _, o := range order {
		col := "chat_rooms.id"
		switch o.Key {
		case store.RoomByName:
			col = "chat_rooms.name"
		case store.RoomByCreatedAt:
			col = "chat_rooms.created_at"
		}
		out = append(out, orderClause(col, o.Desc))
	}
	return append(out, "chat_rooms.id ASC")
}

func scanRoom(row pgx.CollectableRow) (domain.Room, error) {
	var r domain.Room
	err := row.Scan(&r.ID, &r.Name, &r.CreatedAt)
	return r, err
}

func selectRooms() sq.SelectBuilder {
	return psql.Select("chat_rooms.id", "chat_rooms.name", "chat_rooms.created_at").From(tableRooms)
}

// selectOneRoom с IncludeForUpdate берёт блокировку строки комнаты: параллельные
// изменения состава внутри транзакций выстраиваются в очередь.
func selectOneRoom(filters []store.RoomFilter, inc store.Include) sq.SelectBuilder {
	b := selectRooms().Where(roomWhere(filters)).OrderBy("chat_rooms.id ASC").Limit(1)
	if inc.Has(store.IncludeForUpdate) {
		b = b.Suffix("FOR UPDATE OF chat_rooms")
	}
	return b
}

func (s *RoomStore) Add(ctx context.Context, r domain.Room) (domain.Room, error) {
	err := inTx(ctx, s.db, func(q querier) error {
		if _, err := exec(ctx, q, "rooms.add", psql.Insert(tableRooms).
			Columns(roomColumns...).
			Values(r.ID, r.Name, r.CreatedAt)); err != nil {
			return err
		}
		return s.insertMembers(ctx, q, r.ID, r.Members)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return r, nil
}

func (s *RoomStore) insertMembers(ctx context.Context, q querier, roomID uuid.UUID, members []uuid.UUID) error {
	if len(members) == 0 {
		return nil
	}
	now := s.now().UTC()
	b := psql.Insert(tableMembers).Columns("room_id", "user_id", "joined_at")
	for _, id := range members {
		b = b.Values(roomID, id, now)
	}
	_, err := exec(ctx, q, "rooms.add_members", b.Suffix("ON CONFLICT DO NOTHING"))
	return err
}

func (s *RoomStore) GetByID(ctx context.Context, id uuid.UUID, inc store.Include) (domain.Room, error) {
	r, err := s.GetOne(ctx, []store.RoomFilter{store.RoomIDs(id)}, inc)
	if errors.Is(err, domain.ErrNotFound) {
		return r, domain.NewNotFound("room", id)
	}
	return r, err
}

func (s *RoomStore) GetOne(ctx context.Context, filters []store.RoomFilter, inc store.Include) (domain.Room, error) {
	db := conn(ctx, s.db)
	rooms, err := selectRows(ctx, db, "rooms.get_one", selectOneRoom(filters, inc), scanRoom)
	if err != nil {
		return domain.Room{}, err
	}
	if len(rooms) == 0 {
		return domain.Room{}, &domain.NotFoundError{Entity: "room"}
	}
	if inc.Has(store.IncludeMembers) {
		if err := s.loadMembers(ctx, db, rooms); err != nil {
			return domain.Room{}, err
		}
	}
	return rooms[0], nil
}

func (s *RoomStore) GetPage(ctx context.Context, q store.RoomQuery) (domain.PagedResult[domain.Room], error) {
	pageIndex, pageSize, offset, limit := pageBounds(q.PageIndex, q.PageSize)
	where := roomWhere(q.Filters)
	db := conn(ctx, s.db)

	total, err := count(ctx, db, "rooms.count", psql.Select("COUNT(*)").From(tableRooms).Where(where))
	if err != nil {
		return domain.PagedResult[domain.Room]{}, err
	}
	rooms, err := selectRows(ctx, db, "rooms.page",
		selectRooms().Where(where).OrderBy(roomOrder(q.OrderBy)...).Offset(offset).Limit(limit), scanRoom)
	if err != nil {
		return domain.PagedResult[domain.Room]{}, err
	}
	if q.Include.Has(store.IncludeMembers) {
		if err := s.loadMembers(ctx, db, rooms); err != nil {
			return domain.PagedResult[domain.Room]{}, err
		}
	}

	return domain.NewPagedResult(rooms, pageIndex, pageSize, total), nil
}

// loadMembers одним запросом на страницу комнат.
func (s *RoomStore) loadMembers(ctx context.Context, q querier, rooms []domain.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(rooms))
	idx := make(map[uuid.UUID]int, len(rooms))
	for i, r := range rooms {
		ids = append(ids, r.ID)
		idx[r.ID] = i
		rooms[i].Members = []uuid.UUID{}
	}
	members, err := selectRows(ctx, q, "rooms.members",
		psql.Select("room_id", "user_id").From(tableMembers).
			Where(sq.Eq{"room_id": ids}).
			OrderBy("joined_at ASC", "user_id ASC"),
		func(row pgx.CollectableRow) (domain.Membership, error) {
			var m domain.Membership
			err := row.Scan(&m.RoomID, &m.UserID)
			return m, err
		})
	if err != nil {
		return err
	}
	for _, m := range members {
		i := idx[m.RoomID]
		rooms[i].Members = append(rooms[i].Members, m.UserID)
	}
	return nil
}

func (s *RoomStore) Count(ctx context.Context, filters []store.RoomFilter) (int, error) {
	return count(ctx, conn(ctx, s.db), "rooms.count",
		psql.Select("COUNT(*)").From(tableRooms).Where(roomWhere(filters)))
}

// Update сохраняет имя; если Members != nil, состав участников приводится к Members.
func (s *RoomStore) Update(ctx context.Context, r domain.Room) error {
	return inTx(ctx, s.db, func(q querier) error {
		n, err := exec(ctx, q, "rooms.update",
			psql.Update(tableRooms).Set("name", r.Name).Where(sq.Eq{"id": r.ID}))
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NewNotFound("room", r.ID)
		}
		if r.Members == nil {
			return nil
		}

		del := psql.Delete(tableMembers).Where(sq.Eq{"room_id": r.ID})
		if len(r.Members) > 0 {
			del = del.Where(sq.NotEq{"user_id": r.Members})
		}
		if _, err := exec(ctx, q, "rooms.remove_members", del); err != nil {
			return err
		}
		return s.insertMembers(ctx, q, r.ID, r.Members)
	})
}

func (s *RoomStore) Delete(ctx context.Context, r domain.Room) error {
	n, err := exec(ctx, conn(ctx, s.db), "rooms.delete",
		psql.Delete(tableRooms).Where(sq.Eq{"id": r.ID}))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFound("room", r.ID)
	}
	return nil
}

func (s *RoomStore) DeleteWhere(ctx context.Context, filters []store.RoomFilter) (int, error) {
	n, err := exec(ctx, conn(ctx, s.db), "rooms.delete_where",
		psql.Delete(tableRooms).Where(roomWhere(filters)))
	return int(n), err
}
