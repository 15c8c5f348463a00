// Package repository доменные запросы к сообщениям и комнатам поверх store.Store.
package repository

import (
	"cmp"
	"context"
	"slices"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"

	"github.com/google/uuid"
)

// scanBatch размер страницы при материализации полных выборок (партнёры, комнаты).
const scanBatch = 500

type Repository struct {
	tx       store.TxManager
	messages store.MessageStore
	rooms    store.RoomStore
}

func New(tx store.TxManager, messages store.MessageStore, rooms store.RoomStore) *Repository {
	return &Repository{
		tx:       tx,
		messages: messages,
		rooms:    rooms,
	}
}

// WithinTx все вызовы Repository с переданным ctx идут в одной транзакции.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return store.WithinTx(ctx, r.tx, fn)
}

// UnreadScope RoomID имеет приоритет над PartnerID.
type UnreadScope struct {
	PartnerID *uuid.UUID
	RoomID    *uuid.UUID
}

// RoomActivity комната и её последнее сообщение (nil, если сообщений нет).
type RoomActivity struct {
	Room        domain.Room
	LastMessage *domain.Message
}

func (r *Repository) SaveMessage(ctx context.Context, m domain.Message) (domain.Message, error) {
	saved, err := r.messages.Add(ctx, m)
	if err != nil {
		return domain.Message{}, domain.WrapStorage("messages.add", err)
	}
	return saved, nil
}

// GetPrivateMessages страница переписки reader и partner: выбирается от новых к старым,
// внутри страницы упорядочена по возрастанию времени. Непрочитанные сообщения,
// адресованные reader, помечаются прочитанными в той же транзакции.
func (r *Repository) GetPrivateMessages(ctx context.Context, reader, partner uuid.UUID, pageIndex, pageSize int) (domain.PagedResult[domain.Message], error) {
	var page domain.PagedResult[domain.Message]
	err := r.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		page, err = r.messages.GetPage(ctx, store.MessageQuery{
			Filters:   []store.MessageFilter{store.Between(reader, partner)},
			OrderBy:   []store.Order[store.MessageSortKey]{store.Desc(store.MessageByTimestamp)},
			PageIndex: pageIndex,
			PageSize:  pageSize,
		})
		if err != nil {
			return domain.WrapStorage("messages.page", err)
		}

		slices.SortStableFunc(page.Items, chronological)

		for i, m := range page.Items {
			if m.IsRead || m.ReceiverID == nil || *m.ReceiverID != reader {
				continue
			}
			m.IsRead = true
			if err := r.messages.Update(ctx, m); err != nil {
				return domain.WrapStorage("messages.mark_read", err)
			}
			page.Items[i] = m
		}
		return nil
	})
	if err != nil {
		return domain.PagedResult[domain.Message]{}, err
	}
	return page, nil
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID, scope UnreadScope) (int, error) {
	filters := []store.MessageFilter{store.ReadState(false)}
	switch {
	case scope.RoomID != nil:
		filters = append(filters, store.InRoom(*scope.RoomID), store.NotSentBy(userID))
	case scope.PartnerID != nil:
		filters = append(filters, store.ReceivedBy(userID), store.SentBy(*scope.PartnerID))
	default:
		filters = append(filters, store.ReceivedBy(userID))
	}

	n, err := r.messages.Count(ctx, filters)
	if err != nil {
		return 0, domain.WrapStorage("messages.count_unread", err)
	}
	return n, nil
}

// GetChatPartners собеседники по личным сообщениям, сначала самые свежие переписки.
func (r *Repository) GetChatPartners(ctx context.Context, userID uuid.UUID, pageIndex, pageSize int) (domain.PagedResult[domain.ChatPartner], error) {
	order, last, err := r.partnerIndex(ctx, userID)
	if err != nil {
		return domain.PagedResult[domain.ChatPartner]{}, err
	}

	ids := domain.SlicePage(order, pageIndex, pageSize)
	partners, err := r.chatPartners(ctx, userID, ids.Items, last)
	if err != nil {
		return domain.PagedResult[domain.ChatPartner]{}, err
	}
	return domain.NewPagedResult(partners, ids.PageIndex, ids.PageSize, ids.TotalRecords), nil
}

// ListChatPartners все собеседники в порядке GetChatPartners.
func (r *Repository) ListChatPartners(ctx context.Context, userID uuid.UUID) ([]domain.ChatPartner, error) {
	order, last, err := r.partnerIndex(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.chatPartners(ctx, userID, order, last)
}

// partnerIndex собеседники по убыванию времени последнего сообщения и эти сообщения.
func (r *Repository) partnerIndex(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, map[uuid.UUID]domain.Message, error) {
	var (
		order []uuid.UUID
		last  = make(map[uuid.UUID]domain.Message)
	)
	err := r.scanMessages(ctx, store.MessageQuery{
		Filters: []store.MessageFilter{store.DirectInvolving(userID)},
		OrderBy: []store.Order[store.MessageSortKey]{store.Desc(store.MessageByTimestamp)},
	}, func(m domain.Message) {
		partner := m.Counterpart(userID)
		if _, seen := last[partner]; seen {
			return
		}
		last[partner] = m
		order = append(order, partner)
	})
	if err != nil {
		return nil, nil, err
	}
	return order, last, nil
}

func (r *Repository) chatPartners(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, last map[uuid.UUID]domain.Message) ([]domain.ChatPartner, error) {
	partners := make([]domain.ChatPartner, 0, len(ids))
	for _, pid := range ids {
		unread, err := r.CountUnread(ctx, userID, UnreadScope{PartnerID: &pid})
		if err != nil {
			return nil, err
		}
		m := last[pid]
		partners = append(partners, domain.ChatPartner{
			PartnerID:   pid,
			LastMessage: domain.NewMessageView(m, ""),
			Timestamp:   m.Timestamp,
			UnreadCount: unread,
		})
	}
	return partners, nil
}

// GetUserRooms комнаты пользователя по времени последнего сообщения, пустые комнаты в конце.
func (r *Repository) GetUserRooms(ctx context.Context, userID uuid.UUID, pageIndex, pageSize int) (domain.PagedResult[RoomActivity], error) {
	all, err := r.ListUserRooms(ctx, userID)
	if err != nil {
		return domain.PagedResult[RoomActivity]{}, err
	}
	return domain.SlicePage(all, pageIndex, pageSize), nil
}

// ListUserRooms все комнаты пользователя в порядке GetUserRooms.
func (r *Repository) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]RoomActivity, error) {
	var out []RoomActivity
	for pageIndex := 1; ; pageIndex++ {
		page, err := r.rooms.GetPage(ctx, store.RoomQuery{
			Filters:   []store.RoomFilter{store.WithMember(userID)},
			Include:   store.IncludeMembers,
			PageIndex: pageIndex,
			PageSize:  scanBatch,
		})
		if err != nil {
			return nil, domain.WrapStorage("rooms.page", err)
		}
		for _, room := range page.Items {
			last, err := r.LastRoomMessage(ctx, room.ID)
			if err != nil {
				return nil, err
			}
			out = append(out, RoomActivity{Room: room, LastMessage: last})
		}
		if !page.HasNextPage {
			break
		}
	}

	slices.SortStableFunc(out, byActivity)
	return out, nil
}

func (r *Repository) LastRoomMessage(ctx context.Context, roomID uuid.UUID) (*domain.Message, error) {
	page, err := r.messages.GetPage(ctx, store.MessageQuery{
		Filters:  []store.MessageFilter{store.InRoom(roomID)},
		OrderBy:  []store.Order[store.MessageSortKey]{store.Desc(store.MessageByTimestamp)},
		PageSize: 1,
	})
	if err != nil {
		return nil, domain.WrapStorage("messages.last", err)
	}
	if len(page.Items) == 0 {
		return nil, nil
	}
	return &page.Items[0], nil
}

// GetRoomHistory сообщения комнаты от новых к старым.
func (r *Repository) GetRoomHistory(ctx context.Context, roomID uuid.UUID, pageIndex, pageSize int) (domain.PagedResult[domain.Message], error) {
	page, err := r.messages.GetPage(ctx, store.MessageQuery{
		Filters:   []store.MessageFilter{store.InRoom(roomID)},
		OrderBy:   []store.Order[store.MessageSortKey]{store.Desc(store.MessageByTimestamp)},
		PageIndex: pageIndex,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.PagedResult[domain.Message]{}, domain.WrapStorage("messages.room_history", err)
	}
	return page, nil
}

func (r *Repository) CreateRoom(ctx context.Context, room domain.Room) (domain.Room, error) {
	saved, err := r.rooms.Add(ctx, room)
	if err != nil {
		return domain.Room{}, domain.WrapStorage("rooms.add", err)
	}
	return saved, nil
}

// GetRoom комната вместе с участниками.
func (r *Repository) GetRoom(ctx context.Context, roomID uuid.UUID) (domain.Room, error) {
	room, err := r.rooms.GetByID(ctx, roomID, store.IncludeMembers)
	if err != nil {
		return domain.Room{}, domain.WrapStorage("rooms.get", err)
	}
	return room, nil
}

// LockRoom как GetRoom, но внутри транзакции держит строку комнаты до Commit.
// Все изменения состава участников читают комнату только через него.
func (r *Repository) LockRoom(ctx context.Context, roomID uuid.UUID) (domain.Room, error) {
	room, err := r.rooms.GetByID(ctx, roomID, store.IncludeMembers|store.IncludeForUpdate)
	if err != nil {
		return domain.Room{}, domain.WrapStorage("rooms.lock", err)
	}
	return room, nil
}

func (r *Repository) UpdateRoom(ctx context.Context, room domain.Room) error {
	return domain.WrapStorage("rooms.update", r.rooms.Update(ctx, room))
}

// DeleteRoom удаляет сообщения комнаты и саму комнату (участники уходят вместе с ней).
func (r *Repository) DeleteRoom(ctx context.Context, roomID uuid.UUID) error {
	return r.WithinTx(ctx, func(ctx context.Context) error {
		room, err := r.rooms.GetByID(ctx, roomID, store.IncludeForUpdate)
		if err != nil {
			return domain.WrapStorage("rooms.get", err)
		}
		if _, err := r.messages.DeleteWhere(ctx, []store.MessageFilter{store.InRoom(roomID)}); err != nil {
			return domain.WrapStorage("messages.delete_room", err)
		}
		return domain.WrapStorage("rooms.delete", r.rooms.Delete(ctx, room))
	})
}

func (r *Repository) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	n, err := r.rooms.Count(ctx, []store.RoomFilter{store.RoomIDs(roomID), store.WithMember(userID)})
	if err != nil {
		return false, domain.WrapStorage("rooms.is_member", err)
	}
	return n > 0, nil
}

// scanMessages обходит все страницы выборки.
func (r *Repository) scanMessages(ctx context.Context, q store.MessageQuery, fn func(domain.Message)) error {
	q.PageSize = scanBatch
	for q.PageIndex = 1; ; q.PageIndex++ {
		page, err := r.messages.GetPage(ctx, q)
		if err != nil {
			return domain.WrapStorage("messages.scan", err)
		}
		for _, m := range page.Items {
			fn(m)
		}
		if !page.HasNextPage {
			return nil
		}
	}
}

func chronological(a, b domain.Message) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	return store.CompareIDs(a.ID, b.ID)
}

func byActivity(a, b RoomActivity) int {
	switch {
	case a.LastMessage != nil && b.LastMessage != nil:
		if c := b.LastMessage.Timestamp.Compare(a.LastMessage.Timestamp); c != 0 {
			return c
		}
	case a.LastMessage != nil:
		return -1
	case b.LastMessage != nil:
		return 1
	}
	if c := b.Room.CreatedAt.Compare(a.Room.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Room.ID.String(), b.Room.ID.String())
}
