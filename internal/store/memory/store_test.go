package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seedDirect(t *testing.T, s *MessageStore, from, to uuid.UUID, n int) []domain.Message {
	t.Helper()
	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		m, err := s.Add(context.Background(), domain.NewDirectMessage(from, to, "msg", t0.Add(time.Duration(len(s.tbl.rows))*time.Minute)))
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestStore_GetPage_DefaultsAndMetadata(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMessageStore(NewDB())
	a, b := uuid.New(), uuid.New()
	seedDirect(t, s, a, b, 12)

	// When page parameters are not positive
	p, err := s.GetPage(ctx, store.MessageQuery{PageIndex: 0, PageSize: 0})

	// Then defaults are applied
	req.NoError(err)
	req.Equal(1, p.PageIndex)
	req.Equal(5, p.PageSize)
	req.Len(p.Items, 5)
	req.Equal(12, p.TotalRecords)
	req.Equal(3, p.TotalPages)
	req.False(p.HasPreviousPage)
	req.True(p.HasNextPage)

	// And the last page is partial
	p, err = s.GetPage(ctx, store.MessageQuery{PageIndex: 3, PageSize: 5})
	req.NoError(err)
	req.Len(p.Items, 2)
	req.True(p.HasPreviousPage)
	req.False(p.HasNextPage)
}

func TestStore_GetPage_EmptyHasNoPages(t *testing.T) {
	req := require.New(t)
	s := NewMessageStore(NewDB())

	p, err := s.GetPage(context.Background(), store.MessageQuery{PageIndex: 4, PageSize: 10})

	req.NoError(err)
	req.Empty(p.Items)
	req.Zero(p.TotalPages)
	req.False(p.HasNextPage)
	req.False(p.HasPreviousPage)
}

func TestStore_DefaultOrderIsIDAscending(t *testing.T) {
	req := require.New(t)
	s := NewMessageStore(NewDB())
	seedDirect(t, s, uuid.New(), uuid.New(), 8)

	p, err := s.GetPage(context.Background(), store.MessageQuery{PageSize: 8})
	req.NoError(err)
	for i := 1; i < len(p.Items); i++ {
		req.Negative(store.CompareIDs(p.Items[i-1].ID, p.Items[i].ID))
	}
}

func TestStore_FiltersAreConjunctive(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMessageStore(NewDB())
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	seedDirect(t, s, a, b, 2)
	seedDirect(t, s, b, a, 3)
	seedDirect(t, s, c, a, 4)

	n, err := s.Count(ctx, []store.MessageFilter{store.ReceivedBy(a), store.SentBy(b)})
	req.NoError(err)
	req.Equal(3, n)

	n, err = s.Count(ctx, []store.MessageFilter{store.Between(a, b)})
	req.NoError(err)
	req.Equal(5, n)

	n, err = s.Count(ctx, []store.MessageFilter{store.DirectInvolving(a), store.NotSentBy(c)})
	req.NoError(err)
	req.Equal(5, n)

	p, err := s.GetPage(ctx, store.MessageQuery{
		Filters:  []store.MessageFilter{store.DirectInvolving(a)},
		OrderBy:  []store.Order[store.MessageSortKey]{store.Desc(store.MessageByTimestamp)},
		PageSize: 3,
	})
	req.NoError(err)
	req.Equal(9, p.TotalRecords)
	req.Equal(c, p.Items[0].SenderID)
	req.True(p.Items[0].Timestamp.After(p.Items[1].Timestamp))
}

func TestStore_NotFoundAndConflict(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMessageStore(NewDB())
	m := seedDirect(t, s, uuid.New(), uuid.New(), 1)[0]

	_, err := s.Add(ctx, m)
	req.ErrorIs(err, domain.ErrConflict)

	_, err = s.GetByID(ctx, uuid.New(), store.IncludeNone)
	req.ErrorIs(err, domain.ErrNotFound)

	_, err = s.GetOne(ctx, []store.MessageFilter{store.SentBy(uuid.New())}, store.IncludeNone)
	req.ErrorIs(err, domain.ErrNotFound)

	req.ErrorIs(s.Update(ctx, domain.Message{ID: uuid.New()}), domain.ErrNotFound)
	req.ErrorIs(s.Delete(ctx, domain.Message{ID: uuid.New()}), domain.ErrNotFound)
}

func TestStore_ReturnedEntitiesAreCopies(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMessageStore(NewDB())
	m := seedDirect(t, s, uuid.New(), uuid.New(), 1)[0]

	got, err := s.GetByID(ctx, m.ID, store.IncludeNone)
	req.NoError(err)
	*got.ReceiverID = uuid.New()
	got.IsRead = true

	again, err := s.GetByID(ctx, m.ID, store.IncludeNone)
	req.NoError(err)
	req.Equal(*m.ReceiverID, *again.ReceiverID)
	req.False(again.IsRead)
}

func TestStore_TxRollbackRestoresState(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := NewDB()
	s := NewMessageStore(db)
	kept := seedDirect(t, s, uuid.New(), uuid.New(), 2)
	boom := errors.New("boom")

	// When a transaction adds, updates and deletes, then fails
	err := store.WithinTx(ctx, db, func(ctx context.Context) error {
		if _, err := s.Add(ctx, domain.NewDirectMessage(uuid.New(), uuid.New(), "x", t0)); err != nil {
			return err
		}
		upd := kept[0]
		upd.IsRead = true
		if err := s.Update(ctx, upd); err != nil {
			return err
		}
		if err := s.Delete(ctx, kept[1]); err != nil {
			return err
		}
		return boom
	})

	// Then nothing is visible
	req.ErrorIs(err, boom)
	n, err := s.Count(ctx, nil)
	req.NoError(err)
	req.Equal(2, n)
	got, err := s.GetByID(ctx, kept[0].ID, store.IncludeNone)
	req.NoError(err)
	req.False(got.IsRead)
}

func TestStore_TxCommitAndNested(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := NewDB()
	s := NewMessageStore(db)

	err := store.WithinTx(ctx, db, func(ctx context.Context) error {
		// nested begin joins the outer transaction
		return store.WithinTx(ctx, db, func(ctx context.Context) error {
			_, err := s.Add(ctx, domain.NewDirectMessage(uuid.New(), uuid.New(), "x", t0))
			return err
		})
	})
	req.NoError(err)

	n, err := s.Count(ctx, nil)
	req.NoError(err)
	req.Equal(1, n)
}

func TestStore_DeleteWhere(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewMessageStore(NewDB())
	room := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := s.Add(ctx, domain.NewRoomMessage(uuid.New(), room, "x", t0))
		req.NoError(err)
	}
	seedDirect(t, s, uuid.New(), uuid.New(), 2)

	n, err := s.DeleteWhere(ctx, []store.MessageFilter{store.InRoom(room)})
	req.NoError(err)
	req.Equal(3, n)

	total, err := s.Count(ctx, nil)
	req.NoError(err)
	req.Equal(2, total)
}

func TestRoomStore_MembersIncludeAndKeep(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := NewRoomStore(NewDB())
	u1, u2 := uuid.New(), uuid.New()
	r, err := s.Add(ctx, domain.NewRoom("ops", []uuid.UUID{u1, u2}, t0))
	req.NoError(err)

	// Without include members are not loaded
	got, err := s.GetByID(ctx, r.ID, store.IncludeNone)
	req.NoError(err)
	req.Nil(got.Members)

	// Updating an unloaded room keeps membership
	got.Name = "ops-2"
	req.NoError(s.Update(ctx, got))
	got, err = s.GetByID(ctx, r.ID, store.IncludeMembers)
	req.NoError(err)
	req.Equal("ops-2", got.Name)
	req.ElementsMatch([]uuid.UUID{u1, u2}, got.Members)

	// Member filter
	n, err := s.Count(ctx, []store.RoomFilter{store.WithMember(u2)})
	req.NoError(err)
	req.Equal(1, n)

	// Removing the last members leaves an empty, non-nil set
	got.RemoveMember(u1)
	got.RemoveMember(u2)
	req.NoError(s.Update(ctx, got))
	n, err = s.Count(ctx, []store.RoomFilter{store.WithMember(u2)})
	req.NoError(err)
	req.Zero(n)
}
