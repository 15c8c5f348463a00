package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/repository"
	"github.com/cwrk-planet/chat-service/internal/store"
	"github.com/cwrk-planet/chat-service/internal/store/memory"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type sent struct {
	to    string // user | group
	id    uuid.UUID
	event hub.Event
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sent
	removed [][2]uuid.UUID
	dropped []uuid.UUID
}

func (n *recordingNotifier) SendToUser(userID uuid.UUID, ev hub.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{to: "user", id: userID, event: ev})
	return 1
}

func (n *recordingNotifier) SendToGroup(roomID uuid.UUID, ev hub.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sent{to: "group", id: roomID, event: ev})
	return 1
}

func (n *recordingNotifier) RemoveUserFromGroup(userID, roomID uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removed = append(n.removed, [2]uuid.UUID{userID, roomID})
	return 0
}

func (n *recordingNotifier) DropGroup(roomID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropped = append(n.dropped, roomID)
}

type failingMessages struct {
	store.MessageStore
}

func (failingMessages) Add(context.Context, domain.Message) (domain.Message, error) {
	return domain.Message{}, errors.New("disk full")
}

// lockingRooms запоминает, с какими флагами читались комнаты.
type lockingRooms struct {
	store.RoomStore
	mu   sync.Mutex
	incs []store.Include
}

func (r *lockingRooms) GetByID(ctx context.Context, id uuid.UUID, inc store.Include) (domain.Room, error) {
	r.mu.Lock()
	r.incs = append(r.incs, inc)
	r.mu.Unlock()
	return r.RoomStore.GetByID(ctx, id, inc)
}

func (r *lockingRooms) locked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(lo.Filter(r.incs, func(inc store.Include, _ int) bool { return inc.Has(store.IncludeForUpdate) }))
}

// deletingMessages посреди записи сообщения запускает удаление комнаты.
type deletingMessages struct {
	store.MessageStore
	repo   *repository.Repository
	roomID uuid.UUID
	done   chan error
}

func (m *deletingMessages) Add(ctx context.Context, msg domain.Message) (domain.Message, error) {
	go func() { m.done <- m.repo.DeleteRoom(context.Background(), m.roomID) }()
	time.Sleep(20 * time.Millisecond)
	return m.MessageStore.Add(ctx, msg)
}

type fixture struct {
	chat    *ChatService
	rooms   *RoomService
	members *MemberService
	notes   *recordingNotifier
	repo    *repository.Repository
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.NewDB()
	return buildFixture(db, memory.NewMessageStore(db), memory.NewRoomStore(db))
}

func buildFixture(db *memory.DB, messages store.MessageStore, rooms store.RoomStore) *fixture {
	f := &fixture{
		notes: &recordingNotifier{},
		repo:  repository.New(db, messages, rooms),
		clock: time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	tick := func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	f.chat = NewChatService(f.repo, f.notes)
	f.chat.SetClock(tick)
	f.rooms = NewRoomService(f.repo, f.notes)
	f.rooms.SetClock(tick)
	f.members = NewMemberService(f.repo, f.notes)
	return f
}

func (f *fixture) createRoom(t *testing.T, name string, members ...uuid.UUID) domain.RoomView {
	t.Helper()
	room, err := f.rooms.CreateRoom(context.Background(), CreateRoomRequest{Name: name, UserIDs: members})
	require.NoError(t, err)
	return room
}

func (f *fixture) reset() {
	f.notes.mu.Lock()
	defer f.notes.mu.Unlock()
	f.notes.sent = nil
	f.notes.removed = nil
	f.notes.dropped = nil
}

func TestSendMessage_Direct(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()

	// When A sends B a direct message
	view, err := f.chat.SendMessage(ctx, SendMessageRequest{SenderID: a, ReceiverID: &b, Content: "  hi there  "})

	// Then it is stored unread and delivered only to B's connections
	req.NoError(err)
	req.Equal("hi there", view.Content)
	req.False(view.IsRead)
	req.Len(f.notes.sent, 1)
	req.Equal("user", f.notes.sent[0].to)
	req.Equal(b, f.notes.sent[0].id)
	req.Equal(hub.ReceiveMessage{MessageView: view}, f.notes.sent[0].event)
}

func TestSendMessage_RoomGoesToGroup(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	u := uuid.New()
	room := f.createRoom(t, "general", u)

	view, err := f.chat.SendMessage(ctx, SendMessageRequest{SenderID: u, ChatRoomID: &room.ID, Content: "hello"})

	req.NoError(err)
	req.True(view.IsRead)
	req.Equal("general", view.ChatRoomName)
	req.Len(f.notes.sent, 1)
	req.Equal("group", f.notes.sent[0].to)
	req.Equal(room.ID, f.notes.sent[0].id)
}

func TestSendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	sender, receiver, room := uuid.New(), uuid.New(), uuid.New()
	long := lo.RandomString(domain.MaxContentLength+1, lo.LettersCharset)

	tests := []struct {
		name   string
		req    SendMessageRequest
		fields []string
	}{
		{"no addressee", SendMessageRequest{SenderID: sender, Content: "x"}, []string{"receiverId", "chatRoomId"}},
		{"both addressees", SendMessageRequest{SenderID: sender, ReceiverID: &receiver, ChatRoomID: &room, Content: "x"}, []string{"receiverId", "chatRoomId"}},
		{"blank content", SendMessageRequest{SenderID: sender, ReceiverID: &receiver, Content: "   "}, []string{"content"}},
		{"too long", SendMessageRequest{SenderID: sender, ReceiverID: &receiver, Content: long}, []string{"content"}},
		{"no sender", SendMessageRequest{ReceiverID: &receiver, Content: "x"}, []string{"senderId"}},
		{"zero uuids only", SendMessageRequest{SenderID: sender, ReceiverID: &uuid.Nil, ChatRoomID: &uuid.Nil, Content: "x"}, []string{"receiverId", "chatRoomId"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.chat.SendMessage(ctx, tt.req)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.ElementsMatch(t, tt.fields, lo.Map(verr.Fields, func(v domain.FieldViolation, _ int) string { return v.Field }))
			require.Empty(t, f.notes.sent)

			n, err := f.chat.CountUnread(ctx, receiver, nil, nil)
			require.NoError(t, err)
			require.Zero(t, n)
		})
	}
}

func TestSendMessage_ZeroUUIDMeansUnset(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()
	room := f.createRoom(t, "general", a)
	f.reset()

	// When the room pointer is the zero UUID, the message is direct
	view, err := f.chat.SendMessage(ctx, SendMessageRequest{SenderID: a, ReceiverID: &b, ChatRoomID: &uuid.Nil, Content: "hi"})

	// Then it reaches B and carries no room
	req.NoError(err)
	req.Nil(view.ChatRoomID)
	req.Equal(&b, view.ReceiverID)
	req.Len(f.notes.sent, 1)
	req.Equal(sent{to: "user", id: b, event: hub.ReceiveMessage{MessageView: view}}, f.notes.sent[0])

	// And symmetrically a zero receiver with a room goes to the group
	view, err = f.chat.SendMessage(ctx, SendMessageRequest{SenderID: a, ReceiverID: &uuid.Nil, ChatRoomID: &room.ID, Content: "all"})
	req.NoError(err)
	req.Nil(view.ReceiverID)
	req.Equal("group", f.notes.sent[1].to)
	req.Equal(room.ID, f.notes.sent[1].id)
}

func TestSendMessage_RoomDeletedWhileSending(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memory.NewDB()
	messages := &deletingMessages{MessageStore: memory.NewMessageStore(db), done: make(chan error, 1)}
	f := buildFixture(db, messages, memory.NewRoomStore(db))
	messages.repo = f.repo
	u := uuid.New()
	room := f.createRoom(t, "doomed", u)
	messages.roomID = room.ID

	// When the room is deleted concurrently with a message being written to it
	_, err := f.chat.SendMessage(ctx, SendMessageRequest{SenderID: u, ChatRoomID: &room.ID, Content: "last words"})
	req.NoError(err)
	req.NoError(<-messages.done)

	// Then the delete waits for the write and cascades over it
	history, err := f.repo.GetRoomHistory(ctx, room.ID, 1, 10)
	req.NoError(err)
	req.Zero(history.TotalRecords)
}

func TestSendMessage_UnknownRoom(t *testing.T) {
	f := newFixture(t)
	room := uuid.New()

	_, err := f.chat.SendMessage(context.Background(), SendMessageRequest{SenderID: uuid.New(), ChatRoomID: &room, Content: "x"})

	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, f.notes.sent)
}

func TestSendMessage_PersistFailureMeansNoDelivery(t *testing.T) {
	db := memory.NewDB()
	f := buildFixture(db, failingMessages{memory.NewMessageStore(db)}, memory.NewRoomStore(db))
	b := uuid.New()

	_, err := f.chat.SendMessage(context.Background(), SendMessageRequest{SenderID: uuid.New(), ReceiverID: &b, Content: "x"})

	require.ErrorIs(t, err, domain.ErrStorage)
	require.Empty(t, f.notes.sent)
}

func TestUnreadFlow(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	a, b := uuid.New(), uuid.New()

	// Given A sent B two messages
	for _, text := range []string{"one", "two"} {
		_, err := f.chat.SendMessage(ctx, SendMessageRequest{SenderID: a, ReceiverID: &b, Content: text})
		req.NoError(err)
	}
	n, err := f.chat.CountUnread(ctx, b, nil, nil)
	req.NoError(err)
	req.Equal(2, n)

	// When B reads the conversation
	page, err := f.chat.GetPrivateMessages(ctx, b, a, 1, 10)
	req.NoError(err)
	req.Equal([]string{"one", "two"}, lo.Map(page.Items, func(m domain.MessageView, _ int) string { return m.Content }))

	// Then nothing is unread
	n, err = f.chat.CountUnread(ctx, b, &a, nil)
	req.NoError(err)
	req.Zero(n)
}

func TestAddUsersToRoom_Idempotent(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, u3 := uuid.New(), uuid.New(), uuid.New()
	room := f.createRoom(t, "r", u1, u2, u2)
	req.Equal([]uuid.UUID{u1, u2}, room.Members)

	added, err := f.members.AddUsersToRoom(ctx, AddUsersRequest{ChatRoomID: room.ID, UserIDs: []uuid.UUID{u2, u3}})

	req.NoError(err)
	req.Equal([]uuid.UUID{u3}, added)
	details, err := f.rooms.GetRoom(ctx, room.ID, 1, 5)
	req.NoError(err)
	req.ElementsMatch([]uuid.UUID{u1, u2, u3}, details.Members)
	req.Len(f.notes.sent, 1)
	ev, ok := f.notes.sent[0].event.(hub.UserAddedToRoom)
	req.True(ok)
	req.Equal([]uuid.UUID{u3}, ev.UserIDs)
	req.Equal(room.ID, ev.RoomID)

	// repeat: nothing new, no event
	f.reset()
	added, err = f.members.AddUsersToRoom(ctx, AddUsersRequest{ChatRoomID: room.ID, UserIDs: []uuid.UUID{u3}})
	req.NoError(err)
	req.Empty(added)
	req.Empty(f.notes.sent)
}

func TestAddUsersToRoom_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.members.AddUsersToRoom(ctx, AddUsersRequest{ChatRoomID: uuid.New(), UserIDs: []uuid.UUID{uuid.New()}})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.members.AddUsersToRoom(ctx, AddUsersRequest{ChatRoomID: uuid.New()})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestKickAndLeave(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	u1, u2, outsider := uuid.New(), uuid.New(), uuid.New()
	room := f.createRoom(t, "r", u1, u2)

	// kick of a non-member is a no-op
	req.NoError(f.members.KickUser(ctx, room.ID, outsider))
	req.Empty(f.notes.sent)

	req.NoError(f.members.KickUser(ctx, room.ID, u1))
	req.Equal(hub.UserLeftRoom{UserID: u1, RoomID: room.ID, IsKicked: true}, f.notes.sent[0].event)
	req.Equal([][2]uuid.UUID{{u1, room.ID}}, f.notes.removed)

	f.reset()
	req.NoError(f.members.LeaveRoom(ctx, room.ID, u2))
	req.Equal(hub.UserLeftRoom{UserID: u2, RoomID: room.ID, IsKicked: false}, f.notes.sent[0].event)

	details, err := f.rooms.GetRoom(ctx, room.ID, 1, 5)
	req.NoError(err)
	req.Empty(details.Members)

	req.ErrorIs(f.members.LeaveRoom(ctx, uuid.New(), u1), domain.ErrNotFound)
}

func TestMembershipChanges_LockRoomAndKeepConcurrentUpdates(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memory.NewDB()
	rooms := &lockingRooms{RoomStore: memory.NewRoomStore(db)}
	f := buildFixture(db, memory.NewMessageStore(db), rooms)
	owner, kicked := uuid.New(), uuid.New()
	room := f.createRoom(t, "busy", owner, kicked)
	newcomers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	// When adds and a kick race on the same room
	var wg sync.WaitGroup
	errs := make(chan error, len(newcomers)+1)
	for _, id := range newcomers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.members.AddUsersToRoom(ctx, AddUsersRequest{ChatRoomID: room.ID, UserIDs: []uuid.UUID{id}})
			errs <- err
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- f.members.KickUser(ctx, room.ID, kicked)
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		req.NoError(err)
	}

	// Then no change is lost and every read-modify-write locked the room
	got, err := f.repo.GetRoom(ctx, room.ID)
	req.NoError(err)
	req.ElementsMatch(append([]uuid.UUID{owner}, newcomers...), got.Members)
	req.Equal(len(newcomers)+1, rooms.locked())
}

func TestUpdateRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	u := uuid.New()
	room := f.createRoom(t, "old", u)

	view, err := f.rooms.UpdateRoom(ctx, UpdateRoomRequest{ID: room.ID, Name: " new "})

	req.NoError(err)
	req.Equal("new", view.Name)
	req.Equal([]uuid.UUID{u}, view.Members)
	req.Equal(hub.ChatRoomUpdated{RoomView: view}, f.notes.sent[0].event)

	_, err = f.rooms.UpdateRoom(ctx, UpdateRoomRequest{ID: uuid.New(), Name: "x"})
	req.ErrorIs(err, domain.ErrNotFound)
}

func TestGetRoom_NewestFirst(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	u := uuid.New()
	room := f.createRoom(t, "r", u)
	for _, text := range []string{"1", "2", "3"} {
		_, err := f.chat.SendMessage(ctx, SendMessageRequest{SenderID: u, ChatRoomID: &room.ID, Content: text})
		req.NoError(err)
	}

	details, err := f.rooms.GetRoom(ctx, room.ID, 1, 2)

	req.NoError(err)
	req.Equal([]string{"3", "2"}, lo.Map(details.Messages.Items, func(m domain.MessageView, _ int) string { return m.Content }))
	req.Equal(3, details.Messages.TotalRecords)
	req.True(details.Messages.HasNextPage)
	req.Equal("3", details.LastMessage.Content)
	req.Equal("r", details.Messages.Items[0].ChatRoomName)

	_, err = f.rooms.GetRoom(ctx, uuid.New(), 1, 2)
	req.ErrorIs(err, domain.ErrNotFound)
}

func TestDeleteRoom_Cascades(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	u := uuid.New()
	room := f.createRoom(t, "doomed", u)
	_, err := f.chat.SendMessage(ctx, SendMessageRequest{SenderID: u, ChatRoomID: &room.ID, Content: "bye"})
	req.NoError(err)
	f.reset()

	req.NoError(f.rooms.DeleteRoom(ctx, room.ID))

	req.Equal(hub.ChatRoomDeleted{RoomID: room.ID}, f.notes.sent[0].event)
	req.Equal([]uuid.UUID{room.ID}, f.notes.dropped)
	history, err := f.repo.GetRoomHistory(ctx, room.ID, 1, 5)
	req.NoError(err)
	req.Zero(history.TotalRecords)
	rooms, err := f.rooms.GetUserRooms(ctx, u, 1, 5)
	req.NoError(err)
	req.Zero(rooms.TotalRecords)
	req.ErrorIs(f.rooms.DeleteRoom(ctx, room.ID), domain.ErrNotFound)
}

func TestGetUserConversations_MergedFeed(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t)
	me, bob, carol := uuid.New(), uuid.New(), uuid.New()

	quiet := f.createRoom(t, "quiet", me)
	_, err := f.chat.SendMessage(ctx, SendMessageRequest{SenderID: bob, ReceiverID: &me, Content: "from bob"})
	req.NoError(err)
	busy := f.createRoom(t, "busy", me, carol)
	_, err = f.chat.SendMessage(ctx, SendMessageRequest{SenderID: carol, ChatRoomID: &busy.ID, Content: "room talk"})
	req.NoError(err)
	_, err = f.chat.SendMessage(ctx, SendMessageRequest{SenderID: me, ReceiverID: &carol, Content: "to carol"})
	req.NoError(err)

	// newest activity first: carol (direct), busy (room), bob (direct), quiet (empty room)
	page, err := f.chat.GetUserConversations(ctx, me, 1, 3)
	req.NoError(err)
	req.Equal(4, page.TotalRecords)
	req.Equal(2, page.TotalPages)
	req.Equal([]uuid.UUID{carol, busy.ID, bob}, lo.Map(page.Items, func(c domain.Conversation, _ int) uuid.UUID { return c.ID }))
	req.Equal(domain.ConversationRoom, page.Items[1].Type)
	req.Equal(1, page.Items[2].UnreadCount)

	page, err = f.chat.GetUserConversations(ctx, me, 2, 3)
	req.NoError(err)
	req.Len(page.Items, 1)
	req.Equal(quiet.ID, page.Items[0].ID)
	req.Nil(page.Items[0].LastMessage)
}

func TestGroupDeliveryThroughHub(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	db := memory.NewDB()
	repo := repository.New(db, memory.NewMessageStore(db), memory.NewRoomStore(db))
	h := hub.NewHub()
	chat, rooms := NewChatService(repo, h), NewRoomService(repo, h)

	u1, u2 := uuid.New(), uuid.New()
	room, err := rooms.CreateRoom(ctx, CreateRoomRequest{Name: "r", UserIDs: []uuid.UUID{u1, u2}})
	req.NoError(err)

	joined, idle := &probe{id: "joined"}, &probe{id: "idle"}
	h.OnConnect(joined, u1)
	h.OnConnect(idle, u2)
	req.NoError(h.JoinGroup(joined, room.ID))

	_, err = chat.SendMessage(ctx, SendMessageRequest{SenderID: u2, ChatRoomID: &room.ID, Content: "ping"})
	req.NoError(err)

	req.Equal([]string{hub.TypeReceiveMessage}, joined.types)
	req.Empty(idle.types)
}

type probe struct {
	id    string
	types []string
}

func (p *probe) ID() string { return p.id }

func (p *probe) Send(msg hub.Message) error {
	p.types = append(p.types, msg.Type)
	return nil
}
