package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string

	mu   sync.Mutex
	got  []Message
	fail error
	boom bool
}

func newConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg Message) error {
	if c.boom {
		panic("closed channel")
	}
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, msg)
	return nil
}

func (c *fakeConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.got))
	for _, m := range c.got {
		out = append(out, m.Type)
	}
	return out
}

func TestSendToUser_AllConnections(t *testing.T) {
	h := NewHub()
	alice, bob := uuid.New(), uuid.New()
	a1, a2, b1 := newConn("a1"), newConn("a2"), newConn("b1")
	h.OnConnect(a1, alice)
	h.OnConnect(a2, alice)
	h.OnConnect(b1, bob)

	n := h.SendToUser(alice, ChatRoomDeleted{RoomID: uuid.New()})

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{TypeChatRoomDeleted}, a1.types())
	assert.Equal(t, []string{TypeChatRoomDeleted}, a2.types())
	assert.Empty(t, b1.types())
}

func TestSendToUser_NoConnectionsIsNotAnError(t *testing.T) {
	h := NewHub()
	assert.Zero(t, h.SendToUser(uuid.New(), Ack{Op: "ping"}))
}

func TestGroups_JoinLeave(t *testing.T) {
	h := NewHub()
	room := uuid.New()
	c1, c2 := newConn("c1"), newConn("c2")
	h.OnConnect(c1, uuid.New())
	h.OnConnect(c2, uuid.New())

	require.NoError(t, h.JoinGroup(c1, room))
	require.NoError(t, h.JoinGroup(c2, room))
	require.NoError(t, h.JoinGroup(c2, room))
	assert.Equal(t, 2, h.SendToGroup(room, ChatRoomUpdated{}))

	require.NoError(t, h.LeaveGroup(c2, room))
	assert.Equal(t, 1, h.SendToGroup(room, ChatRoomUpdated{}))
	assert.Len(t, c1.types(), 2)
	assert.Len(t, c2.types(), 1)
	assert.True(t, h.InGroup(c1, room))
	assert.False(t, h.InGroup(c2, room))
}

func TestJoinGroup_UnknownConnection(t *testing.T) {
	h := NewHub()
	err := h.JoinGroup(newConn("ghost"), uuid.New())
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, h.LeaveGroup(newConn("ghost"), uuid.New()), ErrNotConnected)
}

func TestOnDisconnect_CleansEverything(t *testing.T) {
	h := NewHub()
	user, room := uuid.New(), uuid.New()
	c := newConn("c")
	h.OnConnect(c, user)
	require.NoError(t, h.JoinGroup(c, room))

	h.OnDisconnect(c)
	h.OnDisconnect(c)

	assert.Equal(t, Stats{}, h.Stats())
	assert.Zero(t, h.SendToUser(user, Ack{}))
	assert.Zero(t, h.SendToGroup(room, Ack{}))
	assert.Nil(t, h.Groups(c))
}

func TestOnConnect_IdentityIsPinned(t *testing.T) {
	h := NewHub()
	first, second := uuid.New(), uuid.New()
	c := newConn("c")
	h.OnConnect(c, first)
	h.OnConnect(c, second)

	assert.Equal(t, 1, h.SendToUser(first, Ack{}))
	assert.Zero(t, h.SendToUser(second, Ack{}))
}

func TestRemoveUserFromGroup(t *testing.T) {
	h := NewHub()
	kicked, stays, room := uuid.New(), uuid.New(), uuid.New()
	k1, k2, s1 := newConn("k1"), newConn("k2"), newConn("s1")
	h.OnConnect(k1, kicked)
	h.OnConnect(k2, kicked)
	h.OnConnect(s1, stays)
	for _, c := range []Conn{k1, k2, s1} {
		require.NoError(t, h.JoinGroup(c, room))
	}

	assert.Equal(t, 2, h.RemoveUserFromGroup(kicked, room))
	assert.Equal(t, 1, h.SendToGroup(room, Ack{}))
	assert.Empty(t, k1.types())
	assert.Empty(t, h.Groups(k2))
	// соединения пользователя живы
	assert.Equal(t, 2, h.SendToUser(kicked, Ack{}))
}

func TestDropGroup(t *testing.T) {
	h := NewHub()
	room, other := uuid.New(), uuid.New()
	c := newConn("c")
	h.OnConnect(c, uuid.New())
	require.NoError(t, h.JoinGroup(c, room))
	require.NoError(t, h.JoinGroup(c, other))

	h.DropGroup(room)

	assert.Zero(t, h.SendToGroup(room, Ack{}))
	assert.Equal(t, []uuid.UUID{other}, h.Groups(c))
	assert.Equal(t, 1, h.Stats().Groups)
}

func TestDeliver_FailuresAreIsolated(t *testing.T) {
	h := NewHub()
	user := uuid.New()
	bad := &fakeConn{id: "bad", fail: errors.New("queue full")}
	panics := &fakeConn{id: "panics", boom: true}
	good := newConn("good")
	for _, c := range []Conn{bad, panics, good} {
		h.OnConnect(c, user)
	}

	n := h.SendToUser(user, Ack{Op: "x"})

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{TypeAck}, good.types())
}

func TestEnvelope_WireShape(t *testing.T) {
	room, sender := uuid.New(), uuid.New()
	view := domain.MessageView{ID: uuid.New(), SenderID: sender, ChatRoomID: &room, Content: "hi", ChatRoomName: "general"}

	raw, err := json.Marshal(Envelope(ReceiveMessage{MessageView: view}))
	require.NoError(t, err)

	var got struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, TypeReceiveMessage, got.Type)
	assert.Equal(t, "hi", got.Payload["content"])
	assert.Equal(t, "general", got.Payload["chatRoomName"])
	assert.Equal(t, room.String(), got.Payload["chatRoomId"])

	raw, err = json.Marshal(Envelope(UserLeftRoom{UserID: sender, RoomID: room, IsKicked: true}))
	require.NoError(t, err)
	assert.JSONEq(t,
		fmt.Sprintf(`{"type":"UserLeftRoom","payload":{"userId":%q,"roomId":%q,"isKicked":true}}`, sender, room),
		string(raw))
}

func TestHub_ConcurrentUse(t *testing.T) {
	h := NewHub()
	room := uuid.New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newConn(fmt.Sprintf("c%d", i))
			user := uuid.New()
			h.OnConnect(c, user)
			_ = h.JoinGroup(c, room)
			h.SendToGroup(room, Ack{})
			h.SendToUser(user, Ack{})
			_ = h.LeaveGroup(c, room)
			h.OnDisconnect(c)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, Stats{}, h.Stats())
}
