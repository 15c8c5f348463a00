// Package hub реестр живых соединений: соединение -> пользователь и соединение -> группы комнат.
package hub

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var ErrNotConnected = errors.New("hub: connection is not registered")

// Conn одно транспортное соединение. Send не должен блокироваться надолго.
type Conn interface {
	ID() string
	Send(msg Message) error
}

type entry struct {
	conn   Conn
	userID uuid.UUID
	groups map[uuid.UUID]struct{}
}

type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*entry                 // connID -> entry
	users  map[uuid.UUID]map[string]struct{} // userID -> set of connIDs
	groups map[uuid.UUID]map[string]struct{} // roomID -> set of connIDs
}

func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*entry),
		users:  make(map[uuid.UUID]map[string]struct{}),
		groups: make(map[uuid.UUID]map[string]struct{}),
	}
}

// OnConnect регистрирует соединение под пользователем. Повторный вызов ничего не меняет:
// пользователь соединения фиксируется при первой регистрации.
func (h *Hub) OnConnect(c Conn, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c.ID()]; ok {
		return
	}
	h.conns[c.ID()] = &entry{conn: c, userID: userID, groups: make(map[uuid.UUID]struct{})}
	add(h.users, userID, c.ID())
}

// OnDisconnect снимает соединение со всех групп и с пользователя. Идемпотентен.
func (h *Hub) OnDisconnect(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.conns[c.ID()]
	if !ok {
		return
	}
	for roomID := range e.groups {
		remove(h.groups, roomID, c.ID())
	}
	remove(h.users, e.userID, c.ID())
	delete(h.conns, c.ID())
}

func (h *Hub) JoinGroup(c Conn, roomID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.conns[c.ID()]
	if !ok {
		return ErrNotConnected
	}
	e.groups[roomID] = struct{}{}
	add(h.groups, roomID, c.ID())
	return nil
}

func (h *Hub) LeaveGroup(c Conn, roomID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.conns[c.ID()]
	if !ok {
		return ErrNotConnected
	}
	delete(e.groups, roomID)
	remove(h.groups, roomID, c.ID())
	return nil
}

// RemoveUserFromGroup выводит из группы все соединения пользователя (после kick/leave).
func (h *Hub) RemoveUserFromGroup(userID, roomID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for connID := range h.users[userID] {
		e := h.conns[connID]
		if _, ok := e.groups[roomID]; !ok {
			continue
		}
		delete(e.groups, roomID)
		remove(h.groups, roomID, connID)
		n++
	}
	return n
}

// DropGroup удаляет группу целиком (комната удалена).
func (h *Hub) DropGroup(roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID := range h.groups[roomID] {
		delete(h.conns[connID].groups, roomID)
	}
	delete(h.groups, roomID)
}

// SendToUser во все соединения пользователя. Нет соединений, не ошибка.
// Возвращает число соединений, принявших событие.
func (h *Hub) SendToUser(userID uuid.UUID, ev Event) int {
	h.mu.RLock()
	targets := h.snapshot(h.users[userID])
	h.mu.RUnlock()

	return deliver(targets, Envelope(ev))
}

// SendToGroup во все соединения, вступившие в группу комнаты.
func (h *Hub) SendToGroup(roomID uuid.UUID, ev Event) int {
	h.mu.RLock()
	targets := h.snapshot(h.groups[roomID])
	h.mu.RUnlock()

	return deliver(targets, Envelope(ev))
}

func (h *Hub) Groups(c Conn) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.conns[c.ID()]
	if !ok {
		return nil
	}
	return lo.Keys(e.groups)
}

func (h *Hub) InGroup(c Conn, roomID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	e, ok := h.conns[c.ID()]
	if !ok {
		return false
	}
	_, in := e.groups[roomID]
	return in
}

type Stats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Groups      int `json:"groups"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return Stats{Connections: len(h.conns), Users: len(h.users), Groups: len(h.groups)}
}

// snapshot вызывается под замком, отправка идёт уже без него.
func (h *Hub) snapshot(ids map[string]struct{}) []Conn {
	out := make([]Conn, 0, len(ids))
	for id := range ids {
		out = append(out, h.conns[id].conn)
	}
	return out
}

func deliver(targets []Conn, msg Message) int {
	n := 0
	for _, c := range targets {
		if err := safeSend(c, msg); err != nil {
			slog.Warn("hub.deliver failed",
				slog.String("conn_id", c.ID()),
				slog.String("type", msg.Type),
				slog.Any("err", err))
			continue
		}
		n++
	}
	return n
}

// safeSend падение одного соединения не мешает остальным.
func safeSend(c Conn, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("send panic: %v", r)
		}
	}()
	return c.Send(msg)
}

func add(m map[uuid.UUID]map[string]struct{}, key uuid.UUID, connID string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[connID] = struct{}{}
}

func remove(m map[uuid.UUID]map[string]struct{}, key uuid.UUID, connID string) {
	if set, ok := m[key]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(m, key)
		}
	}
}
