package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/hub"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type ChatSvc interface {
	SendMessage(ctx context.Context, req service.SendMessageRequest) (domain.MessageView, error)
}

type MemberSvc interface {
	AddUsersToRoom(ctx context.Context, req service.AddUsersRequest) ([]uuid.UUID, error)
	KickUser(ctx context.Context, roomID, userID uuid.UUID) error
	LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	RoomIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

var (
	errNotMember   = errors.New("forbidden: not a member of the room")
	errForeignUser = errors.New("forbidden: userId does not match the connection")
	errUnknownOp   = errors.New("unknown operation")
	errBadPayload  = errors.New("invalid payload")
)

type Options struct {
	PingEvery    time.Duration // чтение ждёт pong не дольше 2*PingEvery
	WriteTimeout time.Duration
	OpTimeout    time.Duration
	ReadLimit    int64
	SendQueue    int

	// AutoJoinRooms при подключении вступать в группы всех своих комнат.
	AutoJoinRooms bool

	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.PingEvery <= 0 {
		o.PingEvery = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	return o
}

type Server struct {
	upgrader  websocket.Upgrader
	hub       *hub.Hub
	auth      security.Authenticator
	chatSvc   ChatSvc
	memberSvc MemberSvc
	opts      Options

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func NewServer(h *hub.Hub, auth security.Authenticator, chat ChatSvc, member MemberSvc, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		hub:       h,
		auth:      auth,
		chatSvc:   chat,
		memberSvc: member,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		conns: make(map[*wsConn]struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// ServeHTTP GET /ws; токен в Authorization или ?access_token=.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := s.auth.Authenticate(ctx, security.CredentialsFromRequest(r))
	if err != nil {
		logger.FromCtx(ctx).WarnContext(ctx, "ws auth rejected", "err", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		logger.FromCtx(ctx).WarnContext(ctx, "ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, userID, s.opts.SendQueue)
	log := logger.FromCtx(ctx).With(slog.String("conn_id", c.id), slog.String("user_id", userID.String()))
	ctx = logger.WithLogger(security.WithUserID(ctx, userID), log)

	s.track(c)
	s.hub.OnConnect(c, userID)
	log.InfoContext(ctx, "ws connected")

	if s.opts.AutoJoinRooms {
		s.autoJoin(ctx, c)
	}

	go s.writeLoop(c)
	s.readLoop(ctx, c)

	s.hub.OnDisconnect(c)
	s.untrack(c)
	_ = c.Close()
	log.InfoContext(ctx, "ws disconnected")
}

// Shutdown закрывает все живые соединения.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.goAway()
	}
	return nil
}

func (s *Server) track(c *wsConn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) autoJoin(ctx context.Context, c *wsConn) {
	ids, err := s.memberSvc.RoomIDs(ctx, c.userID)
	if err != nil {
		logger.FromCtx(ctx).WarnContext(ctx, "ws auto join failed", "err", err)
		return
	}
	for _, id := range ids {
		_ = s.hub.JoinGroup(c, id)
	}
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	deadline := func() time.Time { return time.Now().Add(2 * s.opts.PingEvery) }

	c.conn.SetReadLimit(s.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(deadline())
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(deadline())
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.FromCtx(ctx).DebugContext(ctx, "ws read failed", "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(deadline())

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = c.Send(hub.Envelope(hub.Error{Message: "invalid json"}))
			continue
		}
		s.dispatch(ctx, c, msg)
	}
}

// dispatch отвечает на каждую операцию ровно одним Ack или Error.
func (s *Server) dispatch(ctx context.Context, c *wsConn, msg ClientMessage) {
	opCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	data, err := s.handle(opCtx, c, msg)
	if err != nil {
		_ = c.Send(hub.Envelope(toErrorEvent(msg, err)))
		if isInternal(err) {
			logger.FromCtx(ctx).ErrorContext(ctx, "ws."+msg.Type+" failed", "err", err)
		}
		return
	}
	_ = c.Send(hub.Envelope(hub.Ack{Op: msg.Type, Ref: msg.Ref, Data: data}))
}

func (s *Server) handle(ctx context.Context, c *wsConn, msg ClientMessage) (any, error) {
	switch msg.Type {
	case OpJoinGroup:
		var p RoomPayload
		if err := decode(msg.Payload, &p); err != nil {
			return nil, err
		}
		ok, err := s.memberSvc.IsMember(ctx, p.RoomID, c.userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errNotMember
		}
		if err := s.hub.JoinGroup(c, p.RoomID); err != nil {
			return nil, err
		}
		// исключение между проверкой и вступлением уже вызвало RemoveUserFromGroup,
		// поэтому членство проверяется ещё раз после вступления
		if ok, err = s.memberSvc.IsMember(ctx, p.RoomID, c.userID); err != nil || !ok {
			_ = s.hub.LeaveGroup(c, p.RoomID)
			if err != nil {
				return nil, err
			}
			return nil, errNotMember
		}
		return p, nil

	case OpLeaveGroup:
		var p RoomPayload
		if err := decode(msg.Payload, &p); err != nil {
			return nil, err
		}
		return p, s.hub.LeaveGroup(c, p.RoomID)

	case OpSendMessage:
		var p SendMessagePayload
		if err := decode(msg.Payload, &p); err != nil {
			return nil, err
		}
		return s.chatSvc.SendMessage(ctx, service.SendMessageRequest{
			SenderID:   c.userID,
			ReceiverID: p.ReceiverID,
			ChatRoomID: p.ChatRoomID,
			Content:    p.Content,
		})

	case OpAddToRoom:
		var p AddToRoomPayload
		if err := decode(msg.Payload, &p); err != nil {
			return nil, err
		}
		added, err := s.memberSvc.AddUsersToRoom(ctx, service.AddUsersRequest{ChatRoomID: p.ChatRoomID, UserIDs: p.UserIDs})
		if err != nil {
			return nil, err
		}
		return AddedPayload{Added: added}, nil

	case OpLeaveRoom:
		var p MemberPayload
		if err := decode(msg.Payload, &p); err != nil {
			return nil, err
		}
		if p.UserID != uuid.Nil && p.UserID != c.userID {
			return nil, errForeignUser
		}
		p.UserID = c.userID
		return p, s.memberSvc.LeaveRoom(ctx, p.RoomID, c.userID)

	case OpKickUser:
		var p MemberPayload
		if err := decode(msg.Payload, &p); err != nil {
			return nil, err
		}
		return p, s.memberSvc.KickUser(ctx, p.RoomID, p.UserID)

	default:
		return nil, errUnknownOp
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.opts.PingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteTimeout)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errBadPayload
	}
	return nil
}

func toErrorEvent(msg ClientMessage, err error) hub.Error {
	ev := hub.Error{Op: msg.Type, Ref: msg.Ref, Message: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		ev.Fields = verr.Fields
	}
	if isInternal(err) {
		ev.Message = "internal error"
	}
	return ev
}

func isInternal(err error) bool {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, errNotMember),
		errors.Is(err, errForeignUser),
		errors.Is(err, errUnknownOp),
		errors.Is(err, errBadPayload),
		errors.Is(err, hub.ErrNotConnected):
		return false
	}
	return true
}
