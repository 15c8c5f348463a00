package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/hub"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	errConnClosed = errors.New("ws: connection closed")
	errQueueFull  = errors.New("ws: outbound queue full")
)

// wsConn одно соединение; личность фиксируется при рукопожатии и больше не меняется.
type wsConn struct {
	id     string
	userID uuid.UUID
	conn   *websocket.Conn

	out    chan hub.Message
	closed chan struct{}
	once   sync.Once
}

func newWsConn(c *websocket.Conn, userID uuid.UUID, queue int) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		userID: userID,
		conn:   c,
		out:    make(chan hub.Message, queue),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send кладёт сообщение в очередь writeLoop и не блокируется.
// Переполнение очереди закрывает соединение: клиент не успевает читать.
func (c *wsConn) Send(msg hub.Message) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}

	select {
	case c.out <- msg:
		return nil
	case <-c.closed:
		return errConnClosed
	default:
		_ = c.Close()
		return errQueueFull
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// goAway вежливое закрытие при остановке сервера.
func (c *wsConn) goAway() {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = c.Close()
}
