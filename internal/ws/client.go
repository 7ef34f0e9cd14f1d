package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"matchroom-service/internal/models"
)

const writeWait = 10 * time.Second

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one websocket connection. Writes are serialized because the
// underlying connection supports a single concurrent writer.
type Client struct {
	conn Conn
	info ConnInfo
	mu   sync.Mutex
}

func NewClient(conn Conn, info ConnInfo) *Client {
	return &Client{conn: conn, info: info}
}

func (c *Client) Info() ConnInfo {
	return c.info
}

// Send encodes ev and writes it to this connection only.
func (c *Client) Send(ev models.OutboundEvent) error {
	frame, err := models.EncodeOutbound(ev)
	if err != nil {
		return err
	}
	return c.write(frame)
}

func (c *Client) write(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) Close() error {
	return c.conn.Close()
}
