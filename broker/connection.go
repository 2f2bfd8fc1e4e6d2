// broker/connection.go
package broker

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientMessage is one frame read from a websocket client.
type ClientMessage struct {
	Event       string `json:"event"`
	Channel     string `json:"channel,omitempty"`
	Auth        string `json:"auth,omitempty"`
	ChannelData string `json:"channel_data,omitempty"`
}

const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventPing        = "ping"
	EventPong        = "pong"
)

// Connection wraps a websocket connection as a hub Subscriber. Writes
// are serialized: gorilla permits only one concurrent writer.
type Connection struct {
	conn      *websocket.Conn
	socketID  string
	sendMutex sync.Mutex

	memberMutex sync.RWMutex
	member      *PresenceMember
}

func NewConnection(conn *websocket.Conn) *Connection {
	return &Connection{
		conn:     conn,
		socketID: strings.ReplaceAll(uuid.New().String(), "-", ""),
	}
}

func (c *Connection) ID() string { return c.socketID }

func (c *Connection) Member() *PresenceMember {
	c.memberMutex.RLock()
	defer c.memberMutex.RUnlock()
	return c.member
}

// SetMember is called by the hub once a presence subscription is
// accepted.
func (c *Connection) SetMember(m *PresenceMember) {
	c.memberMutex.Lock()
	defer c.memberMutex.Unlock()
	c.member = m
}

func (c *Connection) SendEvent(ev *Event) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	return c.conn.WriteJSON(ev)
}

func (c *Connection) ReadMessage() (*ClientMessage, error) {
	var msg ClientMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Connection) Close() error {
	return c.conn.Close()
}
