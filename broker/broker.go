// broker/broker.go
package broker

import (
	"errors"
	"strings"
)

// Event is one published message as delivered to channel subscribers.
type Event struct {
	Channel string      `json:"channel,omitempty"`
	Event   string      `json:"event"`
	Data    interface{} `json:"data"`
}

// PresenceMember identifies a subscriber of a presence channel. The
// subscription time is carried in UserInfo so clients can derive a
// stable seat order.
type PresenceMember struct {
	UserID   string                 `json:"user_id"`
	UserInfo map[string]interface{} `json:"user_info,omitempty"`
}

// AuthResponse is the signed grant a client presents when subscribing
// to a private or presence channel.
type AuthResponse struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}

// Broker is the pub/sub surface the game server depends on.
type Broker interface {
	// AuthorizeChannel signs a subscription grant. member must be set
	// for presence channels and nil otherwise.
	AuthorizeChannel(channel, socketID string, member *PresenceMember) (*AuthResponse, error)
	// Trigger publishes an event on a channel.
	Trigger(channel, event string, payload interface{}) error
	// Occupancy reports the number of distinct members subscribed to a
	// presence channel, or the raw connection count elsewhere.
	Occupancy(channel string) (int, error)
}

var ErrUnauthorized = errors.New("channel authorization denied")

func IsPresenceChannel(channel string) bool {
	return strings.HasPrefix(channel, "presence-")
}

func IsPrivateChannel(channel string) bool {
	return strings.HasPrefix(channel, "private-")
}
