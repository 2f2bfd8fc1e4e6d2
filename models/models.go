// models/models.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// Room is one matchmaking slot for a concrete (players, rows, columns)
// configuration. It exists only while the lobby is filling: a full room
// is deleted, so "absent" and "full" are equivalent for matchmaking.
type Room struct {
	ChannelBase string `json:"channel_base"` // presence-{players}.{rows}.{columns}
	RoomID      string `json:"room_id"`
	Occupants   int    `json:"occupants"`
}

// ChannelName is the full channel assigned to occupants of the room.
func (r *Room) ChannelName() string {
	return r.ChannelBase + "." + r.RoomID
}

// ChannelBase formats the shared prefix of a room configuration.
func ChannelBase(players, rows, columns int) string {
	return fmt.Sprintf("presence-%d.%d.%d", players, rows, columns)
}

// RoomIDFromChannel extracts the room id from a full channel name: the
// segment after the last dot.
func RoomIDFromChannel(channel string) string {
	idx := strings.LastIndex(channel, ".")
	if idx < 0 {
		return ""
	}
	return channel[idx+1:]
}

// Account is a registered user as seen outside the persistence layer.
type Account struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Activated bool      `json:"activated"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRecord binds a username to its single active session and the
// game state stored under it.
type SessionRecord struct {
	Username  string     `json:"username"`
	SessionID string     `json:"session_id"`
	Activated bool       `json:"activated"`
	State     *GameState `json:"game_state"`
}
