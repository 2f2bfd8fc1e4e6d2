// persistence/interface.go
package persistence

import (
	"context"
	"fmt"

	"github.com/chainreaction/gameserver/models"
)

// Store is the persistent session/user/room access the rest of the
// server depends on. Every method is an independent transaction; the
// room methods are atomic read-modify-writes so concurrent matchmaking
// requests serialize on the room row.
type Store interface {
	// Sessions.
	GetSessionByID(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	GetSessionByUsername(ctx context.Context, username string) (*models.SessionRecord, error)
	// PutState atomically replaces the game state stored under an active
	// session id.
	PutState(ctx context.Context, sessionID string, state *models.GameState) error
	// BindSession installs a new session id for a user, replacing
	// whatever id was there, together with a fresh game state.
	BindSession(ctx context.Context, username, sessionID string, state *models.GameState) error
	// ClearSession removes the session id, leaving the row for the next
	// login.
	ClearSession(ctx context.Context, sessionID string) error

	// Users.
	CreateUser(ctx context.Context, user *models.UserModel) error
	GetUser(ctx context.Context, username string) (*models.UserModel, error)
	DeleteUser(ctx context.Context, username string) error
	ActivateUser(ctx context.Context, username string) error
	SetActivationHash(ctx context.Context, username, hash string) error
	SetPasswordResetKey(ctx context.Context, username, hash string) error
	ClearPasswordResetKey(ctx context.Context, username string) error
	UpdatePasswordHash(ctx context.Context, username, hash string) error

	// Rooms. JoinOrCreateRoom finds a room under channelBase with spare
	// capacity and increments its occupancy, or inserts a new row with
	// the provided room id and occupancy 1, all in one transaction.
	JoinOrCreateRoom(ctx context.Context, channelBase string, players int, newRoomID string) (room *models.Room, created bool, err error)
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	// ReleaseRoom deletes the row when occupancy equals players (a full
	// room has no further matchmaking use), otherwise decrements with a
	// floor of zero. A missing row is not an error.
	ReleaseRoom(ctx context.Context, roomID string, players int) error
	// IncrementRoom / DecrementRoom adjust occupancy by one. They back
	// out a half-applied command when the game-state write fails.
	IncrementRoom(ctx context.Context, roomID string) error
	DecrementRoom(ctx context.Context, roomID string) error
	// CountOpenRooms reports how many rooms are still waiting for
	// players. Sealed rooms are deleted, so every row counts.
	CountOpenRooms(ctx context.Context) (int, error)

	Close() error
}

var ErrNotFound = fmt.Errorf("record not found")
