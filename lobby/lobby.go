// lobby/lobby.go
package lobby

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/chainreaction/gameserver/models"
	"github.com/chainreaction/gameserver/persistence"
)

// Allocator finds or creates matchmaking rooms for a board
// configuration and tracks their occupancy. All contention between
// concurrent searches is resolved by the store's row-locked room
// transaction; the allocator itself is stateless.
type Allocator struct {
	store persistence.Store
}

func NewAllocator(store persistence.Store) *Allocator {
	return &Allocator{store: store}
}

// AssignRoom joins the first room of the requested configuration with
// spare capacity, or opens a new one, and returns the full channel
// name. A store error aborts the operation with no partial increment.
func (a *Allocator) AssignRoom(ctx context.Context, players, rows, columns int) (string, error) {
	base := models.ChannelBase(players, rows, columns)
	roomID := newRoomID()
	room, _, err := a.store.JoinOrCreateRoom(ctx, base, players, roomID)
	if err != nil {
		return "", err
	}
	return room.ChannelName(), nil
}

// Release gives back one occupied slot. A full room is deleted instead
// of decremented: once sealed it has no further matchmaking use, so
// "absent" and "full" are the same terminal state. A nil channel is a
// successful no-op.
func (a *Allocator) Release(ctx context.Context, channel string, players int) error {
	if channel == "" {
		return nil
	}
	if !strings.HasPrefix(channel, "presence-") {
		return nil
	}
	return a.store.ReleaseRoom(ctx, models.RoomIDFromChannel(channel), players)
}

// Retract backs out a just-applied AssignRoom increment after the
// caller failed to persist its game state.
func (a *Allocator) Retract(ctx context.Context, channel string) error {
	if channel == "" {
		return nil
	}
	return a.store.DecrementRoom(ctx, models.RoomIDFromChannel(channel))
}

// Restore backs out a just-applied Release decrement after the caller
// failed to persist its game state.
func (a *Allocator) Restore(ctx context.Context, channel string) error {
	if channel == "" {
		return nil
	}
	return a.store.IncrementRoom(ctx, models.RoomIDFromChannel(channel))
}

// Room looks up the room behind a full channel name.
func (a *Allocator) Room(ctx context.Context, channel string) (*models.Room, error) {
	return a.store.GetRoom(ctx, models.RoomIDFromChannel(channel))
}

func newRoomID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
