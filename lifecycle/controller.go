// lifecycle/controller.go
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chainreaction/gameserver/broker"
	"github.com/chainreaction/gameserver/lobby"
	"github.com/chainreaction/gameserver/logger"
	"github.com/chainreaction/gameserver/models"
	"github.com/chainreaction/gameserver/persistence"
)

// Command names accepted at the game endpoint.
const (
	CmdSearchGame   = "search-game"
	CmdCancelSearch = "cancel-search"
	CmdStartGame    = "start-game"
	CmdResetState   = "reset-state"
)

var commandNames = []string{CmdSearchGame, CmdCancelSearch, CmdStartGame, CmdResetState}

// Command is one request against a session's game state: a command name
// plus its string-encoded parameters, exactly as they arrived on the
// wire.
type Command struct {
	Name   string
	Params map[string]string
}

func (c Command) get(key string) string { return c.Params[key] }

// Result is the structured command outcome. A refused command reports
// success=false and a reason; it never changes stored state.
type Result struct {
	Success   bool              `json:"success"`
	Reason    string            `json:"reason"`
	GameState *models.GameState `json:"game_state,omitempty"`
}

// Controller drives every game-state transition. It loads the caller's
// state, validates the command against it, performs allocator and
// broker side effects, and persists the updated state. Handlers run
// concurrently; all shared state lives in the store.
type Controller struct {
	store  persistence.Store
	lobby  *lobby.Allocator
	broker broker.Broker
}

func NewController(store persistence.Store, alloc *lobby.Allocator, brk broker.Broker) *Controller {
	return &Controller{store: store, lobby: alloc, broker: brk}
}

// Execute runs one command for the session. The returned Result is
// always usable as a response body.
func (c *Controller) Execute(ctx context.Context, sessionID string, cmd Command) *Result {
	sess, err := c.store.GetSessionByID(ctx, sessionID)
	if errors.Is(err, persistence.ErrNotFound) {
		return failed(errUnauthorized())
	}
	if err != nil {
		logger.Log.Errorf("loading session %s: %v", sessionID, err)
		return failed(errStoreFailure())
	}

	var f *Failure
	switch cmd.Name {
	case CmdSearchGame:
		f = c.searchGame(ctx, sess, cmd)
	case CmdCancelSearch:
		f = c.cancelSearch(ctx, sess, cmd)
	case CmdStartGame:
		f = c.startGame(ctx, sess, cmd)
	case CmdResetState:
		f = c.resetState(ctx, sess)
	default:
		return &Result{
			Success: false,
			Reason: fmt.Sprintf("invalid command: %s (available: %s)",
				cmd.Name, strings.Join(commandNames, ", ")),
		}
	}
	if f != nil {
		return failed(f)
	}
	return &Result{Success: true, GameState: sess.State}
}

func failed(f *Failure) *Result {
	return &Result{Success: false, Reason: f.Reason}
}

// searchGame allocates a lobby slot and moves the state to
// waiting-for-game. Only valid from idle.
func (c *Controller) searchGame(ctx context.Context, sess *models.SessionRecord, cmd Command) *Failure {
	state := sess.State
	if state.HasGameStarted() || state.IsWaitingForGame() {
		return errInvalidState()
	}
	// Unlike cancel-search and start-game, the search form names the
	// player count "players".
	players, ok1 := parsePositive(cmd.get("players"))
	rows, ok2 := parsePositive(cmd.get("rows"))
	columns, ok3 := parsePositive(cmd.get("columns"))
	if !(ok1 && ok2 && ok3) || players > len(models.Palette) {
		return errBadData()
	}

	channel, err := c.lobby.AssignRoom(ctx, players, rows, columns)
	if err != nil {
		logger.Log.Errorf("assigning room for %s: %v", sess.Username, err)
		return errStoreFailure()
	}
	if err := state.EnterLobby(channel, players, rows, columns); err != nil {
		// The slot was taken but the state refused the assignment; give
		// it back before reporting.
		c.compensate(ctx, c.lobby.Retract, channel, sess.Username)
		return errBadData()
	}
	if err := c.store.PutState(ctx, sess.SessionID, state); err != nil {
		c.compensate(ctx, c.lobby.Retract, channel, sess.Username)
		state.Reset()
		return errStoreFailure()
	}
	return nil
}

// cancelSearch releases the held lobby slot and returns to idle. The
// submitted parameters must match the stored state exactly, which
// rejects stale or forged client state.
func (c *Controller) cancelSearch(ctx context.Context, sess *models.SessionRecord, cmd Command) *Failure {
	state := sess.State
	if state.HasGameStarted() || !state.IsWaitingForGame() {
		return errInvalidState()
	}
	players, ok1 := parsePositive(cmd.get("totalPlayers"))
	rows, ok2 := parsePositive(cmd.get("rows"))
	columns, ok3 := parsePositive(cmd.get("columns"))
	channel := cmd.get("channel")
	if !(ok1 && ok2 && ok3) || channel == "" {
		return errBadData()
	}
	if players != state.PlayerCount() || rows != state.Rows() ||
		columns != state.Columns() || channel != state.ChannelName() {
		return errParameterMismatch()
	}

	if err := c.lobby.Release(ctx, channel, players); err != nil {
		logger.Log.Errorf("releasing room %s: %v", channel, err)
		return errStoreFailure()
	}
	if err := state.LeaveLobby(); err != nil {
		c.compensate(ctx, c.lobby.Restore, channel, sess.Username)
		return errInvalidState()
	}
	if err := c.store.PutState(ctx, sess.SessionID, state); err != nil {
		c.compensate(ctx, c.lobby.Restore, channel, sess.Username)
		return errStoreFailure()
	}
	return nil
}

// startGame has two sub-cases. With an eventName parameter it is seat 1
// broadcasting the proceed signal to the lobby; otherwise it is one
// player confirming the lobby is complete and taking a seat.
func (c *Controller) startGame(ctx context.Context, sess *models.SessionRecord, cmd Command) *Failure {
	state := sess.State
	players, ok1 := parsePositive(cmd.get("totalPlayers"))
	rows, ok2 := parsePositive(cmd.get("rows"))
	columns, ok3 := parsePositive(cmd.get("columns"))
	position, ok4 := parsePositive(cmd.get("onlinePosition"))
	channel := cmd.get("channel")
	if !(ok1 && ok2 && ok3 && ok4) || channel == "" || position > players {
		return errBadData()
	}
	if players != state.PlayerCount() || rows != state.Rows() ||
		columns != state.Columns() || channel != state.ChannelName() {
		return errParameterMismatch()
	}

	if eventName := cmd.get("eventName"); eventName != "" {
		// Broadcast path: accepted only from the stored seat 1.
		if pos, ok := state.OnlinePosition(); !ok || pos != 1 {
			return &Failure{Code: CodeInvalidState, Reason: "only the first player may signal the start"}
		}
		if err := c.broker.Trigger(channel, eventName, map[string]interface{}{}); err != nil {
			logger.Log.Errorf("triggering %s on %s: %v", eventName, channel, err)
			return errBrokerFailure()
		}
		return nil
	}

	if state.HasGameStarted() || !state.IsWaitingForGame() {
		return errInvalidState()
	}

	room, err := c.lobby.Room(ctx, channel)
	if errors.Is(err, persistence.ErrNotFound) {
		return errLobbyIncomplete("lobby does not exist")
	}
	if err != nil {
		logger.Log.Errorf("looking up room for %s: %v", channel, err)
		return errStoreFailure()
	}
	subscribed, err := c.broker.Occupancy(channel)
	if err != nil {
		logger.Log.Errorf("occupancy of %s: %v", channel, err)
		return errBrokerFailure()
	}
	// Everyone must be both registered in the room row and actually
	// subscribed: a player who registered then dropped the connection
	// blocks the start.
	if subscribed < players {
		return errLobbyIncomplete("lobby is not full yet")
	}
	if subscribed != room.Occupants {
		return errLobbyIncomplete("some user is offline")
	}

	if err := state.StartGame(position); err != nil {
		return errBadData()
	}
	if err := c.store.PutState(ctx, sess.SessionID, state); err != nil {
		return errStoreFailure()
	}
	return nil
}

// resetState releases any held room and overwrites the state with a
// fresh instance. Valid from any state.
func (c *Controller) resetState(ctx context.Context, sess *models.SessionRecord) *Failure {
	channel := sess.State.ChannelName()
	players := sess.State.PlayerCount()
	if channel != "" {
		if err := c.lobby.Release(ctx, channel, players); err != nil {
			logger.Log.Errorf("releasing room %s: %v", channel, err)
			return errStoreFailure()
		}
	}
	fresh := models.NewGameState()
	if err := c.store.PutState(ctx, sess.SessionID, fresh); err != nil {
		c.compensate(ctx, c.lobby.Restore, channel, sess.Username)
		return errStoreFailure()
	}
	sess.State = fresh
	return nil
}

// compensate backs out an allocator side effect after a later step
// failed, keeping room occupancy exact. A failed compensation is only
// loggable: the command already failed.
func (c *Controller) compensate(ctx context.Context, undo func(context.Context, string) error, channel, username string) {
	if channel == "" {
		return
	}
	if err := undo(ctx, channel); err != nil {
		logger.Log.Errorf("compensating room occupancy on %s for %s: %v", channel, username, err)
	}
}

// parsePositive accepts decimal digit strings only, matching the
// endpoint's string-encoded field contract.
func parsePositive(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
