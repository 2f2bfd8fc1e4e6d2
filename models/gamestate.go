// models/gamestate.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Palette is the fixed ordered set of player colors. A game's player
// list is always a prefix of this slice, so the maximum player count is
// its length.
var Palette = []string{
	"red", "green", "blue", "yellow", "cyan", "purple",
	"violet", "pink", "orange", "brown", "maroon", "grey",
}

// Phase is the matchmaking phase derived from the state flags.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaiting
	PhasePlaying
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting-for-game"
	case PhasePlaying:
		return "playing"
	default:
		return "idle"
	}
}

// GameState is one user's matchmaking and game progress. Fields are
// unexported: every mutation goes through a validating method, so a
// stored state can only hold combinations the transitions allow.
type GameState struct {
	started        bool
	waiting        bool
	waitingForMove bool
	rows           *int
	columns        *int
	players        []string
	eliminated     []string
	channel        string
	position       *int
	currentBoard   Board
	previousBoard  Board
}

// NewGameState returns a fresh idle state.
func NewGameState() *GameState {
	return &GameState{}
}

func (g *GameState) HasGameStarted() bool   { return g.started }
func (g *GameState) IsWaitingForGame() bool { return g.waiting }
func (g *GameState) IsWaitingForMove() bool { return g.waitingForMove }
func (g *GameState) ChannelName() string    { return g.channel }

// Rows reports the configured row count, 0 when unset.
func (g *GameState) Rows() int {
	if g.rows == nil {
		return 0
	}
	return *g.rows
}

// Columns reports the configured column count, 0 when unset.
func (g *GameState) Columns() int {
	if g.columns == nil {
		return 0
	}
	return *g.columns
}

func (g *GameState) PlayerCount() int { return len(g.players) }

// Players returns the ordered player color list.
func (g *GameState) Players() []string {
	out := make([]string, len(g.players))
	copy(out, g.players)
	return out
}

// EliminatedPlayers returns the eliminated colors in elimination order.
func (g *GameState) EliminatedPlayers() []string {
	out := make([]string, len(g.eliminated))
	copy(out, g.eliminated)
	return out
}

// OnlinePosition reports the 1-based seat index; ok is false until a
// game has started.
func (g *GameState) OnlinePosition() (pos int, ok bool) {
	if g.position == nil {
		return 0, false
	}
	return *g.position, true
}

func (g *GameState) CurrentBoard() Board  { return g.currentBoard.Clone() }
func (g *GameState) PreviousBoard() Board { return g.previousBoard.Clone() }

// Phase derives the lifecycle phase from the flags.
func (g *GameState) Phase() Phase {
	switch {
	case g.started:
		return PhasePlaying
	case g.waiting:
		return PhaseWaiting
	default:
		return PhaseIdle
	}
}

// EnterLobby moves an idle state into waiting-for-game with the given
// lobby assignment.
func (g *GameState) EnterLobby(channel string, players, rows, columns int) error {
	if g.started || g.waiting {
		return fmt.Errorf("cannot enter lobby from phase %s", g.Phase())
	}
	if players < 1 || players > len(Palette) {
		return fmt.Errorf("player count %d out of range [1,%d]", players, len(Palette))
	}
	if rows < 1 || columns < 1 {
		return fmt.Errorf("board size %dx%d is not positive", rows, columns)
	}
	if !strings.HasPrefix(channel, "presence-") {
		return fmt.Errorf("channel %q is not a presence channel", channel)
	}
	g.waiting = true
	g.started = false
	g.channel = channel
	g.rows = &rows
	g.columns = &columns
	g.players = append([]string(nil), Palette[:players]...)
	return nil
}

// LeaveLobby clears a waiting-for-game state back to idle.
func (g *GameState) LeaveLobby() error {
	if !g.waiting || g.started {
		return fmt.Errorf("cannot leave lobby from phase %s", g.Phase())
	}
	*g = GameState{}
	return nil
}

// StartGame moves a waiting state into playing at the given seat.
// Seat 1 moves first, so every other seat starts waiting for a move.
func (g *GameState) StartGame(position int) error {
	if !g.waiting || g.started {
		return fmt.Errorf("cannot start game from phase %s", g.Phase())
	}
	if position < 1 || position > len(g.players) {
		return fmt.Errorf("seat %d out of range [1,%d]", position, len(g.players))
	}
	g.waiting = false
	g.started = true
	g.position = &position
	g.waitingForMove = position != 1
	return nil
}

// SetWaitingForMove toggles the move flag of a started game.
func (g *GameState) SetWaitingForMove(waiting bool) error {
	if !g.started {
		return fmt.Errorf("no game running")
	}
	g.waitingForMove = waiting
	return nil
}

// EliminatePlayer appends a color to the elimination order. The last
// remaining player is never eliminated.
func (g *GameState) EliminatePlayer(color string) error {
	if !g.started {
		return fmt.Errorf("no game running")
	}
	active := false
	for _, p := range g.players {
		if p == color {
			active = true
			break
		}
	}
	if !active {
		return fmt.Errorf("color %q is not playing", color)
	}
	for _, e := range g.eliminated {
		if e == color {
			return fmt.Errorf("color %q already eliminated", color)
		}
	}
	if len(g.eliminated)+1 >= len(g.players) {
		return fmt.Errorf("cannot eliminate the last remaining player")
	}
	g.eliminated = append(g.eliminated, color)
	return nil
}

// UpdateBoard rotates the current board into the previous slot and
// installs the given one.
func (g *GameState) UpdateBoard(b Board) error {
	if err := b.Validate(); err != nil {
		return err
	}
	g.previousBoard = g.currentBoard
	g.currentBoard = b.Clone()
	return nil
}

// Reset returns the state to a fresh idle instance.
func (g *GameState) Reset() {
	*g = GameState{}
}

// gameStateJSON is the wire shape. Key names match the stored format of
// the session table, so states round-trip against existing rows.
type gameStateJSON struct {
	IsGameRunning     bool      `json:"isGameRunning"`
	IsWaitingForGame  bool      `json:"isWaitingForGame"`
	IsWaitingForMove  bool      `json:"isWaitingForMove"`
	Rows              *int      `json:"rows"`
	Columns           *int      `json:"columns"`
	TotalPlayers      *int      `json:"totalPlayers"`
	Channel           *string   `json:"channel"`
	OnlinePosition    *int      `json:"onlinePosition"`
	EliminatedPlayers []string  `json:"eliminatedPlayers,omitempty"`
	CurrentBoard      Board     `json:"currentBoard,omitempty"`
	PreviousBoard     Board     `json:"previousBoard,omitempty"`
}

func (g *GameState) MarshalJSON() ([]byte, error) {
	wire := gameStateJSON{
		IsGameRunning:     g.started,
		IsWaitingForGame:  g.waiting,
		IsWaitingForMove:  g.waitingForMove,
		Rows:              g.rows,
		Columns:           g.columns,
		OnlinePosition:    g.position,
		EliminatedPlayers: g.eliminated,
		CurrentBoard:      g.currentBoard,
		PreviousBoard:     g.previousBoard,
	}
	if n := len(g.players); n > 0 {
		wire.TotalPlayers = &n
	}
	if g.channel != "" {
		wire.Channel = &g.channel
	}
	return json.Marshal(wire)
}

func (g *GameState) UnmarshalJSON(data []byte) error {
	var wire gameStateJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	next := GameState{
		started:        wire.IsGameRunning,
		waiting:        wire.IsWaitingForGame,
		waitingForMove: wire.IsWaitingForMove,
		rows:           wire.Rows,
		columns:        wire.Columns,
		position:       wire.OnlinePosition,
		eliminated:     wire.EliminatedPlayers,
		currentBoard:   wire.CurrentBoard,
		previousBoard:  wire.PreviousBoard,
	}
	if wire.Channel != nil {
		next.channel = *wire.Channel
	}
	if wire.TotalPlayers != nil {
		n := *wire.TotalPlayers
		if n < 0 || n > len(Palette) {
			return fmt.Errorf("totalPlayers %d out of range [0,%d]", n, len(Palette))
		}
		next.players = append([]string(nil), Palette[:n]...)
	}
	if err := next.validate(); err != nil {
		return err
	}
	*g = next
	return nil
}

// validate enforces the cross-field invariants at the JSON boundary.
// Inside the process the transition methods keep them by construction.
func (g *GameState) validate() error {
	if g.started && g.waiting {
		return fmt.Errorf("state cannot be both started and waiting for a game")
	}
	if (g.rows == nil) != (g.columns == nil) {
		return fmt.Errorf("rows and columns must be set together")
	}
	if g.rows != nil && (*g.rows < 1 || *g.columns < 1) {
		return fmt.Errorf("board size %dx%d is not positive", *g.rows, *g.columns)
	}
	if g.position != nil && !g.started {
		return fmt.Errorf("onlinePosition set while no game is running")
	}
	if g.position != nil && (*g.position < 1 || *g.position > len(g.players)) {
		return fmt.Errorf("onlinePosition %d out of range [1,%d]", *g.position, len(g.players))
	}
	inLobbyOrGame := g.waiting || g.started
	if (g.channel != "") != inLobbyOrGame {
		return fmt.Errorf("channel must be set exactly while waiting or playing")
	}
	if g.channel != "" && !strings.HasPrefix(g.channel, "presence-") {
		return fmt.Errorf("channel %q is not a presence channel", g.channel)
	}
	if len(g.players) > 0 && len(g.eliminated) >= len(g.players) {
		return fmt.Errorf("eliminated %d of %d players", len(g.eliminated), len(g.players))
	}
	if len(g.eliminated) > 0 && len(g.players) == 0 {
		return fmt.Errorf("eliminated players without a player list")
	}
	for _, e := range g.eliminated {
		found := false
		for _, p := range g.players {
			if p == e {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("eliminated color %q is not playing", e)
		}
	}
	if err := g.currentBoard.Validate(); err != nil {
		return fmt.Errorf("current board: %w", err)
	}
	if err := g.previousBoard.Validate(); err != nil {
		return fmt.Errorf("previous board: %w", err)
	}
	return nil
}

// Equal reports whether two states hold the same fields. Used by tests
// and the reset path.
func (g *GameState) Equal(other *GameState) bool {
	a, err := json.Marshal(g)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}
