package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGameState_NewIsIdle(t *testing.T) {
	state := NewGameState()

	if state.Phase() != PhaseIdle {
		t.Errorf("Expected phase %s, got %s", PhaseIdle, state.Phase())
	}
	if state.HasGameStarted() || state.IsWaitingForGame() || state.IsWaitingForMove() {
		t.Error("Fresh state should have all flags cleared")
	}
	if state.ChannelName() != "" {
		t.Errorf("Fresh state should have no channel, got %q", state.ChannelName())
	}
	if state.Rows() != 0 || state.Columns() != 0 {
		t.Errorf("Fresh state should have zero board size, got %dx%d", state.Rows(), state.Columns())
	}
	if _, ok := state.OnlinePosition(); ok {
		t.Error("Fresh state should have no online position")
	}
}

func TestGameState_EnterLobby(t *testing.T) {
	state := NewGameState()

	err := state.EnterLobby("presence-2.6.9.abc123", 2, 6, 9)
	if err != nil {
		t.Fatalf("EnterLobby failed: %v", err)
	}

	if state.Phase() != PhaseWaiting {
		t.Errorf("Expected phase %s, got %s", PhaseWaiting, state.Phase())
	}
	if state.PlayerCount() != 2 {
		t.Errorf("Expected 2 players, got %d", state.PlayerCount())
	}
	if state.Rows() != 6 || state.Columns() != 9 {
		t.Errorf("Expected board 6x9, got %dx%d", state.Rows(), state.Columns())
	}
	players := state.Players()
	if players[0] != "red" || players[1] != "green" {
		t.Errorf("Expected palette prefix [red green], got %v", players)
	}
}

func TestGameState_EnterLobby_Rejections(t *testing.T) {
	waiting := NewGameState()
	if err := waiting.EnterLobby("presence-2.6.9.abc", 2, 6, 9); err != nil {
		t.Fatalf("EnterLobby failed: %v", err)
	}

	cases := []struct {
		name    string
		state   *GameState
		channel string
		players int
		rows    int
		columns int
	}{
		{"already waiting", waiting, "presence-2.6.9.def", 2, 6, 9},
		{"zero players", NewGameState(), "presence-0.6.9.abc", 0, 6, 9},
		{"too many players", NewGameState(), "presence-13.6.9.abc", len(Palette) + 1, 6, 9},
		{"zero rows", NewGameState(), "presence-2.0.9.abc", 2, 0, 9},
		{"non-presence channel", NewGameState(), "private-abc", 2, 6, 9},
	}
	for _, tc := range cases {
		if err := tc.state.EnterLobby(tc.channel, tc.players, tc.rows, tc.columns); err == nil {
			t.Errorf("%s: EnterLobby should have been rejected", tc.name)
		}
	}
}

func TestGameState_LeaveLobby(t *testing.T) {
	state := NewGameState()
	if err := state.LeaveLobby(); err == nil {
		t.Error("LeaveLobby from idle should be rejected")
	}

	if err := state.EnterLobby("presence-2.6.9.abc", 2, 6, 9); err != nil {
		t.Fatalf("EnterLobby failed: %v", err)
	}
	if err := state.LeaveLobby(); err != nil {
		t.Fatalf("LeaveLobby failed: %v", err)
	}
	if !state.Equal(NewGameState()) {
		t.Error("LeaveLobby should return the state to idle")
	}
}

func TestGameState_StartGame(t *testing.T) {
	for seat := 1; seat <= 2; seat++ {
		state := NewGameState()
		if err := state.EnterLobby("presence-2.6.9.abc", 2, 6, 9); err != nil {
			t.Fatalf("EnterLobby failed: %v", err)
		}
		if err := state.StartGame(seat); err != nil {
			t.Fatalf("StartGame(%d) failed: %v", seat, err)
		}
		if state.Phase() != PhasePlaying {
			t.Errorf("Expected phase %s, got %s", PhasePlaying, state.Phase())
		}
		pos, ok := state.OnlinePosition()
		if !ok || pos != seat {
			t.Errorf("Expected online position %d, got %d (ok=%v)", seat, pos, ok)
		}
		// Seat 1 always moves first.
		if got, want := state.IsWaitingForMove(), seat != 1; got != want {
			t.Errorf("Seat %d: expected isWaitingForMove=%v, got %v", seat, want, got)
		}
	}
}

func TestGameState_StartGame_Rejections(t *testing.T) {
	idle := NewGameState()
	if err := idle.StartGame(1); err == nil {
		t.Error("StartGame from idle should be rejected")
	}

	state := NewGameState()
	if err := state.EnterLobby("presence-2.6.9.abc", 2, 6, 9); err != nil {
		t.Fatalf("EnterLobby failed: %v", err)
	}
	if err := state.StartGame(0); err == nil {
		t.Error("StartGame(0) should be rejected")
	}
	if err := state.StartGame(3); err == nil {
		t.Error("StartGame beyond the player count should be rejected")
	}

	if err := state.StartGame(2); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if err := state.StartGame(1); err == nil {
		t.Error("StartGame on a running game should be rejected")
	}
}

func TestGameState_EliminatePlayer(t *testing.T) {
	state := NewGameState()
	if err := state.EnterLobby("presence-3.6.9.abc", 3, 6, 9); err != nil {
		t.Fatalf("EnterLobby failed: %v", err)
	}
	if err := state.EliminatePlayer("red"); err == nil {
		t.Error("EliminatePlayer before the game starts should be rejected")
	}
	if err := state.StartGame(1); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	if err := state.EliminatePlayer("maroon"); err == nil {
		t.Error("Eliminating a color outside the game should be rejected")
	}
	if err := state.EliminatePlayer("green"); err != nil {
		t.Fatalf("EliminatePlayer failed: %v", err)
	}
	if err := state.EliminatePlayer("green"); err == nil {
		t.Error("Eliminating the same color twice should be rejected")
	}
	if err := state.EliminatePlayer("blue"); err != nil {
		t.Fatalf("EliminatePlayer failed: %v", err)
	}
	// red is the last player standing.
	if err := state.EliminatePlayer("red"); err == nil {
		t.Error("The last remaining player must never be eliminated")
	}

	eliminated := state.EliminatedPlayers()
	if len(eliminated) != 2 || eliminated[0] != "green" || eliminated[1] != "blue" {
		t.Errorf("Expected elimination order [green blue], got %v", eliminated)
	}
}

func TestGameState_UpdateBoard(t *testing.T) {
	state := NewGameState()
	first := Board{
		CantorValue(0, 0): {Level: 1, Color: "red", X: 0, Y: 0},
	}
	second := Board{
		CantorValue(1, 2): {Level: 2, Color: "green", X: 1, Y: 2},
	}

	if err := state.UpdateBoard(first); err != nil {
		t.Fatalf("UpdateBoard failed: %v", err)
	}
	if err := state.UpdateBoard(second); err != nil {
		t.Fatalf("UpdateBoard failed: %v", err)
	}

	current := state.CurrentBoard()
	if cell, ok := current[CantorValue(1, 2)]; !ok || cell.Color != "green" {
		t.Errorf("Current board should hold the latest update, got %v", current)
	}
	previous := state.PreviousBoard()
	if cell, ok := previous[CantorValue(0, 0)]; !ok || cell.Color != "red" {
		t.Errorf("Previous board should hold the prior update, got %v", previous)
	}

	bad := Board{5: {Level: 1, Color: "red", X: 0, Y: 0}}
	if err := state.UpdateBoard(bad); err == nil {
		t.Error("UpdateBoard with a mismatched key should be rejected")
	}
}

func TestGameState_JSONRoundTrip(t *testing.T) {
	build := func(steps func(*GameState)) *GameState {
		state := NewGameState()
		steps(state)
		return state
	}

	states := map[string]*GameState{
		"idle": NewGameState(),
		"waiting": build(func(s *GameState) {
			if err := s.EnterLobby("presence-2.6.9.abc", 2, 6, 9); err != nil {
				t.Fatal(err)
			}
		}),
		"playing": build(func(s *GameState) {
			if err := s.EnterLobby("presence-4.8.12.def", 4, 8, 12); err != nil {
				t.Fatal(err)
			}
			if err := s.StartGame(3); err != nil {
				t.Fatal(err)
			}
			if err := s.EliminatePlayer("blue"); err != nil {
				t.Fatal(err)
			}
			if err := s.UpdateBoard(Board{CantorValue(2, 3): {Level: 2, Color: "red", X: 2, Y: 3}}); err != nil {
				t.Fatal(err)
			}
		}),
	}

	for name, state := range states {
		data, err := json.Marshal(state)
		if err != nil {
			t.Fatalf("%s: Marshal failed: %v", name, err)
		}
		restored := &GameState{}
		if err := json.Unmarshal(data, restored); err != nil {
			t.Fatalf("%s: Unmarshal failed: %v", name, err)
		}
		if !state.Equal(restored) {
			t.Errorf("%s: round trip changed the state: %s", name, data)
		}
	}
}

func TestGameState_JSONKeys(t *testing.T) {
	state := NewGameState()
	if err := state.EnterLobby("presence-2.6.9.abc", 2, 6, 9); err != nil {
		t.Fatalf("EnterLobby failed: %v", err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, key := range []string{
		"isGameRunning", "isWaitingForGame", "isWaitingForMove",
		"rows", "columns", "totalPlayers", "channel", "onlinePosition",
	} {
		if !strings.Contains(string(data), `"`+key+`"`) {
			t.Errorf("Serialized state is missing key %q: %s", key, data)
		}
	}

	idle, err := json.Marshal(NewGameState())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(idle), `"totalPlayers":null`) {
		t.Errorf("Idle state should serialize totalPlayers as null: %s", idle)
	}
	if !strings.Contains(string(idle), `"channel":null`) {
		t.Errorf("Idle state should serialize channel as null: %s", idle)
	}
}

func TestGameState_UnmarshalRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"started and waiting": `{"isGameRunning":true,"isWaitingForGame":true,"rows":6,"columns":9,"totalPlayers":2,"channel":"presence-2.6.9.abc","onlinePosition":1}`,
		"position while idle": `{"isGameRunning":false,"isWaitingForGame":false,"rows":null,"columns":null,"totalPlayers":null,"channel":null,"onlinePosition":1}`,
		"position out of range": `{"isGameRunning":true,"isWaitingForGame":false,"rows":6,"columns":9,"totalPlayers":2,"channel":"presence-2.6.9.abc","onlinePosition":3}`,
		"channel while idle": `{"isGameRunning":false,"isWaitingForGame":false,"rows":null,"columns":null,"totalPlayers":null,"channel":"presence-2.6.9.abc","onlinePosition":null}`,
		"waiting without channel": `{"isGameRunning":false,"isWaitingForGame":true,"rows":6,"columns":9,"totalPlayers":2,"channel":null,"onlinePosition":null}`,
		"rows without columns": `{"isGameRunning":false,"isWaitingForGame":false,"rows":6,"columns":null,"totalPlayers":null,"channel":null,"onlinePosition":null}`,
		"everyone eliminated": `{"isGameRunning":true,"isWaitingForGame":false,"rows":6,"columns":9,"totalPlayers":2,"channel":"presence-2.6.9.abc","onlinePosition":1,"eliminatedPlayers":["red","green"]}`,
		"too many players": `{"isGameRunning":false,"isWaitingForGame":true,"rows":6,"columns":9,"totalPlayers":13,"channel":"presence-13.6.9.abc","onlinePosition":null}`,
	}
	for name, payload := range cases {
		state := &GameState{}
		if err := json.Unmarshal([]byte(payload), state); err == nil {
			t.Errorf("%s: Unmarshal should have been rejected", name)
		}
	}
}

func TestGameState_Reset(t *testing.T) {
	state := NewGameState()
	if err := state.EnterLobby("presence-2.6.9.abc", 2, 6, 9); err != nil {
		t.Fatalf("EnterLobby failed: %v", err)
	}
	if err := state.StartGame(2); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}

	state.Reset()
	if !state.Equal(NewGameState()) {
		t.Error("Reset should return the state to idle")
	}
}
