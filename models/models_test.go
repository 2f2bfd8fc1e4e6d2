package models

import "testing"

func TestChannelBase(t *testing.T) {
	if got := ChannelBase(2, 6, 9); got != "presence-2.6.9" {
		t.Errorf("ChannelBase(2, 6, 9) = %q, want %q", got, "presence-2.6.9")
	}
}

func TestRoom_ChannelName(t *testing.T) {
	room := &Room{ChannelBase: "presence-2.6.9", RoomID: "abc123"}
	if got := room.ChannelName(); got != "presence-2.6.9.abc123" {
		t.Errorf("ChannelName() = %q, want %q", got, "presence-2.6.9.abc123")
	}
}

func TestRoomIDFromChannel(t *testing.T) {
	cases := map[string]string{
		"presence-2.6.9.abc123": "abc123",
		"presence-4.8.12.ff00":  "ff00",
		"no-dots":               "",
	}
	for channel, want := range cases {
		if got := RoomIDFromChannel(channel); got != want {
			t.Errorf("RoomIDFromChannel(%q) = %q, want %q", channel, got, want)
		}
	}
}
