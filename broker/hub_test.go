package broker

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/chainreaction/gameserver/logger"
)

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	os.Exit(m.Run())
}

// mockSubscriber records delivered events in place of a live websocket.
type mockSubscriber struct {
	id       string
	member   *PresenceMember
	received []*Event
	sendErr  error
}

func (m *mockSubscriber) ID() string              { return m.id }
func (m *mockSubscriber) Member() *PresenceMember { return m.member }

func (m *mockSubscriber) SetMember(member *PresenceMember) { m.member = member }

func (m *mockSubscriber) SendEvent(ev *Event) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, ev)
	return nil
}

func grantFor(t *testing.T, hub *Hub, channel, socketID string, member *PresenceMember) *AuthResponse {
	t.Helper()
	grant, err := hub.AuthorizeChannel(channel, socketID, member)
	if err != nil {
		t.Fatalf("AuthorizeChannel failed: %v", err)
	}
	return grant
}

func TestHub_SubscribePublicChannel(t *testing.T) {
	hub := NewHub("key", "secret")
	sub := &mockSubscriber{id: "sock1"}

	if err := hub.Subscribe("updates", sub, "", ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if !hub.Occupied("updates") {
		t.Error("Channel should be occupied after subscribe")
	}
}

func TestHub_SubscribePrivateChannel(t *testing.T) {
	hub := NewHub("key", "secret")
	sub := &mockSubscriber{id: "sock1"}

	if err := hub.Subscribe("private-abc", sub, "key:bogus", ""); err != ErrUnauthorized {
		t.Errorf("Expected ErrUnauthorized for a forged grant, got %v", err)
	}

	grant := grantFor(t, hub, "private-abc", "sock1", nil)
	if err := hub.Subscribe("private-abc", sub, grant.Auth, ""); err != nil {
		t.Fatalf("Subscribe with a valid grant failed: %v", err)
	}

	// A grant is bound to the socket it was issued for.
	other := &mockSubscriber{id: "sock2"}
	if err := hub.Subscribe("private-abc", other, grant.Auth, ""); err != ErrUnauthorized {
		t.Errorf("Expected ErrUnauthorized for a replayed grant, got %v", err)
	}
}

func TestHub_AuthorizePresenceRequiresMember(t *testing.T) {
	hub := NewHub("key", "secret")
	if _, err := hub.AuthorizeChannel("presence-2.6.9.abc", "sock1", nil); err != ErrUnauthorized {
		t.Errorf("Expected ErrUnauthorized without a member, got %v", err)
	}
}

func TestHub_PresenceOccupancyCountsDistinctMembers(t *testing.T) {
	hub := NewHub("key", "secret")
	channel := "presence-2.6.9.abc"

	subscribePresence := func(socketID, userID string) *mockSubscriber {
		sub := &mockSubscriber{id: socketID}
		grant := grantFor(t, hub, channel, socketID, &PresenceMember{UserID: userID})
		if err := hub.Subscribe(channel, sub, grant.Auth, grant.ChannelData); err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		return sub
	}

	subscribePresence("sock1", "alice")
	subscribePresence("sock2", "bob")
	// A second connection of the same member must not inflate the count.
	subscribePresence("sock3", "alice")

	count, err := hub.Occupancy(channel)
	if err != nil {
		t.Fatalf("Occupancy failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected occupancy 2, got %d", count)
	}

	members, err := hub.Members(channel)
	if err != nil {
		t.Fatalf("Members failed: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("Expected 2 distinct members, got %d", len(members))
	}
}

func TestHub_OccupancyEmptyChannel(t *testing.T) {
	hub := NewHub("key", "secret")
	count, err := hub.Occupancy("presence-2.6.9.missing")
	if err != nil {
		t.Fatalf("Occupancy failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected occupancy 0, got %d", count)
	}
}

func TestHub_SubscribePresenceSetsMember(t *testing.T) {
	hub := NewHub("key", "secret")
	channel := "presence-2.6.9.abc"
	sub := &mockSubscriber{id: "sock1"}

	grant := grantFor(t, hub, channel, "sock1", &PresenceMember{UserID: "alice"})
	if err := hub.Subscribe(channel, sub, grant.Auth, grant.ChannelData); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if sub.member == nil || sub.member.UserID != "alice" {
		t.Errorf("Subscribe should install the presence member, got %+v", sub.member)
	}

	var decoded PresenceMember
	if err := json.Unmarshal([]byte(grant.ChannelData), &decoded); err != nil {
		t.Fatalf("ChannelData should be valid JSON: %v", err)
	}
	if decoded.UserID != "alice" {
		t.Errorf("Expected channel data for alice, got %+v", decoded)
	}
}

func TestHub_TriggerFansOut(t *testing.T) {
	hub := NewHub("key", "secret")
	first := &mockSubscriber{id: "sock1"}
	second := &mockSubscriber{id: "sock2"}
	outsider := &mockSubscriber{id: "sock3"}

	if err := hub.Subscribe("updates", first, "", ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := hub.Subscribe("updates", second, "", ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := hub.Subscribe("other", outsider, "", ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if err := hub.Trigger("updates", "changed", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	for _, sub := range []*mockSubscriber{first, second} {
		if len(sub.received) != 1 {
			t.Fatalf("Subscriber %s should have received 1 event, got %d", sub.id, len(sub.received))
		}
		if sub.received[0].Event != "changed" || sub.received[0].Channel != "updates" {
			t.Errorf("Unexpected event %+v", sub.received[0])
		}
	}
	if len(outsider.received) != 0 {
		t.Errorf("Subscriber on another channel received %d events", len(outsider.received))
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub("key", "secret")
	first := &mockSubscriber{id: "sock1"}
	second := &mockSubscriber{id: "sock2"}

	if err := hub.Subscribe("updates", first, "", ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := hub.Subscribe("updates", second, "", ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := hub.Subscribe("other", first, "", ""); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	hub.Unsubscribe("updates", "sock1")
	count, _ := hub.Occupancy("updates")
	if count != 1 {
		t.Errorf("Expected occupancy 1 after unsubscribe, got %d", count)
	}

	hub.UnsubscribeAll("sock1")
	if hub.Occupied("other") {
		t.Error("UnsubscribeAll should have emptied the other channel")
	}

	hub.UnsubscribeAll("sock2")
	if hub.Occupied("updates") {
		t.Error("Empty channels should be dropped entirely")
	}
}
