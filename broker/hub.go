// broker/hub.go
package broker

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chainreaction/gameserver/logger"
)

// Subscriber is one delivery target registered on a channel.
type Subscriber interface {
	ID() string
	Member() *PresenceMember
	SendEvent(ev *Event) error
}

// Hub is the in-process Broker implementation: channels are plain
// fan-out sets of live connections, presence channels additionally
// track the member identity behind each connection.
type Hub struct {
	appKey    string
	appSecret string
	mu        sync.RWMutex
	channels  map[string]map[string]Subscriber // channel -> socketID -> subscriber
}

func NewHub(appKey, appSecret string) *Hub {
	return &Hub{
		appKey:    appKey,
		appSecret: appSecret,
		channels:  make(map[string]map[string]Subscriber),
	}
}

func (h *Hub) AppKey() string { return h.appKey }

func (h *Hub) AuthorizeChannel(channel, socketID string, member *PresenceMember) (*AuthResponse, error) {
	channelData := ""
	if IsPresenceChannel(channel) {
		if member == nil || member.UserID == "" {
			return nil, ErrUnauthorized
		}
		data, err := json.Marshal(member)
		if err != nil {
			return nil, err
		}
		channelData = string(data)
	}
	return &AuthResponse{
		Auth:        h.appKey + ":" + signature(h.appSecret, socketID, channel, channelData),
		ChannelData: channelData,
	}, nil
}

// Subscribe registers a connection on a channel. Private and presence
// channels require the grant issued by AuthorizeChannel; public
// channels subscribe directly.
func (h *Hub) Subscribe(channel string, sub Subscriber, auth, channelData string) error {
	if IsPresenceChannel(channel) || IsPrivateChannel(channel) {
		if !validSignature(h.appSecret, h.appKey, sub.ID(), channel, channelData, auth) {
			return ErrUnauthorized
		}
	}
	if IsPresenceChannel(channel) {
		member := &PresenceMember{}
		if err := json.Unmarshal([]byte(channelData), member); err != nil || member.UserID == "" {
			return ErrUnauthorized
		}
		if as, ok := sub.(interface{ SetMember(*PresenceMember) }); ok {
			as.SetMember(member)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.channels[channel]
	if subs == nil {
		subs = make(map[string]Subscriber)
		h.channels[channel] = subs
	}
	subs[sub.ID()] = sub
	return nil
}

// Unsubscribe drops a connection from a channel. Empty channels are
// removed from the map.
func (h *Hub) Unsubscribe(channel, socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.channels[channel]
	delete(subs, socketID)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

// UnsubscribeAll drops a connection from every channel it joined.
// Called when the socket closes.
func (h *Hub) UnsubscribeAll(socketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, subs := range h.channels {
		delete(subs, socketID)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) Trigger(channel, event string, payload interface{}) error {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.channels[channel]))
	for _, sub := range h.channels[channel] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	ev := &Event{Channel: channel, Event: event, Data: payload}
	for _, sub := range targets {
		if err := sub.SendEvent(ev); err != nil {
			logger.Log.Warnf("dropping event %s for subscriber %s on %s: %v", event, sub.ID(), channel, err)
		}
	}
	return nil
}

func (h *Hub) Occupancy(channel string) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs, ok := h.channels[channel]
	if !ok {
		return 0, nil
	}
	if !IsPresenceChannel(channel) {
		return len(subs), nil
	}
	members := make(map[string]struct{}, len(subs))
	for _, sub := range subs {
		if m := sub.Member(); m != nil && m.UserID != "" {
			members[m.UserID] = struct{}{}
		}
	}
	return len(members), nil
}

// Occupied reports whether a channel has at least one subscriber.
func (h *Hub) Occupied(channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel]) > 0
}

// Members lists the distinct members of a presence channel.
func (h *Hub) Members(channel string) ([]*PresenceMember, error) {
	if !IsPresenceChannel(channel) {
		return nil, fmt.Errorf("%s is not a presence channel", channel)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []*PresenceMember
	for _, sub := range h.channels[channel] {
		m := sub.Member()
		if m == nil || m.UserID == "" {
			continue
		}
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}
