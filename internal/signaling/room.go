package signaling

import (
	"encoding/json"
	"sync"
	"time"
)

// Room owns the set of clients joined under one room identifier, keyed
// by userId — at most one live client per userId per room. All member
// mutations and broadcast iteration run under one mutex so a broadcast
// never observes a half-removed member.
type Room struct {
	// ID is the room identifier clients join by.
	ID string
	// CreatedAt is the time the room was created.
	CreatedAt time.Time

	mu      sync.Mutex
	clients map[string]*Client

	// onJoined and onLeft are raised on every announced membership
	// change. The Hub subscribes at room creation so the user-joined and
	// user-left broadcasts live with room lifecycle instead of being
	// repeated at each call site.
	onJoined func(room *Room, client *Client)
	onLeft   func(room *Room, client *Client)
}

// NewRoom creates an empty room.
func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		CreatedAt: time.Now(),
		clients:   make(map[string]*Client),
	}
}

// OnJoined registers the single consumer of joined events (the Hub).
func (r *Room) OnJoined(fn func(room *Room, client *Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onJoined = fn
}

// OnLeft registers the single consumer of left events (the Hub).
func (r *Room) OnLeft(fn func(room *Room, client *Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onLeft = fn
}

// AddClient adds a client under its userId. It fails when that userId is
// already a member; callers replacing a connection use ReplaceClient.
// The client's room identity is set while the room lock is held, so
// membership and identity never disagree. With announce set, the room's
// joined hook fires so the Hub can broadcast the arrival.
func (r *Room) AddClient(client *Client, announce bool) bool {
	userID := client.UserID()

	r.mu.Lock()
	if _, exists := r.clients[userID]; exists {
		r.mu.Unlock()
		return false
	}
	r.clients[userID] = client
	client.JoinRoom(r.ID)
	onJoined := r.onJoined
	r.mu.Unlock()

	if announce && onJoined != nil {
		onJoined(r, client)
	}
	return true
}

// ReplaceClient installs client under its userId in one step, displacing
// whatever member held that userId. The whole lookup-displace-install
// sequence runs under the room lock, so two concurrent joins with the
// same userId serialize: one installs, the other displaces it, and
// exactly one member remains with its room identity set.
//
// It returns the displaced client, nil on a genuine first join. Only a
// genuine join fires the joined hook; a replacement stays silent because
// the membership did not really change. Closing the displaced
// connection is the caller's business.
func (r *Room) ReplaceClient(client *Client) *Client {
	userID := client.UserID()

	r.mu.Lock()
	old := r.clients[userID]
	r.clients[userID] = client
	if old != nil && old != client {
		old.LeaveRoom()
	}
	client.JoinRoom(r.ID)
	onJoined := r.onJoined
	r.mu.Unlock()

	if old == nil && onJoined != nil {
		onJoined(r, client)
	}
	return old
}

// RemoveClient removes the member with the given userId. It fails when
// absent. The client's room identity is cleared while the room lock is
// held. With announce set, the room's left hook fires so the Hub can
// broadcast the departure; replace paths stay silent to avoid a
// spurious user-left for what is really a reconnect.
func (r *Room) RemoveClient(userID string, announce bool) bool {
	r.mu.Lock()
	client, ok := r.clients[userID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.clients, userID)
	client.LeaveRoom()
	onLeft := r.onLeft
	r.mu.Unlock()

	if announce && onLeft != nil {
		onLeft(r, client)
	}
	return true
}

// GetClient returns the member with the given userId, nil when absent.
func (r *Room) GetClient(userID string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[userID]
}

// UserIDs returns the userIds of all current members.
func (r *Room) UserIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// Broadcast sends {type, data} to every member except excludeUserID
// (empty string excludes nobody) and returns the number of successful
// sends. Individual send failures do not fail the broadcast.
func (r *Room) Broadcast(msgType string, data any, excludeUserID string) int {
	r.mu.Lock()
	targets := make([]*Client, 0, len(r.clients))
	for userID, client := range r.clients {
		if excludeUserID != "" && userID == excludeUserID {
			continue
		}
		targets = append(targets, client)
	}
	r.mu.Unlock()

	sent := 0
	for _, client := range targets {
		if client.Send(msgType, data) {
			sent++
		}
	}
	return sent
}

// SendToClient sends {type, data} to the named member. It reports false
// when the target is absent or the send fails.
func (r *Room) SendToClient(targetUserID, msgType string, data json.RawMessage) bool {
	client := r.GetClient(targetUserID)
	if client == nil {
		return false
	}
	return client.SendRaw(msgType, data)
}

// IsEmpty reports whether the room has zero members.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients) == 0
}

// ClientCount returns the number of members.
func (r *Room) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// RoomInfo is a point-in-time snapshot of a room for diagnostics.
type RoomInfo struct {
	RoomID      string    `json:"roomId"`
	ClientCount int       `json:"clientCount"`
	UserIDs     []string  `json:"userIds"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Info returns a diagnostic snapshot.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return RoomInfo{
		RoomID:      r.ID,
		ClientCount: len(r.clients),
		UserIDs:     ids,
		CreatedAt:   r.CreatedAt,
	}
}

// Cleanup closes every member connection and empties the room. Used on
// process shutdown; no left events fire.
func (r *Room) Cleanup() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
