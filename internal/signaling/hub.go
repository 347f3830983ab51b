package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/meshlink-dev/signaling-server/internal/metrics"
)

// Conn is what the hub needs from a transport connection: the send/close
// surface plus the two single-subscriber event hooks.
type Conn interface {
	Transport
	OnMessage(fn func(text string))
	OnDisconnect(fn func())
}

// Hub is the top-level coordinator: it owns the roomId->Room registry,
// the connection->Client reverse registry, and the routing of every
// inbound message type. Each registry is guarded by its own mutex;
// handlers run on the goroutines of the connections that produced the
// events, so no connection can block another.
type Hub struct {
	logger *slog.Logger

	roomsMu sync.Mutex
	rooms   map[string]*Room

	clientsMu sync.Mutex
	clients   map[Conn]*Client
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		rooms:   make(map[string]*Room),
		clients: make(map[Conn]*Client),
	}
}

// AddConnection wraps a freshly accepted connection in a Client and
// wires its message and disconnect streams into the hub.
func (h *Hub) AddConnection(conn Conn) *Client {
	// A second accepted socket mapped to an object we already track
	// should not occur, but a stale entry must not survive it. The close
	// happens outside the lock and before the new client is installed:
	// closing can re-enter handleDisconnect.
	h.clientsMu.Lock()
	old, hadOld := h.clients[conn]
	if hadOld {
		delete(h.clients, conn)
	}
	h.clientsMu.Unlock()
	if hadOld {
		h.logger.Warn("replacing stale client for duplicate connection", "user_id", old.UserID())
		old.Close()
	}

	client := NewClient(conn, h.logger)
	h.clientsMu.Lock()
	h.clients[conn] = client
	h.clientsMu.Unlock()

	client.OnMessage(h.dispatch)
	conn.OnMessage(client.HandleRaw)
	conn.OnDisconnect(func() { h.handleDisconnect(conn) })

	return client
}

// dispatch routes one parsed envelope by its type field.
func (h *Hub) dispatch(client *Client, env Envelope) {
	switch env.Type {
	case TypeJoinRoom:
		h.handleJoinRoom(client, env.Data)
	case TypeOffer, TypeAnswer, TypeICECandidate:
		h.relay(client, env.Type, env.Data)
	default:
		h.logger.Info("ignoring unknown message type", "type", env.Type, "user_id", client.UserID())
	}
}

// handleJoinRoom installs the client in the requested room.
//
// A userId already present in the room means a reconnect: the room
// atomically swaps the old client for the new one, the old connection
// is force-closed, and no user-left or user-joined is announced, so the
// other members never see a phantom departure. A genuine join
// broadcasts user-joined to everyone else through the room's joined
// hook. Either way the joining client receives the current membership.
func (h *Hub) handleJoinRoom(client *Client, data json.RawMessage) {
	var join JoinRoomData
	if err := json.Unmarshal(data, &join); err != nil {
		h.logger.Warn("dropping malformed join-room payload", "error", err)
		return
	}

	client.SetUserID(join.UserID)
	room := h.getOrCreateRoom(join.RoomID)

	displaced := room.ReplaceClient(client)
	if displaced != nil && displaced != client {
		displaced.Close()
	}

	users := make([]string, 0)
	for _, id := range room.UserIDs() {
		if id != join.UserID {
			users = append(users, id)
		}
	}
	client.Send(TypeExistingUsers, ExistingUsersData{Users: users})

	if displaced != nil {
		metrics.JoinsTotal.WithLabelValues("reconnect").Inc()
		h.logger.Info("user reconnected", "room_id", join.RoomID, "user_id", join.UserID)
		return
	}
	metrics.JoinsTotal.WithLabelValues("join").Inc()
}

// relay forwards an offer, answer or ice-candidate payload to the named
// target inside the sender's room. The three types differ only in
// payload shape, so one parameterized operation covers them: the payload
// is treated as an opaque JSON object, re-tagged with the sender's
// userId, and passed through otherwise untouched. A sender with no
// current room, a room that no longer exists, or an absent target all
// make this a silent no-op, matching fire-and-forget signaling.
func (h *Hub) relay(client *Client, msgType string, data json.RawMessage) {
	roomID := client.RoomID()
	if roomID == "" {
		metrics.RelayMisses.Inc()
		return
	}
	room := h.getRoom(roomID)
	if room == nil {
		metrics.RelayMisses.Inc()
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		h.logger.Warn("dropping malformed relay payload", "type", msgType, "error", err)
		return
	}

	var target string
	if raw, ok := fields["targetUserId"]; ok {
		if err := json.Unmarshal(raw, &target); err != nil {
			h.logger.Warn("dropping relay payload with bad target", "type", msgType, "error", err)
			return
		}
	}

	from, err := json.Marshal(client.UserID())
	if err != nil {
		return
	}
	fields["fromUserId"] = from

	tagged, err := json.Marshal(fields)
	if err != nil {
		h.logger.Error("failed to re-marshal relay payload", "type", msgType, "error", err)
		return
	}

	if !room.SendToClient(target, msgType, tagged) {
		metrics.RelayMisses.Inc()
		return
	}
	metrics.MessagesRelayed.WithLabelValues(msgType).Inc()
}

// handleDisconnect tears down a dead connection: remove the client from
// its room (announced — this is a genuine departure), destroy the room
// if that emptied it, and clear the reverse registry entry.
func (h *Hub) handleDisconnect(conn Conn) {
	h.clientsMu.Lock()
	client, ok := h.clients[conn]
	delete(h.clients, conn)
	h.clientsMu.Unlock()
	if !ok {
		return
	}

	client.MarkDisconnected()

	roomID := client.RoomID()
	if roomID == "" {
		return
	}
	room := h.getRoom(roomID)
	if room == nil {
		return
	}
	room.RemoveClient(client.UserID(), true)
}

// getOrCreateRoom returns the room for roomID, creating and wiring it
// on first use. The hub subscribes to the room's joined and left events
// here, at creation time, so the presence broadcasts and the empty-room
// teardown stay colocated with room lifecycle.
func (h *Hub) getOrCreateRoom(roomID string) *Room {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()

	if room, ok := h.rooms[roomID]; ok {
		return room
	}

	room := NewRoom(roomID)
	room.OnJoined(h.onClientJoined)
	room.OnLeft(h.onClientLeft)
	h.rooms[roomID] = room
	metrics.RoomsActive.Set(float64(len(h.rooms)))
	h.logger.Info("room created", "room_id", roomID)
	return room
}

// onClientJoined runs on every announced arrival: tell everyone except
// the newcomer, who gets existing-users instead.
func (h *Hub) onClientJoined(room *Room, client *Client) {
	h.logger.Info("user joined room", "room_id", room.ID, "user_id", client.UserID())
	room.Broadcast(TypeUserJoined, PresenceData{UserID: client.UserID()}, client.UserID())
}

// onClientLeft runs on every announced removal: tell the remaining
// members, then destroy the room if nobody is left.
func (h *Hub) onClientLeft(room *Room, client *Client) {
	h.logger.Info("user left room", "room_id", room.ID, "user_id", client.UserID())
	room.Broadcast(TypeUserLeft, PresenceData{UserID: client.UserID()}, "")

	if room.IsEmpty() {
		h.removeRoom(room.ID)
	}
}

func (h *Hub) getRoom(roomID string) *Room {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	return h.rooms[roomID]
}

func (h *Hub) removeRoom(roomID string) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		return
	}
	delete(h.rooms, roomID)
	metrics.RoomsActive.Set(float64(len(h.rooms)))
	h.logger.Info("room destroyed", "room_id", roomID)
}

// RoomCount returns the number of active rooms.
func (h *Hub) RoomCount() int {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	return len(h.rooms)
}

// ClientCount returns the number of tracked clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// HubInfo is a point-in-time snapshot of the hub for diagnostics.
type HubInfo struct {
	TotalRooms   int        `json:"totalRooms"`
	TotalClients int        `json:"totalClients"`
	Rooms        []RoomInfo `json:"rooms"`
}

// Info returns a diagnostic snapshot of all rooms.
func (h *Hub) Info() HubInfo {
	h.roomsMu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.roomsMu.Unlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Info())
	}

	return HubInfo{
		TotalRooms:   len(infos),
		TotalClients: h.ClientCount(),
		Rooms:        infos,
	}
}

// Close tears the hub down on process shutdown: every room is cleaned
// up, then every remaining client connection is closed, then both
// registries are cleared. No ordering is defined between rooms.
func (h *Hub) Close() {
	h.roomsMu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.rooms = make(map[string]*Room)
	metrics.RoomsActive.Set(0)
	h.roomsMu.Unlock()

	for _, room := range rooms {
		room.Cleanup()
	}

	h.clientsMu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[Conn]*Client)
	h.clientsMu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
