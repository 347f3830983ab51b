package signaling

import "encoding/json"

// Message types accepted from clients.
const (
	TypeJoinRoom     = "join-room"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

// Message types sent to clients.
const (
	TypeExistingUsers = "existing-users"
	TypeUserJoined    = "user-joined"
	TypeUserLeft      = "user-left"
)

// Envelope is the JSON envelope carried inside every text frame, in both
// directions: {"type": ..., "data": ...}. The data member stays raw so
// session-negotiation payloads pass through the relay verbatim.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// JoinRoomData is the payload of a join-room message.
type JoinRoomData struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// ExistingUsersData lists the members already in a room, sent to a
// client right after it joins.
type ExistingUsersData struct {
	Users []string `json:"users"`
}

// PresenceData announces a single user joining or leaving a room.
type PresenceData struct {
	UserID string `json:"userId"`
}
