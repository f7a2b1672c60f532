package store

// Collection names shared across the chat core. Kept together so the
// inspect tooling and the components agree on the key layout.
const (
	Rooms    = "chatroom"
	Messages = "messages" // sub-collection under a room
	Users    = "users"
	Students = "valid_students"
)
