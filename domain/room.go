package domain

import "time"

type RoomType string

const (
	RoomDirect RoomType = "direct"
	RoomGroup  RoomType = "group"
)

// Room is a conversation container: a 1:1 direct thread or a temporary
// group thread with an optional expiry.
type Room struct {
	ID           string
	Type         RoomType
	Participants []string
	Name         string
	CreatedBy    string
	Admins       []string
	CreatedAt    time.Time
	ExpiresAt    time.Time // zero for rooms without a lifespan
	LastMessage  string
	UpdatedAt    time.Time
}

// Counterpart returns the one participant that is not self.
// Empty when the room has no other participant (malformed direct room).
func (r Room) Counterpart(self string) string {
	for _, p := range r.Participants {
		if p != self {
			return p
		}
	}
	return ""
}

// Expired reports whether the room is logically dead. Only group rooms
// carry an expiry; a zero ExpiresAt means the room never expires.
func (r Room) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now)
}

// Has reports whether uid participates in the room.
func (r Room) Has(uid string) bool {
	for _, p := range r.Participants {
		if p == uid {
			return true
		}
	}
	return false
}
