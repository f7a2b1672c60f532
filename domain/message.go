// This file defines Message events and related rules.
// Messages are immutable once created; there is no edit or delete.
package domain

import "time"

// Message is a single chat event inside one room. CreatedAt is assigned
// by the store at append time, which defines the rendering order.
type Message struct {
	ID        string
	SenderUID string
	Text      string
	Lang      string
	CreatedAt time.Time
}
