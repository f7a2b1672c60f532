// Package domain contains core concepts of the campus chat system.
// No runtime, storage, or UI logic should be added here.
package domain

import (
	"sort"
	"strings"
)

// Identity is the stable user identity issued by the identity provider.
// The UID is the only field this core relies on; the token is carried
// for callers that need to present it elsewhere.
type Identity struct {
	UID   string
	Email string
	Token string
}

// DirectRoomID derives the canonical room id for a 1:1 conversation.
// The pair is sorted so that both participants compute the same id,
// which makes direct-room lookup deterministic and duplicate-free.
func DirectRoomID(uid1, uid2 string) string {
	pair := []string{uid1, uid2}
	sort.Strings(pair)
	return strings.Join(pair, "_")
}
