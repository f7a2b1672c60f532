// Package resolver turns navigation intents into room selections:
// open-or-create a direct thread with a counterpart, open a group room by
// id, or create a fresh ephemeral group.
package resolver

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"campuschat/contract"
	"campuschat/directory"
	"campuschat/domain"
	"campuschat/errors"
	"campuschat/store"
)

type Tab string

const (
	TabPrivate Tab = "private"
	TabPublic  Tab = "public"
)

// Selection is what the chat view needs to switch to a room.
type Selection struct {
	RoomID   string
	Name     string
	Topic    string
	PhotoURL string
	Online   bool
	Tab      Tab
}

// CounterpartInfo carries the display data the caller already holds for
// the other participant, so a fresh direct room needs no extra read.
type CounterpartInfo struct {
	UID      string
	Name     string
	PhotoURL string
}

type Resolver struct {
	store contract.DocumentStore
	log   *slog.Logger
	now   func() time.Time
}

func New(docs contract.DocumentStore, log *slog.Logger) *Resolver {
	return &Resolver{store: docs, log: log, now: time.Now}
}

// OpenDirect finds or creates the 1:1 room between self and the
// counterpart. The room id is derived from the sorted identity pair, so
// repeated and concurrent calls converge on the same document instead of
// racing a scan-then-create.
func (r *Resolver) OpenDirect(ctx context.Context, selfUID string, info CounterpartInfo) (Selection, error) {
	roomID := domain.DirectRoomID(selfUID, info.UID)

	_, err := r.store.Get(ctx, store.Rooms, roomID)
	switch {
	case stderrors.Is(err, errors.ErrNotFound):
		fields := map[string]any{
			"type":         string(domain.RoomDirect),
			"participants": []string{selfUID, info.UID},
			"name":         info.Name,
			"createdAt":    store.Millis(r.now()),
		}
		if err := r.store.Set(ctx, store.Rooms, roomID, fields, true); err != nil {
			return Selection{}, err
		}
		r.log.Info("Direct room created", "room", roomID)
	case err != nil:
		return Selection{}, err
	}

	photo := info.PhotoURL
	if photo == "" {
		photo = domain.DefaultAvatarURL
	}
	return Selection{
		RoomID:   roomID,
		Name:     info.Name,
		PhotoURL: photo,
		Online:   true,
		Tab:      TabPrivate,
	}, nil
}

// OpenByID point-reads a room and selects it on the group tab. An absent
// room yields ErrRoomNotFound; callers at the UI boundary ignore it.
func (r *Resolver) OpenByID(ctx context.Context, roomID string) (Selection, error) {
	doc, err := r.store.Get(ctx, store.Rooms, roomID)
	if stderrors.Is(err, errors.ErrNotFound) {
		return Selection{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return Selection{}, err
	}

	room := directory.RoomFromDoc(doc)
	name := room.Name
	if name == "" {
		name = "Group"
	}
	return Selection{
		RoomID: room.ID,
		Name:   name,
		Topic:  "Temporary group",
		Online: true,
		Tab:    TabPublic,
	}, nil
}

// CreateGroup creates an ephemeral group room. A positive lifespan sets
// expiresAt, after which the directory hides the room and deletes it.
func (r *Resolver) CreateGroup(ctx context.Context, name string, members []string, creatorUID string, lifespan time.Duration) (string, error) {
	roomID := uuid.New().String()
	now := r.now()

	fields := map[string]any{
		"type":         string(domain.RoomGroup),
		"name":         name,
		"participants": members,
		"createdBy":    creatorUID,
		"admins":       []string{creatorUID},
		"createdAt":    store.Millis(now),
		"updatedAt":    store.Millis(now),
		"lastMessage":  fmt.Sprintf("Group %q created", name),
	}
	if lifespan > 0 {
		fields["expiresAt"] = store.Millis(now.Add(lifespan))
	}

	if err := r.store.Set(ctx, store.Rooms, roomID, fields, false); err != nil {
		return "", err
	}
	r.log.Info("Group room created", "room", roomID, "members", len(members), "lifespan", lifespan)
	return roomID, nil
}
