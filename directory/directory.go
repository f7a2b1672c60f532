// Package directory derives the rendered room lists from a live
// subscription over the current user's rooms: direct rooms enriched with
// counterpart profiles, group rooms filtered by expiry, and one scheduled
// deletion per expiring group room so expiry is self-enforcing.
package directory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"campuschat/contract"
	"campuschat/domain"
	"campuschat/store"
)

// Contact is a direct-room row in the private tab.
type Contact struct {
	RoomID   string
	Name     string
	LastMsg  string
	Time     string
	Unread   int
	PhotoURL string
	Online   bool
}

// Channel is a group-room row in the public tab.
type Channel struct {
	RoomID   string
	Name     string
	Topic    string
	PhotoURL string
	Online   bool
}

// Snapshot is one full recomputation of both lists. Every delivery
// replaces the previous one wholesale; there is no diffing.
type Snapshot struct {
	Contacts []Contact
	Channels []Channel
}

// ProfileReader resolves counterpart display data for direct rooms.
type ProfileReader interface {
	Get(ctx context.Context, uid string) (domain.Profile, error)
}

type Directory struct {
	store    contract.DocumentStore
	profiles ProfileReader
	log      *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	self   string
	timers *TimerRegistry
	unsub  func()
}

func New(docs contract.DocumentStore, profiles ProfileReader, log *slog.Logger) *Directory {
	return &Directory{
		store:    docs,
		profiles: profiles,
		log:      log,
		now:      time.Now,
	}
}

// Start subscribes to every room the user participates in and pushes a
// Snapshot to fn on each change. Stop must be called on identity change
// or teardown; Start on a running directory restarts it.
func (d *Directory) Start(uid string, fn func(Snapshot)) {
	d.Stop()

	timers := NewTimerRegistry(d.deleteExpired)
	filter := store.ArrayContains{Field: "participants", Value: uid}
	unsub := d.store.Subscribe(store.Rooms, filter, func(docs []contract.Document) {
		fn(d.rebuild(uid, timers, docs))
	})

	d.mu.Lock()
	d.self = uid
	d.timers = timers
	d.unsub = unsub
	d.mu.Unlock()
}

// Stop tears the subscription down and drains every pending expiry timer,
// so no deletion fires against a stale session.
func (d *Directory) Stop() {
	d.mu.Lock()
	unsub := d.unsub
	timers := d.timers
	d.unsub = nil
	d.timers = nil
	d.self = ""
	d.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if timers != nil {
		timers.Drain()
	}
}

// rebuild recomputes both lists from scratch out of the latest snapshot.
func (d *Directory) rebuild(uid string, timers *TimerRegistry, docs []contract.Document) Snapshot {
	now := d.now()
	var snap Snapshot
	deadlines := make(map[string]time.Time)

	for _, doc := range docs {
		room := RoomFromDoc(doc)
		switch room.Type {
		case domain.RoomGroup:
			if room.Expired(now) {
				continue
			}
			snap.Channels = append(snap.Channels, Channel{
				RoomID: room.ID,
				Name:   displayName(room.Name),
				Topic:  "Temporary group",
				Online: true,
			})
			if !room.ExpiresAt.IsZero() {
				deadlines[room.ID] = room.ExpiresAt
			}
		default:
			snap.Contacts = append(snap.Contacts, d.contactRow(uid, room))
		}
	}

	timers.Reconcile(deadlines, now)
	return snap
}

// contactRow enriches a direct room with the counterpart's profile. A
// failed lookup degrades to defaults; the row is never dropped.
func (d *Directory) contactRow(uid string, room domain.Room) Contact {
	name := displayName(room.Name)
	photo := domain.DefaultAvatarURL

	if other := room.Counterpart(uid); other != "" {
		profile, err := d.profiles.Get(context.Background(), other)
		switch {
		case err != nil:
			d.log.Warn("Profile enrichment failed, using defaults", "uid", other, "error", err)
		default:
			if profile.Name != "" {
				name = profile.Name
			}
			if profile.PhotoURL != "" {
				photo = profile.PhotoURL
			}
		}
	}

	lastMsg := room.LastMessage
	if lastMsg == "" {
		lastMsg = "Start a conversation"
	}

	return Contact{
		RoomID:   room.ID,
		Name:     name,
		LastMsg:  lastMsg,
		Time:     "Now",
		PhotoURL: photo,
		Online:   true,
	}
}

// deleteExpired is the expiry-timer payload: whichever client reaches the
// deadline first removes the room; a room already gone is a no-op.
func (d *Directory) deleteExpired(roomID string) {
	if err := d.store.Delete(context.Background(), store.Rooms, roomID); err != nil {
		d.log.Error("Expiry deletion failed", "room", roomID, "error", err)
		return
	}
	d.log.Info("Expired group room deleted", "room", roomID)
}

func displayName(name string) string {
	if name == "" {
		return domain.DefaultDisplayName
	}
	return name
}
