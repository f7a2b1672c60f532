// Package stream is the per-room message pipe: an ordered live
// subscription for rendering and a fire-and-forget send path that
// moderates, tags and indexes outbound text.
package stream

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/samber/lo"

	"campuschat/contract"
	"campuschat/domain"
	"campuschat/moderation"
	"campuschat/search"
	"campuschat/store"
)

type Stream struct {
	store     contract.DocumentStore
	log       *slog.Logger
	moderator *moderation.Moderator // nil disables censoring
	index     *search.Index         // nil disables indexing
}

func New(docs contract.DocumentStore, log *slog.Logger, moderator *moderation.Moderator, index *search.Index) *Stream {
	return &Stream{store: docs, log: log, moderator: moderator, index: index}
}

// Subscribe delivers the room's full message list, ascending by
// createdAt, on every append. Returns the unsubscribe function.
func (s *Stream) Subscribe(roomID string, fn func([]domain.Message)) func() {
	return s.store.SubscribeOrdered(store.Rooms, roomID, store.Messages, func(docs []contract.Document) {
		fn(lo.Map(docs, func(doc contract.Document, _ int) domain.Message {
			return messageFromDoc(doc)
		}))
	})
}

// Send appends a message and refreshes the room preview. Blank text or a
// missing room/sender is a silent no-op. The append itself runs in the
// background: the caller is never blocked, and a failure is logged so the
// UI can keep the typed text for a retry.
func (s *Stream) Send(roomID, senderUID, text string) {
	text = strings.TrimSpace(text)
	if text == "" || roomID == "" || senderUID == "" {
		return
	}

	if s.moderator != nil {
		text = s.moderator.Censor(text)
	}
	lang := whatlanggo.LangToString(whatlanggo.Detect(text).Lang)

	go s.deliver(roomID, senderUID, text, lang)
}

func (s *Stream) deliver(roomID, senderUID, text, lang string) {
	ctx := context.Background()

	id, err := s.store.Add(ctx, store.Rooms, roomID, store.Messages, map[string]any{
		"senderUid": senderUID,
		"text":      text,
		"lang":      lang,
	})
	if err != nil {
		s.log.Error("Message send failed", "room", roomID, "error", err)
		return
	}

	err = s.store.Set(ctx, store.Rooms, roomID, map[string]any{
		"lastMessage": text,
		"updatedAt":   store.Millis(time.Now()),
	}, true)
	if err != nil {
		s.log.Warn("Room preview update failed", "room", roomID, "error", err)
	}

	if s.index != nil {
		if err := s.index.Add(id, roomID, senderUID, text, time.Now()); err != nil {
			s.log.Warn("Message indexing failed", "message", id, "error", err)
		}
	}
}

func messageFromDoc(doc contract.Document) domain.Message {
	return domain.Message{
		ID:        doc.ID,
		SenderUID: store.FieldString(doc.Fields, "senderUid"),
		Text:      store.FieldString(doc.Fields, "text"),
		Lang:      store.FieldString(doc.Fields, "lang"),
		CreatedAt: store.FieldTime(doc.Fields, "createdAt"),
	}
}
