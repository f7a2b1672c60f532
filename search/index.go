// Package search maintains a Bluge full-text index over stored messages
// and answers /find-style queries scoped to a room or sender.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
)

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

// Hit is one matching message.
type Hit struct {
	MessageID string
	RoomID    string
	Sender    string
	Text      string
	At        time.Time
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Add indexes a message. Indexing is part of the fire-and-forget send
// path, so failures are logged by the caller, never surfaced to the user.
func (i *Index) Add(messageID, roomID, sender, text string, at time.Time) error {
	doc := bluge.NewDocument(messageID).
		AddField(bluge.NewTextField("text", text).StoreValue()).
		AddField(bluge.NewKeywordField("room", roomID).StoreValue()).
		AddField(bluge.NewKeywordField("sender", sender).StoreValue()).
		AddField(bluge.NewKeywordField("at", at.UTC().Format(time.RFC3339Nano)).StoreValue())
	return i.writer.Update(doc.ID(), doc)
}

// Search runs a parsed query and returns the top hits.
func (i *Index) Search(ctx context.Context, q Query) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Closing index reader failed", "error", err)
		}
	}()

	boolean := bluge.NewBooleanQuery()
	if q.Terms != "" {
		boolean.AddMust(bluge.NewMatchQuery(q.Terms).SetField("text"))
	} else {
		boolean.AddMust(bluge.NewMatchAllQuery())
	}
	if q.RoomID != "" {
		boolean.AddMust(bluge.NewTermQuery(q.RoomID).SetField("room"))
	}
	if q.Sender != "" {
		boolean.AddMust(bluge.NewTermQuery(q.Sender).SetField("sender"))
	}

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(q.Limit, boolean))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for match, err := iter.Next(); match != nil; match, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "room":
				hit.RoomID = string(value)
			case "sender":
				hit.Sender = string(value)
			case "text":
				hit.Text = string(value)
			case "at":
				if t, err := time.Parse(time.RFC3339Nano, string(value)); err == nil {
					hit.At = t
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
