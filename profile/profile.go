// Package profile manages the public student profiles used by the
// profile page and the directory's direct-room enrichment.
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"campuschat/contract"
	"campuschat/domain"
	"campuschat/store"
)

type Service struct {
	store contract.DocumentStore
	blobs contract.BlobStore
	log   *slog.Logger
}

func NewService(docs contract.DocumentStore, blobs contract.BlobStore, log *slog.Logger) *Service {
	return &Service{store: docs, blobs: blobs, log: log}
}

func (s *Service) Get(ctx context.Context, uid string) (domain.Profile, error) {
	doc, err := s.store.Get(ctx, store.Users, uid)
	if err != nil {
		return domain.Profile{}, err
	}
	return profileFromDoc(doc), nil
}

// Save merge-writes the editable fields; an absent profile document is
// created on first save.
func (s *Service) Save(ctx context.Context, p domain.Profile) error {
	return s.store.Set(ctx, store.Users, p.UID, map[string]any{
		"Name":   p.Name,
		"regNo":  p.RegNo,
		"branch": p.Branch,
		"year":   p.Year,
		"batch":  p.Batch,
		"bio":    p.Bio,
	}, true)
}

// SetAvatar sniffs the upload, stores it and binds the resulting URL to
// the profile. Only images are accepted.
func (s *Service) SetAvatar(ctx context.Context, uid string, data []byte) (string, error) {
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("avatar must be an image, got %s", mtype.String())
	}

	path := "avatars/" + uid + mtype.Extension()
	if err := s.blobs.Upload(ctx, path, data); err != nil {
		return "", err
	}
	url, err := s.blobs.GetURL(path)
	if err != nil {
		return "", err
	}

	err = s.store.Set(ctx, store.Users, uid, map[string]any{"photoURL": url}, true)
	if err != nil {
		return "", err
	}
	s.log.Info("Avatar updated", "uid", uid, "type", mtype.String())
	return url, nil
}

func profileFromDoc(doc contract.Document) domain.Profile {
	return domain.Profile{
		UID:      doc.ID,
		Name:     store.FieldString(doc.Fields, "Name"),
		RegNo:    store.FieldString(doc.Fields, "regNo"),
		Branch:   store.FieldString(doc.Fields, "branch"),
		Year:     store.FieldString(doc.Fields, "year"),
		Batch:    store.FieldString(doc.Fields, "batch"),
		Bio:      store.FieldString(doc.Fields, "bio"),
		PhotoURL: store.FieldString(doc.Fields, "photoURL"),
	}
}
