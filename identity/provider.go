// Package identity is the in-process stand-in for the hosted auth
// provider: email/password credentials in BadgerDB, JWT session tokens,
// and an auth-state change stream for the rest of the core to react to.
package identity

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"campuschat/domain"
	"campuschat/errors"
)

type credential struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"`
}

func credKey(email string) []byte {
	return []byte("cred:" + email)
}

type Provider struct {
	db     *badger.DB
	log    *slog.Logger
	signer TokenSigner

	mu      sync.Mutex
	current *domain.Identity
	subs    map[int]func(*domain.Identity)
	nextSub int
}

func NewProvider(db *badger.DB, log *slog.Logger, signer TokenSigner) *Provider {
	return &Provider{
		db:     db,
		log:    log,
		signer: signer,
		subs:   make(map[int]func(*domain.Identity)),
	}
}

// SignIn verifies credentials and flips the auth state to the signed-in
// identity. Lookup failure and password mismatch collapse into the same
// error to avoid account enumeration.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	cred, err := p.getCredential(email)
	if err != nil {
		return domain.Identity{}, errors.ErrInvalidCredentials
	}

	match, err := ComparePassword(password, cred.PasswordHash)
	if err != nil || !match {
		return domain.Identity{}, errors.ErrInvalidCredentials
	}

	return p.establish(cred)
}

// SignUp creates the credential and signs the new identity in, mirroring
// the hosted provider's create-user behavior.
func (p *Provider) SignUp(ctx context.Context, email, password string) (domain.Identity, error) {
	if err := ValidateSignup(SignupRequest{Email: email, Password: password}); err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hashing failed: %w", err)
	}

	cred := credential{
		UID:          uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UnixMilli(),
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		return domain.Identity{}, err
	}

	err = p.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(credKey(email)); err == nil {
			return errors.ErrAlreadyRegistered
		}
		return txn.Set(credKey(email), raw)
	})
	if err != nil {
		return domain.Identity{}, err
	}

	return p.establish(cred)
}

func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.broadcast(nil)
	return nil
}

// OnAuthStateChange registers a listener and immediately delivers the
// current state, so late subscribers don't miss an already-signed-in
// identity. Returns the unsubscribe function.
func (p *Provider) OnAuthStateChange(fn func(*domain.Identity)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(cloneIdentity(current))

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Provider) establish(cred credential) (domain.Identity, error) {
	token, err := p.signer.Sign(cred.UID, cred.Email)
	if err != nil {
		return domain.Identity{}, errors.ErrTokenGeneration
	}
	identity := domain.Identity{UID: cred.UID, Email: cred.Email, Token: token}

	p.mu.Lock()
	p.current = &identity
	p.mu.Unlock()
	p.broadcast(&identity)

	return identity, nil
}

func (p *Provider) broadcast(identity *domain.Identity) {
	p.mu.Lock()
	listeners := make([]func(*domain.Identity), 0, len(p.subs))
	for _, fn := range p.subs {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(cloneIdentity(identity))
	}
}

func (p *Provider) getCredential(email string) (credential, error) {
	var cred credential
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cred)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return credential{}, errors.ErrNotFound
	}
	return cred, err
}

// cloneIdentity hands each listener its own copy.
func cloneIdentity(identity *domain.Identity) *domain.Identity {
	if identity == nil {
		return nil
	}
	clone := *identity
	return &clone
}
