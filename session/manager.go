// Package session enforces session exclusivity for whitelisted students:
// one registered identity holds at most one active session, guarded by a
// timestamped active flag with a timeout override.
package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"campuschat/contract"
	"campuschat/domain"
	"campuschat/errors"
	"campuschat/store"
)

// DefaultTimeout is the safety valve: a session older than this no longer
// blocks a new login, covering clients that vanished without logging out.
const DefaultTimeout = time.Hour

type Manager struct {
	store    contract.DocumentStore
	provider contract.IdentityProvider
	keys     *Keystore
	log      *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	mu        sync.Mutex
	active    bool
	regNo     string
	stopWatch func()
	onRevoked func(reason string)
}

func NewManager(
	docs contract.DocumentStore,
	provider contract.IdentityProvider,
	keys *Keystore,
	log *slog.Logger,
	timeout time.Duration,
) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{
		store:    docs,
		provider: provider,
		keys:     keys,
		log:      log,
		timeout:  timeout,
		now:      time.Now,
	}
}

// OnRevoked installs the user-visible notice callback fired when the
// session is revoked remotely (isRegistered flipped off by an admin).
func (m *Manager) OnRevoked(fn func(reason string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRevoked = fn
}

// Login authenticates a whitelisted student and claims the session.
//
// The exclusivity guard runs before credential verification: a record that
// is marked active and was refreshed inside the timeout window rejects the
// attempt outright, whoever is asking.
func (m *Manager) Login(ctx context.Context, email, password, regNo string) (domain.Identity, error) {
	student, err := m.getStudent(ctx, regNo)
	if err != nil {
		return domain.Identity{}, err
	}

	if student.Session().Locked(m.now(), m.timeout) {
		return domain.Identity{}, errors.ErrSessionActive
	}

	identity, err := m.provider.SignIn(ctx, email, password)
	if err != nil {
		if stderrors.Is(err, errors.ErrInvalidCredentials) {
			return domain.Identity{}, err
		}
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}

	if err := m.claim(ctx, regNo, email); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}

// Signup creates the provider credential for a whitelisted registration
// number that has never been bound to an email, then claims the session.
func (m *Manager) Signup(ctx context.Context, email, password, regNo string) (domain.Identity, error) {
	student, err := m.getStudent(ctx, regNo)
	if err != nil {
		return domain.Identity{}, err
	}

	if student.Email != "" {
		return domain.Identity{}, errors.ErrAlreadyRegistered
	}

	identity, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		return domain.Identity{}, err
	}

	if err := m.claim(ctx, regNo, email); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}

// Logout releases the session. The flag update is best effort: a store
// failure is logged and must never block the provider sign-out.
func (m *Manager) Logout(ctx context.Context, regNo string) error {
	m.teardownWatch()

	if regNo != "" {
		err := m.store.Set(ctx, store.Students, regNo, map[string]any{
			"isRegistered": false,
		}, true)
		if err != nil {
			m.log.Error("Failed to release session flag", "regNo", regNo, "error", err)
		}
	}

	if err := m.keys.Clear(); err != nil {
		m.log.Error("Failed to clear recovery key", "error", err)
	}

	m.mu.Lock()
	m.active = false
	m.regNo = ""
	m.mu.Unlock()

	return m.provider.SignOut(ctx)
}

// Resume re-binds the revocation watch after a restart, using the
// recovery key persisted by the last successful login.
func (m *Manager) Resume() error {
	regNo, err := m.keys.Load()
	if err != nil || regNo == "" {
		return err
	}
	m.mu.Lock()
	m.active = true
	m.regNo = regNo
	m.mu.Unlock()
	m.beginWatch(regNo)
	return nil
}

// Active reports whether a session is locally considered held.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

func (m *Manager) getStudent(ctx context.Context, regNo string) (domain.Student, error) {
	doc, err := m.store.Get(ctx, store.Students, regNo)
	if stderrors.Is(err, errors.ErrNotFound) {
		return domain.Student{}, errors.ErrNotWhitelisted
	}
	if err != nil {
		return domain.Student{}, err
	}
	return studentFromDoc(doc), nil
}

// claim marks the record active, binds the email, persists the recovery
// key and arms the revocation watch.
func (m *Manager) claim(ctx context.Context, regNo, email string) error {
	err := m.store.Set(ctx, store.Students, regNo, map[string]any{
		"email":        email,
		"isRegistered": true,
		"lastLogin":    store.Millis(m.now()),
	}, true)
	if err != nil {
		return err
	}

	if err := m.keys.Save(regNo); err != nil {
		m.log.Error("Failed to persist recovery key", "regNo", regNo, "error", err)
	}

	m.mu.Lock()
	m.active = true
	m.regNo = regNo
	m.mu.Unlock()
	m.beginWatch(regNo)
	return nil
}

// beginWatch subscribes to the student's own record and forces a logout
// if the active flag is cleared remotely while the session is held.
func (m *Manager) beginWatch(regNo string) {
	m.teardownWatch()

	stop := m.store.Subscribe(store.Students, store.ByID{ID: regNo}, func(docs []contract.Document) {
		if len(docs) != 1 {
			return
		}
		student := studentFromDoc(docs[0])
		if student.IsRegistered {
			return
		}

		m.mu.Lock()
		revoked := m.active
		notify := m.onRevoked
		m.mu.Unlock()
		if !revoked {
			return
		}

		m.log.Warn("Session revoked remotely, forcing logout", "regNo", regNo)
		if err := m.Logout(context.Background(), ""); err != nil {
			m.log.Error("Forced logout failed", "error", err)
		}
		if notify != nil {
			notify("Session revoked by administrator.")
		}
	})

	m.mu.Lock()
	m.stopWatch = stop
	m.mu.Unlock()
}

func (m *Manager) teardownWatch() {
	m.mu.Lock()
	stop := m.stopWatch
	m.stopWatch = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func studentFromDoc(doc contract.Document) domain.Student {
	return domain.Student{
		RegNo:        doc.ID,
		Email:        store.FieldString(doc.Fields, "email"),
		IsRegistered: store.FieldBool(doc.Fields, "isRegistered"),
		LastLogin:    store.FieldTime(doc.Fields, "lastLogin"),
	}
}
