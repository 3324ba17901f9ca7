package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"atlas-civico/models"
)

// Identity is the session shape delivered by the authentication provider on
// each session change. A nil *Identity means the user signed out.
type Identity struct {
	ID           string
	Email        string
	Name         string
	PhotoURL     string
	CreatedAt    time.Time
	LastSignInAt time.Time
}

// FirstSignIn reports whether this is the identity's first-ever sign-in:
// the provider sets creation time equal to last-sign-in time in that case.
func (id Identity) FirstSignIn() bool {
	return id.CreatedAt.Equal(id.LastSignInAt)
}

// Users is the slice of the user store the session manager needs. FindByEmail
// returns (nil, nil) when no record exists.
type Users interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
}

// Manager owns the current session and distributes it to subscribers through
// an explicit subscribe/unsubscribe contract instead of ambient global state.
// Exactly one AppUser record exists per authenticated identity; it is created
// lazily on the first successful sign-in.
type Manager struct {
	users Users
	log   *logrus.Logger

	mu      sync.Mutex
	current *models.User
	subs    map[int]func(*models.User)
	nextSub int
}

func NewManager(users Users, log *logrus.Logger) *Manager {
	return &Manager{
		users: users,
		log:   log,
		subs:  make(map[int]func(*models.User)),
	}
}

// Current returns the active session's user, or nil when signed out.
func (m *Manager) Current() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Subscribe registers fn to be invoked on every session change, immediately
// delivering the current state. The returned unsubscribe func is idempotent.
func (m *Manager) Subscribe(fn func(*models.User)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	current := m.current
	m.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// OnSessionChange consumes one notification from the authentication provider.
// ident == nil is a sign-out.
func (m *Manager) OnSessionChange(ctx context.Context, ident *Identity) error {
	if ident == nil {
		m.setCurrent(nil)
		return nil
	}

	user, err := m.users.FindByEmail(ctx, ident.Email)
	if err != nil {
		return err
	}
	if user == nil {
		created := &models.User{
			Name:      ident.Name,
			Email:     ident.Email,
			PhotoURL:  ident.PhotoURL,
			Role:      models.RoleUser,
			CreatedAt: ident.CreatedAt,
			UpdatedAt: time.Now(),
		}
		user, err = m.users.Create(ctx, created)
		if err != nil {
			return err
		}
		if ident.FirstSignIn() {
			m.log.WithField("email", ident.Email).Info("first sign-in, user record created")
		}
	}

	m.setCurrent(user)
	return nil
}

func (m *Manager) setCurrent(user *models.User) {
	m.mu.Lock()
	m.current = user
	subs := make([]func(*models.User), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(user)
	}
}
