package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atlas-civico/models"
)

type fakeUsers struct {
	byEmail map[string]*models.User
	created int
	findErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]*models.User)}
}

func (u *fakeUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u.findErr != nil {
		return nil, u.findErr
	}
	return u.byEmail[email], nil
}

func (u *fakeUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	u.created++
	u.byEmail[user.Email] = user
	return user, nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func firstSignIn(email string) *Identity {
	now := time.Now()
	return &Identity{
		ID:           "id-" + email,
		Email:        email,
		Name:         "Test User",
		CreatedAt:    now,
		LastSignInAt: now,
	}
}

func TestFirstSignInCreatesUserLazily(t *testing.T) {
	users := newFakeUsers()
	m := NewManager(users, quietLog())

	err := m.OnSessionChange(context.Background(), firstSignIn("ana@example.com"))

	require.NoError(t, err)
	assert.Equal(t, 1, users.created)
	current := m.Current()
	require.NotNil(t, current)
	assert.Equal(t, "ana@example.com", current.Email)
	assert.Equal(t, models.RoleUser, current.Role)
}

func TestRepeatSignInDoesNotDuplicateUser(t *testing.T) {
	users := newFakeUsers()
	m := NewManager(users, quietLog())

	require.NoError(t, m.OnSessionChange(context.Background(), firstSignIn("ana@example.com")))

	later := firstSignIn("ana@example.com")
	later.CreatedAt = later.LastSignInAt.Add(-24 * time.Hour)
	require.NoError(t, m.OnSessionChange(context.Background(), later))

	assert.Equal(t, 1, users.created)
}

func TestSignOutClearsCurrent(t *testing.T) {
	users := newFakeUsers()
	m := NewManager(users, quietLog())
	require.NoError(t, m.OnSessionChange(context.Background(), firstSignIn("ana@example.com")))

	require.NoError(t, m.OnSessionChange(context.Background(), nil))

	assert.Nil(t, m.Current())
}

func TestSubscribeDeliversCurrentStateImmediately(t *testing.T) {
	users := newFakeUsers()
	m := NewManager(users, quietLog())
	require.NoError(t, m.OnSessionChange(context.Background(), firstSignIn("ana@example.com")))

	var got *models.User
	unsubscribe := m.Subscribe(func(u *models.User) { got = u })
	defer unsubscribe()

	require.NotNil(t, got)
	assert.Equal(t, "ana@example.com", got.Email)
}

func TestUnsubscribeStopsNotificationsAndIsIdempotent(t *testing.T) {
	users := newFakeUsers()
	m := NewManager(users, quietLog())

	calls := 0
	unsubscribe := m.Subscribe(func(u *models.User) { calls++ })
	require.Equal(t, 1, calls) // immediate delivery

	unsubscribe()
	assert.NotPanics(t, unsubscribe)

	require.NoError(t, m.OnSessionChange(context.Background(), firstSignIn("ana@example.com")))
	assert.Equal(t, 1, calls)
}

func TestFindErrorPropagates(t *testing.T) {
	users := newFakeUsers()
	users.findErr = errors.New("store unavailable")
	m := NewManager(users, quietLog())

	err := m.OnSessionChange(context.Background(), firstSignIn("ana@example.com"))

	assert.Error(t, err)
	assert.Nil(t, m.Current())
}

func TestFirstSignInSignal(t *testing.T) {
	now := time.Now()
	first := Identity{CreatedAt: now, LastSignInAt: now}
	returning := Identity{CreatedAt: now.Add(-time.Hour), LastSignInAt: now}

	assert.True(t, first.FirstSignIn())
	assert.False(t, returning.FirstSignIn())
}
