package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/watchmenow/watchmenow-be/internal/auth"
	"github.com/watchmenow/watchmenow-be/internal/database"
	"github.com/watchmenow/watchmenow-be/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type sentMail struct {
	user models.User
	link string
}

type fakeMailer struct {
	sent chan sentMail
	err  error
}

func (m *fakeMailer) SendVerification(_ context.Context, user models.User, link string) error {
	m.sent <- sentMail{user: user, link: link}
	return m.err
}

type published struct {
	action  string
	payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(action string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{action: action, payload: payload})
}

func (n *recordingNotifier) actions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.action)
	}
	return out
}

type testEnv struct {
	store    *database.SQLiteStore
	users    *UserService
	films    *FilmService
	mailer   *fakeMailer
	notifier *recordingNotifier
}

func setupEnv(t *testing.T, tokenTTL time.Duration) *testEnv {
	t.Helper()

	store, err := database.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	mailer := &fakeMailer{sent: make(chan sentMail, 16)}
	notifier := &recordingNotifier{}

	users := NewUserService(store, store, auth.NewTokenManager("test-secret", tokenTTL), mailer, "https://watchmenow.test/")
	users.hashCost = bcrypt.MinCost

	films := NewFilmService(store, users, notifier)
	films.now = steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	return &testEnv{store: store, users: users, films: films, mailer: mailer, notifier: notifier}
}

// steppingClock returns a time source that advances one second per call.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func (e *testEnv) register(t *testing.T, email, password, name string) models.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), RegisterInput{Email: email, Password: password, Name: name})
	require.NoError(t, err)
	return u
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	res, err := e.users.Login(context.Background(), email, password)
	require.NoError(t, err)
	return res.Token
}

func (e *testEnv) registerAndLogin(t *testing.T, email string) string {
	t.Helper()
	e.register(t, email, "pw", "Ann")
	return e.login(t, email, "pw")
}

func (e *testEnv) waitForMail(t *testing.T) sentMail {
	t.Helper()
	select {
	case m := <-e.mailer.sent:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("verification e-mail was not sent")
		return sentMail{}
	}
}

var errSMTPDown = errors.New("smtp down")
