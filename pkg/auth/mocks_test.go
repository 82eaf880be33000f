package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/accountkit/pkg/hasher"
	"github.com/dmitrymomot/accountkit/pkg/jwt"
)

const (
	testSigningKey = "test-signing-key-0123456789abcdef"
	testClientURL  = "https://app.test"
	testPassword   = "Str0ng!Passw0rd"
)

// MockMailer is a mock implementation of Mailer.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Sent returns the messages passed to Send, successful or not.
func (m *MockMailer) Sent() []Message {
	var out []Message
	for _, c := range m.Calls {
		if c.Method == "Send" {
			out = append(out, c.Arguments.Get(1).(Message))
		}
	}
	return out
}

// Last returns the most recent message.
func (m *MockMailer) Last(t *testing.T) Message {
	t.Helper()
	sent := m.Sent()
	require.NotEmpty(t, sent, "no message sent")
	return sent[len(sent)-1]
}

// MockStore is a mock implementation of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, acc *Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockStore) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account).Clone(), args.Error(1)
}

func (m *MockStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account).Clone(), args.Error(1)
}

func (m *MockStore) FindByIdentity(ctx context.Context, id Identity) (*Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account).Clone(), args.Error(1)
}

func (m *MockStore) FindByTokenDigest(ctx context.Context, kind TokenKind, digest string) (*Account, error) {
	args := m.Called(ctx, kind, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account).Clone(), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, acc *Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

// MockStateStore is a mock implementation of StateStore.
type MockStateStore struct {
	mock.Mock
}

func (m *MockStateStore) StoreState(ctx context.Context, state string, ttl time.Duration) error {
	args := m.Called(ctx, state, ttl)
	return args.Error(0)
}

func (m *MockStateStore) ConsumeState(ctx context.Context, state string) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store    *MemoryStore
	mailer   *MockMailer
	clock    *testClock
	signer   *jwt.Service
	sessions *SessionIssuer
	svc      *Service
	opts     []Option
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	clock := newTestClock()
	store := NewMemoryStore()
	store.now = clock.Now

	signer, err := jwt.New([]byte(testSigningKey),
		jwt.WithIssuer("accountkit-test"),
		jwt.WithTTL(time.Hour),
		jwt.WithClock(clock.Now),
	)
	require.NoError(t, err)

	base := []Option{
		WithClock(clock.Now),
		WithHasher(hasher.NewBcrypt(bcrypt.MinCost)),
		WithClientURL(testClientURL),
	}
	opts = append(base, opts...)

	mailer := &MockMailer{}
	sessions := NewSessionIssuer(store, signer, opts...)
	return &testEnv{
		store:    store,
		mailer:   mailer,
		clock:    clock,
		signer:   signer,
		sessions: sessions,
		svc:      NewService(store, mailer, sessions, opts...),
		opts:     opts,
	}
}

// acceptMail makes every Send succeed.
func (e *testEnv) acceptMail() *testEnv {
	e.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	return e
}

// opaqueFrom extracts the token from a notification link.
func opaqueFrom(t *testing.T, link string) string {
	t.Helper()
	i := strings.LastIndex(link, "/")
	require.Positive(t, i, "malformed link %q", link)
	return link[i+1:]
}

// registerActive registers and activates an account with testPassword.
func (e *testEnv) registerActive(t *testing.T, email string) *Account {
	t.Helper()
	ctx := context.Background()

	_, err := e.svc.Register(ctx, RegisterInput{
		Name:            "Test User",
		Email:           email,
		Password:        testPassword,
		PasswordConfirm: testPassword,
	})
	require.NoError(t, err)

	acc, _, err := e.svc.Activate(ctx, opaqueFrom(t, e.mailer.Last(t).Link))
	require.NoError(t, err)
	return acc
}
