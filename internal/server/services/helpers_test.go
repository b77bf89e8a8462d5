package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/dbx"
	"github.com/dmitrijs2005/contactsapi/internal/server/auth"
	"github.com/dmitrijs2005/contactsapi/internal/server/config"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/dmitrijs2005/contactsapi/internal/server/notify"
	"github.com/dmitrijs2005/contactsapi/internal/server/repositories/accounts"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// hookRepo wraps a repository and lets tests inject failures or interleave
// writes.
type hookRepo struct {
	accounts.Repository

	findErr    error
	insertErr  error
	persistErr error

	// beforePersist runs once, before the first Persist is forwarded.
	beforePersist func()
	once          sync.Once
}

func (r *hookRepo) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.Repository.FindByEmail(ctx, email)
}

func (r *hookRepo) Insert(ctx context.Context, email, hash string) (*models.Account, error) {
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	return r.Repository.Insert(ctx, email, hash)
}

func (r *hookRepo) Persist(ctx context.Context, a *models.Account) error {
	if r.persistErr != nil {
		return r.persistErr
	}
	if r.beforePersist != nil {
		r.once.Do(r.beforePersist)
	}
	return r.Repository.Persist(ctx, a)
}

type fakeRepoManager struct {
	repo accounts.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository        { return m.repo }

type fakeQueue struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (q *fakeQueue) Enqueue(_ context.Context, msg notify.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return true
}

func (q *fakeQueue) sent() []notify.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]notify.Message(nil), q.msgs...)
}

type fixture struct {
	clock    *fakeClock
	mem      *accounts.MemoryRepository
	repo     *hookRepo
	codec    *auth.Codec
	hasher   *auth.BcryptHasher
	queue    *fakeQueue
	cfg      *config.Config
	sessions *SessionService
	verify   *VerificationService
	signup   *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.BcryptCost = bcrypt.MinCost

	f := &fixture{
		clock:  &fakeClock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		mem:    accounts.NewMemoryRepository(),
		hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		queue:  &fakeQueue{},
		cfg:    cfg,
	}
	f.repo = &hookRepo{Repository: f.mem}
	f.codec = auth.NewCodec([]byte(cfg.SecretKey), cfg.Issuer, auth.WithClock(f.clock.Now))

	rm := &fakeRepoManager{repo: f.repo}
	sessions, err := NewSessionService(nil, rm, f.codec, f.hasher, cfg, nil, nil)
	require.NoError(t, err)
	f.sessions = sessions
	f.verify = NewVerificationService(nil, rm, f.codec, f.queue, cfg, nil, nil)
	f.signup = NewAccountService(nil, rm, f.hasher, f.verify, nil)
	return f
}

// addAccount stores an account directly, optionally verified.
func (f *fixture) addAccount(t *testing.T, email, password string, verified bool) *models.Account {
	t.Helper()
	ctx := context.Background()

	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	a, err := f.mem.Insert(ctx, email, hash)
	require.NoError(t, err)

	if verified {
		a.Verified = true
		require.NoError(t, f.mem.Persist(ctx, a))
	}
	return a
}

func (f *fixture) stored(t *testing.T, email string) *models.Account {
	t.Helper()
	a, err := f.mem.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return a
}
