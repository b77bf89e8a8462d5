package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/contactsapi/internal/server/auth"
	"github.com/dmitrijs2005/contactsapi/internal/server/config"
	"github.com/dmitrijs2005/contactsapi/internal/server/metrics"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/dmitrijs2005/contactsapi/internal/server/notify"
	"github.com/dmitrijs2005/contactsapi/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/contactsapi/internal/server/services"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type captureQueue struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (q *captureQueue) Enqueue(_ context.Context, msg notify.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return true
}

func (q *captureQueue) last(t *testing.T) notify.Message {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	require.NotEmpty(t, q.msgs)
	return q.msgs[len(q.msgs)-1]
}

func (q *captureQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type disabledAvatars struct{}

func (disabledAvatars) Enabled() bool { return false }
func (disabledAvatars) PresignUpload(context.Context, *models.Account) (string, string, error) {
	return "", "", errors.New("unexpected call")
}
func (disabledAvatars) Confirm(context.Context, *models.Account, string) error {
	return errors.New("unexpected call")
}
func (disabledAvatars) AvatarURL(context.Context, *models.Account) (string, error) {
	return "", errors.New("unexpected call")
}

type testEnv struct {
	handler http.Handler
	queue   *captureQueue
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T, health Pinger) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "0123456789abcdef0123456789abcdef"
	cfg.PublicURL = "http://contacts.test"

	rm := repomanager.NewMemoryRepositoryManager()
	codec := auth.NewCodec([]byte(cfg.SecretKey), cfg.Issuer)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	queue := &captureQueue{}
	mx := metrics.New()

	sessions, err := services.NewSessionService(nil, rm, codec, hasher, cfg, nil, mx)
	require.NoError(t, err)

	verify := services.NewVerificationService(nil, rm, codec, queue, cfg, nil, mx)
	env := &testEnv{queue: queue, metrics: mx}
	env.handler = NewRouter(Options{
		Sessions:      sessions,
		Verifications: verify,
		Accounts:      services.NewAccountService(nil, rm, hasher, verify, nil),
		Avatars:       disabledAvatars{},
		Health:        health,
		Metrics:       mx,
		PublicURL:     cfg.PublicURL,
	})
	return env
}

type request struct {
	method string
	path   string
	body   any
	form   url.Values
	bearer string
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	switch {
	case req.form != nil:
		r = httptest.NewRequest(req.method, req.path, strings.NewReader(req.form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	case req.body != nil:
		raw, ok := req.body.(string)
		if !ok {
			b, err := json.Marshal(req.body)
			require.NoError(t, err)
			raw = string(b)
		}
		r = httptest.NewRequest(req.method, req.path, strings.NewReader(raw))
		r.Header.Set("Content-Type", "application/json")
	default:
		r = httptest.NewRequest(req.method, req.path, nil)
	}
	if req.bearer != "" {
		r.Header.Set("Authorization", "Bearer "+req.bearer)
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

// signupVerified registers email and follows the emailed link.
func (e *testEnv) signupVerified(t *testing.T, email, password string) {
	t.Helper()

	w := e.do(t, request{method: http.MethodPost, path: "/api/auth/signup", body: credentialsRequest{email, password}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, request{method: http.MethodGet, path: e.verificationPath(t)})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func (e *testEnv) verificationPath(t *testing.T) string {
	t.Helper()
	data, ok := e.queue.last(t).Data.(notify.VerifyEmailData)
	require.True(t, ok)
	u, err := url.Parse(data.URL)
	require.NoError(t, err)
	return u.EscapedPath()
}

func (e *testEnv) login(t *testing.T, email, password string) tokenResponse {
	t.Helper()
	w := e.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: credentialsRequest{email, password}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[tokenResponse](t, w)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
