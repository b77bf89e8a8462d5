// Package httpserver exposes the authentication service over HTTP/JSON.
package httpserver

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/contactsapi/internal/logging"
	"github.com/dmitrijs2005/contactsapi/internal/server/metrics"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/dmitrijs2005/contactsapi/internal/server/services"
	"github.com/go-chi/chi/v5"
)

// Sessions is the session manager as seen by the handlers.
type Sessions interface {
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, account *models.Account) error
	Authenticate(ctx context.Context, accessToken string) (*models.Account, error)
}

type Verifications interface {
	Redeem(ctx context.Context, token string) error
	Resend(ctx context.Context, email, baseURL string) error
}

type Accounts interface {
	Signup(ctx context.Context, email, password, baseURL string) (*models.Account, error)
}

type Avatars interface {
	Enabled() bool
	PresignUpload(ctx context.Context, account *models.Account) (key, url string, err error)
	Confirm(ctx context.Context, account *models.Account, key string) error
	AvatarURL(ctx context.Context, account *models.Account) (string, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options bundles the router dependencies. PublicURL, when set, is the base
// of verification links; otherwise the request's own origin is used.
type Options struct {
	Sessions      Sessions
	Verifications Verifications
	Accounts      Accounts
	Avatars       Avatars
	Health        Pinger
	Logger        logging.Logger
	Metrics       *metrics.Metrics
	PublicURL     string
}

// middlewares lists the outer chain, outermost first. recoverer runs inside
// accessLog so panics are logged with the request-scoped logger and the 500
// is recorded.
func middlewares(l logging.Logger, m *metrics.Metrics) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		requestID,
		accessLog(l, m),
		recoverer(l),
	}
}

type handlers struct {
	opts Options
}

// NewRouter wires middleware and routes. API routes live under /api, the
// Prometheus endpoint at /metrics.
func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	h := &handlers{opts: opts}

	root := chi.NewRouter()
	root.Use(middlewares(opts.Logger, opts.Metrics)...)

	root.Handle("/metrics", opts.Metrics.Handler())

	root.Route("/api", func(r chi.Router) {
		r.Get("/healthchecker", h.healthcheck)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.signup)
			r.Post("/login", h.login)
			r.Get("/refresh-token", h.refreshToken)
			r.Get("/verify/{token}", h.verifyEmail)
			r.Post("/verify/resend", h.resendVerification)

			r.With(requireAccount(opts.Sessions)).Post("/logout", h.logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAccount(opts.Sessions))
			r.Get("/me", h.me)
			r.Post("/avatar/presign", h.avatarPresign)
			r.Post("/avatar/confirm", h.avatarConfirm)
		})
	})

	return root
}
