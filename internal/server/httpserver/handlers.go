package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/dmitrijs2005/contactsapi/internal/server/models"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 16

// maxPasswordBytes is the longest password bcrypt accepts.
const maxPasswordBytes = 72

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type avatarConfirmRequest struct {
	Key string `json:"key"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type profileResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type avatarPresignResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict decodes a single JSON object, rejecting unknown fields.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return invalid("Malformed request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalid("Malformed request body")
	}
	return nil
}

// Validate checks signup input. Password bounds are bcrypt's, not a strength
// policy.
func (r credentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, maxPasswordBytes)),
	)
}

func (r emailRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// loginRequest only requires both fields; a malformed email simply fails
// the credential check.
type loginRequest credentialsRequest

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// validate runs v's rules and turns field errors into a 422.
func validate(v validation.Validatable) error {
	err := v.Validate()
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return invalid(fields.Error())
	}
	return err
}

// baseURL is the origin verification links point to, with a trailing slash.
func (h *handlers) baseURL(r *http.Request) string {
	if h.opts.PublicURL != "" {
		if strings.HasSuffix(h.opts.PublicURL, "/") {
			return h.opts.PublicURL
		}
		return h.opts.PublicURL + "/"
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host + "/"
}

func (h *handlers) healthcheck(w http.ResponseWriter, r *http.Request) {
	if h.opts.Health != nil {
		if err := h.opts.Health.Ping(r.Context()); err != nil {
			writeError(w, r, fmt.Errorf("%w: %w", errStoreUnavailable, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Welcome to Contacts API!"})
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.opts.Accounts.Signup(r.Context(), req.Email, req.Password, h.baseURL(r)); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, detailResponse{
		Detail: "User successfully created. Check your email for confirmation.",
	})
}

// login accepts either a JSON body {email, password} or an OAuth2 password
// form with username and password fields.
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, r, invalid("Malformed form body"))
			return
		}
		req.Email = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	} else if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := validate(loginRequest(req)); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.opts.Sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    common.TokenType,
	})
}

func (h *handlers) refreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, r, errNotAuthenticated)
		return
	}

	pair, err := h.opts.Sessions.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			err = errInvalidRefreshToken
		}
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    common.TokenType,
	})
}

func (h *handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.opts.Verifications.Redeem(r.Context(), chi.URLParam(r, "token")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "Email verified"})
}

func (h *handlers) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate(req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.opts.Verifications.Resend(r.Context(), req.Email, h.baseURL(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, detailResponse{
		Detail: "If the account exists and is not verified, a new confirmation email has been sent.",
	})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.opts.Sessions.Logout(r.Context(), accountFrom(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r.Context())
	resp, err := h.profile(r, account)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) profile(r *http.Request, a *models.Account) (*profileResponse, error) {
	resp := &profileResponse{ID: a.ID, Email: a.Email, Verified: a.Verified, CreatedAt: a.CreatedAt}
	if h.avatarsEnabled() {
		url, err := h.opts.Avatars.AvatarURL(r.Context(), a)
		if err != nil {
			return nil, err
		}
		resp.AvatarURL = url
	}
	return resp, nil
}

func (h *handlers) avatarsEnabled() bool {
	return h.opts.Avatars != nil && h.opts.Avatars.Enabled()
}

func (h *handlers) avatarPresign(w http.ResponseWriter, r *http.Request) {
	if !h.avatarsEnabled() {
		writeError(w, r, errAvatarsDisabled)
		return
	}

	key, url, err := h.opts.Avatars.PresignUpload(r.Context(), accountFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avatarPresignResponse{Key: key, UploadURL: url})
}

func (h *handlers) avatarConfirm(w http.ResponseWriter, r *http.Request) {
	if !h.avatarsEnabled() {
		writeError(w, r, errAvatarsDisabled)
		return
	}

	var req avatarConfirmRequest
	if err := decodeStrict(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.opts.Avatars.Confirm(r.Context(), accountFrom(r.Context()), req.Key); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
