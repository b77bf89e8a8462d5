package httpserver

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/contactsapi/internal/common"
	"github.com/dmitrijs2005/contactsapi/internal/logging"
)

var (
	errNotAuthenticated    = errors.New("not authenticated")
	errInvalidRefreshToken = errors.New("invalid refresh token")
	errAvatarsDisabled     = errors.New("avatar storage is not configured")
	errStoreUnavailable    = errors.New("credential store unavailable")
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

// validationError carries a client input problem.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalid(msg string) error { return &validationError{msg: msg} }

type mapping struct {
	target error
	status int
	detail string
}

// errorTable maps domain errors to responses. The first match wins.
var errorTable = []mapping{
	{common.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{common.ErrEmailNotVerified, http.StatusUnauthorized, "Email not verified"},
	{errInvalidRefreshToken, http.StatusUnauthorized, "Invalid refresh token"},
	{errNotAuthenticated, http.StatusUnauthorized, "Not authenticated"},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "Could not validate credentials"},
	{common.ErrConflict, http.StatusConflict, "Account already exists"},
	{common.ErrInvalidToken, http.StatusBadRequest, "Verification error"},
	{common.ErrAlreadyVerified, http.StatusBadRequest, "Your email is already verified"},
	{common.ErrInvalidAvatarKey, http.StatusBadRequest, "Invalid avatar key"},
	{errAvatarsDisabled, http.StatusServiceUnavailable, "Avatar storage is not configured"},
	{errStoreUnavailable, http.StatusInternalServerError, "Error connecting to the database"},
}

func resolve(err error) (int, string) {
	var verr *validationError
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity, verr.msg
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.detail
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := resolve(err)
	if status >= http.StatusInternalServerError {
		logging.From(r.Context(), nil).Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", common.BearerScheme)
	}
	writeJSON(w, status, errorBody{Detail: detail})
}
