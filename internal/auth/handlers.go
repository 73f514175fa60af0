package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"cashcal/internal/log"
)

const (
	stateCookie = "cashcal_oauth_state"
	stateTTL    = 10 * time.Minute
)

// Registrar creates the account on first login.
type Registrar interface {
	GetOrCreateUser(ctx context.Context, userID string) (created bool, err error)
}

// Handlers serves the login redirect and the provider callback.
type Handlers struct {
	provider     Provider
	users        Registrar
	tokens       *Tokens
	frontendURL  string
	secureCookie bool
}

// NewHandlers creates the login handlers. A nil provider makes both
// endpoints answer 503.
func NewHandlers(provider Provider, users Registrar, tokens *Tokens, frontendURL string, secureCookie bool) *Handlers {
	return &Handlers{
		provider:     provider,
		users:        users,
		tokens:       tokens,
		frontendURL:  frontendURL,
		secureCookie: secureCookie,
	}
}

func (h *Handlers) unavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "login is not configured"})
}

// Login starts the flow with a fresh state bound to an HttpOnly cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.unavailable(w)
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the flow and redirects to the frontend with either a
// token or an error message.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		h.unavailable(w)
		return
	}
	ctx := r.Context()
	logger := log.FromContext(ctx)

	// The state is single use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		logger.WarnContext(ctx, "Login refused by provider", "provider_error", e)
		h.redirect(w, r, "error", "Login cancelled.")
		return
	}

	cookie, err := r.Cookie(stateCookie)
	state := q.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		logger.WarnContext(ctx, "Login state mismatch")
		h.redirect(w, r, "error", "Login failed, invalid state.")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.redirect(w, r, "error", "Login failed, missing code.")
		return
	}

	email, err := h.provider.Exchange(ctx, code)
	if err != nil {
		logger.ErrorContext(ctx, "Login exchange failed", log.FieldError, err)
		if errors.Is(err, ErrNoEmail) {
			h.redirect(w, r, "error", "Login failed, no email found.")
			return
		}
		h.redirect(w, r, "error", "Login failed.")
		return
	}

	created, err := h.users.GetOrCreateUser(ctx, email)
	if err != nil {
		logger.ErrorContext(ctx, "Account creation failed", log.FieldUserID, email, log.FieldError, err)
		h.redirect(w, r, "error", "Database account creation failed.")
		return
	}

	token, _, err := h.tokens.Issue(email)
	if err != nil {
		logger.ErrorContext(ctx, "Token issue failed", log.FieldUserID, email, log.FieldError, err)
		h.redirect(w, r, "error", "Login failed.")
		return
	}

	logger.InfoContext(ctx, "User signed in", log.FieldUserID, email, "new_user", created)
	h.redirect(w, r, "token", token)
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, key, value string) {
	target, err := url.Parse(h.frontendURL)
	if err != nil {
		http.Error(w, "invalid frontend URL", http.StatusInternalServerError)
		return
	}
	q := target.Query()
	q.Set(key, value)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
