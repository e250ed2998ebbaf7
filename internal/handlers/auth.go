package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"dinlipi/internal/auth"
	"dinlipi/internal/middleware"
)

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type credentials struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decodeJSON(w, r, &c) {
		return
	}
	sess, err := h.svc.SignUp(r.Context(), c.Email, c.Password, c.FullName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if !decodeJSON(w, r, &c) {
		return
	}
	if c.Email == "" || c.Password == "" {
		badRequest(w, "email and password required")
		return
	}
	sess, err := h.svc.SignIn(r.Context(), c.Email, c.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	sess, err := h.svc.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Logout runs behind OptionalAuth: a request without a live session is
// already signed out and gets 204 as well.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	scope, err := auth.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.SignOut(r.Context(), middleware.ClaimsFrom(r.Context()), scope); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email      string `json:"email"`
		RedirectTo string `json:"redirect_to"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), body.Email, body.RedirectTo); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *AuthHandler) RecoverConfirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	sess, err := h.svc.ConfirmPasswordReset(r.Context(), body.Token, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.svc.UpdatePassword(r.Context(), userID, body.Password); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session describes the caller's current session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	u, err := h.svc.User(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if u == nil {
		notFound(w)
		return
	}
	claims := middleware.ClaimsFrom(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{
		User:      *u,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.OAuthURL(chi.URLParam(r, "provider"), r.URL.Query().Get("redirect_to"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

// OAuthCallback completes the provider round trip. With a redirect target the
// tokens travel in the URL fragment; otherwise the session is returned as JSON.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: e, Code: "oauth_denied"})
		return
	}
	sess, redirectTo, err := h.svc.CompleteOAuth(r.Context(), chi.URLParam(r, "provider"), q.Get("code"), q.Get("state"))
	if err != nil {
		writeError(w, err)
		return
	}
	if redirectTo == "" {
		writeJSON(w, http.StatusOK, sess)
		return
	}
	frag := url.Values{}
	frag.Set("access_token", sess.AccessToken)
	frag.Set("refresh_token", sess.RefreshToken)
	frag.Set("token_type", sess.TokenType)
	http.Redirect(w, r, redirectTo+"#"+frag.Encode(), http.StatusFound)
}
