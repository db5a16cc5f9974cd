package webui

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/diptoe/collective-memory-sub000/internal/api"
	"github.com/diptoe/collective-memory-sub000/internal/session"
)

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// readCredentials accepts either a JSON body or a posted form, so the login
// page and script callers share one endpoint.
func readCredentials(r *http.Request) (credentials, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var c credentials
		err := readJSON(r, &c)
		return c, err
	}

	if err := r.ParseForm(); err != nil {
		return credentials{}, err
	}
	return credentials{
		Email:       r.PostFormValue("email"),
		Password:    r.PostFormValue("password"),
		DisplayName: r.PostFormValue("display_name"),
	}, nil
}

// wantsJSON reports whether the caller is a script rather than a form.
func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

// finishSignIn sets the cookie and answers in the shape the caller expects.
func (s *Server) finishSignIn(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.setSessionCookie(w, sess)
	if wantsJSON(r) {
		s.writeJSON(w, http.StatusOK, map[string]any{"user": sess.User})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// signInError answers a failed login/register in the caller's shape. Form
// callers land back on the login page with a message.
func (s *Server) signInError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if wantsJSON(r) {
		s.writeError(w, status, msg)
		return
	}
	http.Redirect(w, r, "/login?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.Allow() {
		s.metrics.observeLogin("throttled")
		s.signInError(w, r, http.StatusTooManyRequests, "too many attempts")
		return
	}

	creds, err := readCredentials(r)
	if err != nil || creds.Email == "" || creds.Password == "" {
		s.metrics.observeLogin("rejected")
		s.signInError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := s.sessions.Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.metrics.observeLogin("rejected")
			s.signInError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.metrics.observeLogin("error")
		s.logger.Warn("login failed", zap.Error(err))
		status, msg := backendStatus(err)
		s.signInError(w, r, status, msg)
		return
	}

	s.metrics.observeLogin("ok")
	s.finishSignIn(w, r, sess)
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.Allow() {
		s.signInError(w, r, http.StatusTooManyRequests, "too many attempts")
		return
	}

	sess, err := s.sessions.GuestLogin(r.Context())
	if err != nil {
		s.logger.Warn("guest login failed", zap.Error(err))
		status, msg := backendStatus(err)
		s.signInError(w, r, status, msg)
		return
	}
	s.finishSignIn(w, r, sess)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.loginLimiter.Allow() {
		s.signInError(w, r, http.StatusTooManyRequests, "too many attempts")
		return
	}

	creds, err := readCredentials(r)
	if err != nil || creds.Email == "" || creds.Password == "" {
		s.signInError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := s.sessions.Register(r.Context(), creds.Email, creds.Password, creds.DisplayName)
	if err != nil {
		s.logger.Warn("registration failed", zap.Error(err))
		status, msg := backendStatus(err)
		s.signInError(w, r, status, msg)
		return
	}
	s.finishSignIn(w, r, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.cookieName); err == nil {
		if err := s.sessions.Logout(r.Context(), cookie.Value); err != nil &&
			!errors.Is(err, session.ErrNotFound) {
			s.logger.Warn("logout failed", zap.Error(err))
		}
	}
	s.clearSessionCookie(w)

	if wantsJSON(r) {
		s.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]any{
		"user":       sess.User,
		"expires_at": sess.ExpiresAt,
	})
}
