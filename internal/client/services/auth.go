// Package services contains the capsulekeeper client's application services:
// the session manager, the login mode controller, the post-signup email
// verification flow and the capsule service.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/client"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/credentials"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
)

// SessionManager owns the current session. It is the only writer of the
// credential store, and it never holds a session for an identity whose email
// is not verified.
//
// All methods are safe for concurrent use.
type SessionManager struct {
	api   client.AuthAPI
	store credentials.Store
	log   logging.Logger

	mu       sync.RWMutex
	token    string
	identity *models.Identity
}

// NewSessionManager returns a manager with no active session. Call CheckAuth
// to restore a persisted one.
func NewSessionManager(api client.AuthAPI, store credentials.Store, log logging.Logger) *SessionManager {
	if log == nil {
		log = logging.NewNop()
	}
	return &SessionManager{api: api, store: store, log: log}
}

// Login exchanges email and password for a session.
func (s *SessionManager) Login(ctx context.Context, email, password string) (*models.Session, error) {
	return s.login(ctx, email, password, nil)
}

// LoginWithOTP exchanges a one-time login code for a session.
func (s *SessionManager) LoginWithOTP(ctx context.Context, email, code string) (*models.Session, error) {
	return s.loginWithOTP(ctx, email, code, nil)
}

// stillCurrent, when set, is consulted right before the session is stored;
// returning false discards the response with ErrStaleResponse.
func (s *SessionManager) login(ctx context.Context, email, password string, stillCurrent func() bool) (*models.Session, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, common.NewValidationError("password", "password is required")
	}

	res, err := s.api.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return s.establish(ctx, res, stillCurrent)
}

func (s *SessionManager) loginWithOTP(ctx context.Context, email, code string, stillCurrent func() bool) (*models.Session, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validateCodePresent(code); err != nil {
		return nil, err
	}

	res, err := s.api.VerifyOTP(ctx, models.OtpChallenge{
		Email:         strings.TrimSpace(email),
		Purpose:       models.OtpPurposeLogin,
		SubmittedCode: strings.TrimSpace(code),
	})
	if err != nil {
		return nil, fmt.Errorf("otp login: %w", err)
	}
	return s.establish(ctx, res, stillCurrent)
}

// establish is the single place a session comes into existence.
func (s *SessionManager) establish(ctx context.Context, res *models.AuthResult, stillCurrent func() bool) (*models.Session, error) {
	if res == nil || res.AccessToken == "" || res.User == nil || res.User.ID == "" {
		return nil, fmt.Errorf("%w: missing token or user", common.ErrMalformedResponse)
	}
	if !res.User.EmailVerified {
		s.log.Info(ctx, "refusing session for unverified identity", "user_id", res.User.ID)
		return nil, common.ErrEmailNotVerified
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stillCurrent != nil && !stillCurrent() {
		return nil, common.ErrStaleResponse
	}
	if err := s.store.Save(ctx, res.AccessToken); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	id := *res.User
	s.token = res.AccessToken
	s.identity = &id
	s.log.Info(ctx, "session established", "user_id", id.ID)

	return &models.Session{Token: res.AccessToken, Identity: id}, nil
}

// Signup registers an account. The returned identity is pending until its
// email is verified; no session is created and the store is not touched.
func (s *SessionManager) Signup(ctx context.Context, email, password, username string) (*models.PendingIdentity, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword("password", password); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	email = strings.TrimSpace(email)
	id, err := s.api.Signup(ctx, email, password, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("signup: %w", err)
	}
	if id.Email == "" {
		id.Email = email
	}
	s.log.Info(ctx, "signed up", "user_id", id.ID)
	return &models.PendingIdentity{Identity: *id}, nil
}

// Logout notifies the server when a token is held, then clears the session
// whatever the outcome. Server failures are logged and swallowed; only a
// failure to erase the local token is returned.
func (s *SessionManager) Logout(ctx context.Context) error {
	s.mu.RLock()
	hasToken := s.token != ""
	s.mu.RUnlock()

	if !hasToken {
		if tok, err := s.store.Token(ctx); err == nil && tok != "" {
			hasToken = true
		}
	}

	if hasToken {
		if err := s.api.Logout(ctx); err != nil {
			s.log.Warn(ctx, "server logout failed", "error", err)
		}
	}
	return s.clear(ctx)
}

// CheckAuth restores the persisted session. Without a token it returns nil
// and makes no network call. Any failure, including an unverified identity,
// clears the session and resolves to nil. It is safe to call repeatedly.
func (s *SessionManager) CheckAuth(ctx context.Context) (*models.Identity, error) {
	tok, err := s.store.Token(ctx)
	if err != nil {
		s.log.Warn(ctx, "reading persisted token failed", "error", err)
		return nil, s.clear(ctx)
	}
	if tok == "" {
		s.mu.Lock()
		s.token, s.identity = "", nil
		s.mu.Unlock()
		return nil, nil
	}

	if exp, ok := credentials.TokenExpiry(tok); ok && time.Now().After(exp) {
		s.log.Debug(ctx, "persisted token looks expired", "expired_at", exp)
	}

	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()

	id, err := s.api.Me(ctx)
	if err != nil {
		s.log.Info(ctx, "session restore failed", "error", err)
		return nil, s.clear(ctx)
	}
	if id == nil || !id.EmailVerified {
		s.log.Info(ctx, "persisted session belongs to unverified identity")
		return nil, s.clear(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// a concurrent logout wins
	if s.token != tok {
		return nil, nil
	}
	cp := *id
	s.identity = &cp
	return &cp, nil
}

// HandleAPIError clears the session when err is ErrUnauthorized and returns
// err unchanged.
func (s *SessionManager) HandleAPIError(ctx context.Context, err error) error {
	if errors.Is(err, common.ErrUnauthorized) {
		s.log.Info(ctx, "session rejected by server, clearing")
		if cerr := s.clear(ctx); cerr != nil {
			s.log.Error(ctx, "clearing session failed", "error", cerr)
		}
	}
	return err
}

// Identity returns a copy of the current identity, or nil.
func (s *SessionManager) Identity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

// IsAuthenticated reports whether a session is active.
func (s *SessionManager) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

func (s *SessionManager) clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.identity = nil
	if err := s.store.Erase(ctx); err != nil {
		return fmt.Errorf("erase token: %w", err)
	}
	return nil
}
