package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/client"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
)

// VerificationState is the progress of EmailVerificationFlow.
type VerificationState string

const (
	AwaitingSignup VerificationState = "awaiting_signup"
	AwaitingCode   VerificationState = "awaiting_code"
	Verified       VerificationState = "verified"
)

// EmailVerificationFlow walks a new account from signup to a verified email.
// It never creates a session: once Verified, the caller logs in with the
// password.
type EmailVerificationFlow struct {
	session *SessionManager
	api     client.AuthAPI
	log     logging.Logger

	mu      sync.Mutex
	state   VerificationState
	pending *models.PendingIdentity
	busy    bool
}

func NewEmailVerificationFlow(session *SessionManager, api client.AuthAPI, log logging.Logger) *EmailVerificationFlow {
	if log == nil {
		log = logging.NewNop()
	}
	return &EmailVerificationFlow{session: session, api: api, log: log, state: AwaitingSignup}
}

// State returns the current state.
func (f *EmailVerificationFlow) State() VerificationState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Pending returns a copy of the identity being verified, or nil.
func (f *EmailVerificationFlow) Pending() *models.PendingIdentity {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return nil
	}
	cp := *f.pending
	return &cp
}

// Reset discards the pending identity and starts over.
func (f *EmailVerificationFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = AwaitingSignup
	f.pending = nil
}

// Signup registers the account and moves to AwaitingCode.
func (f *EmailVerificationFlow) Signup(ctx context.Context, email, password, username string) (*models.PendingIdentity, error) {
	if _, err := f.begin(AwaitingSignup); err != nil {
		return nil, err
	}

	p, err := f.session.Signup(ctx, email, password, username)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		return nil, err
	}
	f.state = AwaitingCode
	f.pending = p
	cp := *p
	return &cp, nil
}

// SubmitCode checks the verification code. A code of the wrong length is
// rejected locally.
func (f *EmailVerificationFlow) SubmitCode(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if err := validateVerificationCode(code); err != nil {
		return err
	}
	email, err := f.begin(AwaitingCode)
	if err != nil {
		return err
	}

	err = f.api.VerifyEmail(ctx, email, code)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	f.state = Verified
	if f.pending != nil {
		f.pending.EmailVerified = true
	}
	f.log.Info(ctx, "email verified")
	return nil
}

// Resend dispatches a fresh code. The state does not change.
func (f *EmailVerificationFlow) Resend(ctx context.Context) error {
	email, err := f.begin(AwaitingCode)
	if err != nil {
		return err
	}

	err = f.api.ResendVerification(ctx, email)

	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
	if err != nil {
		return fmt.Errorf("resend code: %w", err)
	}
	return nil
}

// begin checks the state, marks the flow busy and returns the pending email.
func (f *EmailVerificationFlow) begin(want VerificationState) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.busy {
		return "", common.ErrFlowBusy
	}
	if f.state != want {
		switch f.state {
		case AwaitingSignup:
			return "", common.NewValidationError("state", "sign up first")
		case AwaitingCode:
			return "", common.NewValidationError("state", "enter the code sent to %s", f.pending.Email)
		default:
			return "", common.NewValidationError("state", "email already verified, log in with your password")
		}
	}
	f.busy = true
	if f.pending == nil {
		return "", nil
	}
	return f.pending.Email, nil
}
