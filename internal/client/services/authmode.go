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

// Mode is a login method.
type Mode string

const (
	ModePassword Mode = "password"
	ModeOTP      Mode = "otp"
	ModeRecovery Mode = "recovery"
)

// Phase is the progress of a code-based mode.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSending   Phase = "sending"
	PhaseSent      Phase = "sent"
	PhaseVerifying Phase = "verifying"
	PhaseSuccess   Phase = "success"
	PhaseError     Phase = "error"
)

// AuthState is the controller state. Its concrete type is one of
// PasswordState, OTPState or RecoveryState.
type AuthState interface {
	Mode() Mode
	authState()
}

// PasswordState is the password login mode. RecoveredEmail is set when the
// controller arrived here from a completed password reset.
type PasswordState struct {
	Submitting     bool
	RecoveredEmail string
	Err            error
}

// OTPState is the one-time-code login mode.
type OTPState struct {
	Phase Phase
	Email string
	Err   error
}

// RecoveryState is the password reset mode.
type RecoveryState struct {
	Phase Phase
	Email string
	Err   error
}

func (PasswordState) Mode() Mode { return ModePassword }
func (OTPState) Mode() Mode      { return ModeOTP }
func (RecoveryState) Mode() Mode { return ModeRecovery }

func (PasswordState) authState() {}
func (OTPState) authState()      {}
func (RecoveryState) authState() {}

// AuthModeController drives the login screen: it switches between password,
// one-time-code and recovery modes and sequences the request/verify rounds of
// the code-based modes.
//
// Network calls are never cancelled by a mode change. Instead every mode
// switch or retry bumps a generation counter, and a response that comes back
// under an older generation is dropped with common.ErrStaleResponse.
type AuthModeController struct {
	session *SessionManager
	api     client.AuthAPI
	log     logging.Logger

	mu    sync.Mutex
	state AuthState
	gen   uint64
}

// NewAuthModeController starts in password mode.
func NewAuthModeController(session *SessionManager, api client.AuthAPI, log logging.Logger) *AuthModeController {
	if log == nil {
		log = logging.NewNop()
	}
	return &AuthModeController{session: session, api: api, log: log, state: PasswordState{}}
}

// State returns the current state.
func (c *AuthModeController) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectMode switches to mode. Code-based modes always start from idle.
// Recovery is refused while a session is active.
func (c *AuthModeController) SelectMode(mode Mode) error {
	// checked before taking c.mu; the session lock is never acquired under it
	if mode == ModeRecovery && c.session.IsAuthenticated() {
		return common.ErrSessionActive
	}

	var next AuthState
	switch mode {
	case ModePassword:
		next = PasswordState{}
	case ModeOTP:
		next = OTPState{Phase: PhaseIdle}
	case ModeRecovery:
		next = RecoveryState{Phase: PhaseIdle}
	default:
		return common.NewValidationError("mode", "unknown mode %q", mode)
	}

	c.mu.Lock()
	c.gen++
	c.state = next
	c.mu.Unlock()
	return nil
}

// Retry returns a code-based mode to idle, keeping the email. Any response
// still in flight becomes stale.
func (c *AuthModeController) Retry() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch st := c.state.(type) {
	case OTPState:
		c.gen++
		c.state = OTPState{Phase: PhaseIdle, Email: st.Email}
	case RecoveryState:
		c.gen++
		c.state = RecoveryState{Phase: PhaseIdle, Email: st.Email}
	case PasswordState:
		c.state = PasswordState{Submitting: st.Submitting}
	}
}

// LoginWithPassword performs a password login from password mode.
func (c *AuthModeController) LoginWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	c.mu.Lock()
	st, ok := c.state.(PasswordState)
	if !ok {
		c.mu.Unlock()
		return nil, wrongMode(ModePassword)
	}
	if st.Submitting {
		c.mu.Unlock()
		return nil, common.ErrFlowBusy
	}
	c.state = PasswordState{Submitting: true}
	gen := c.gen
	c.mu.Unlock()

	sess, err := c.session.login(ctx, email, password, c.stillCurrent(gen))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		// the mode moved on after the session was stored
		if err == nil {
			return sess, nil
		}
		return nil, common.ErrStaleResponse
	}
	c.state = PasswordState{Err: err}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// RequestCode asks the server to email a one-time code for the current
// code-based mode. It may be repeated once a previous request finished.
func (c *AuthModeController) RequestCode(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	email = strings.TrimSpace(email)

	c.mu.Lock()
	var purpose models.OtpPurpose
	switch st := c.state.(type) {
	case OTPState:
		if busy(st.Phase) {
			c.mu.Unlock()
			return common.ErrFlowBusy
		}
		purpose = models.OtpPurposeLogin
		c.state = OTPState{Phase: PhaseSending, Email: email}
	case RecoveryState:
		if busy(st.Phase) {
			c.mu.Unlock()
			return common.ErrFlowBusy
		}
		purpose = models.OtpPurposeRecovery
		c.state = RecoveryState{Phase: PhaseSending, Email: email}
	default:
		c.mu.Unlock()
		return wrongMode(ModeOTP, ModeRecovery)
	}
	gen := c.gen
	c.mu.Unlock()

	err := c.api.RequestOTP(ctx, email, purpose)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return common.ErrStaleResponse
	}

	phase := PhaseSent
	if err != nil {
		phase = PhaseIdle
		err = fmt.Errorf("request code: %w", err)
	}
	switch c.state.(type) {
	case OTPState:
		c.state = OTPState{Phase: phase, Email: email, Err: err}
	case RecoveryState:
		c.state = RecoveryState{Phase: phase, Email: email, Err: err}
	}
	return err
}

// SubmitOTP verifies a login code and, on success, establishes the session
// through the session manager.
func (c *AuthModeController) SubmitOTP(ctx context.Context, code string) (*models.Session, error) {
	c.mu.Lock()
	st, ok := c.state.(OTPState)
	if !ok {
		c.mu.Unlock()
		return nil, wrongMode(ModeOTP)
	}
	if busy(st.Phase) {
		c.mu.Unlock()
		return nil, common.ErrFlowBusy
	}
	if err := canVerify(st.Phase, st.Email); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := validateCodePresent(code); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.state = OTPState{Phase: PhaseVerifying, Email: st.Email}
	gen := c.gen
	c.mu.Unlock()

	sess, err := c.session.loginWithOTP(ctx, st.Email, code, c.stillCurrent(gen))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		if err == nil {
			return sess, nil
		}
		return nil, common.ErrStaleResponse
	}
	if err != nil {
		c.state = OTPState{Phase: PhaseError, Email: st.Email, Err: err}
		return nil, err
	}
	c.state = OTPState{Phase: PhaseSuccess, Email: st.Email}
	return sess, nil
}

// SubmitRecovery verifies a recovery code together with the new password.
// On success the controller returns to password mode; the user logs in with
// the new password themselves.
func (c *AuthModeController) SubmitRecovery(ctx context.Context, code, newPassword string) error {
	if c.session.IsAuthenticated() {
		return common.ErrSessionActive
	}

	c.mu.Lock()
	st, ok := c.state.(RecoveryState)
	if !ok {
		c.mu.Unlock()
		return wrongMode(ModeRecovery)
	}
	if busy(st.Phase) {
		c.mu.Unlock()
		return common.ErrFlowBusy
	}
	if err := validateEmail(st.Email); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := canVerify(st.Phase, st.Email); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := validateCodePresent(code); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := validatePassword("new_password", newPassword); err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = RecoveryState{Phase: PhaseVerifying, Email: st.Email}
	gen := c.gen
	c.mu.Unlock()

	_, err := c.api.VerifyOTP(ctx, models.OtpChallenge{
		Email:         st.Email,
		Purpose:       models.OtpPurposeRecovery,
		SubmittedCode: strings.TrimSpace(code),
		NewPassword:   newPassword,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return common.ErrStaleResponse
	}
	if err != nil {
		err = fmt.Errorf("reset password: %w", err)
		c.state = RecoveryState{Phase: PhaseError, Email: st.Email, Err: err}
		return err
	}

	c.log.Info(ctx, "password reset completed")
	c.gen++
	c.state = PasswordState{RecoveredEmail: st.Email}
	return nil
}

func (c *AuthModeController) stillCurrent(gen uint64) func() bool {
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.gen == gen
	}
}

func busy(p Phase) bool {
	return p == PhaseSending || p == PhaseVerifying
}

// canVerify allows a verify round after a code was sent, and again after a
// failed verify.
func canVerify(p Phase, email string) error {
	switch p {
	case PhaseSent, PhaseError:
		if email == "" {
			return common.NewValidationError("email", "request a code first")
		}
		return nil
	case PhaseSuccess:
		return common.NewValidationError("code", "code already accepted")
	default:
		return common.NewValidationError("code", "request a code first")
	}
}

func wrongMode(want ...Mode) error {
	names := make([]string, len(want))
	for i, m := range want {
		names[i] = string(m)
	}
	return common.NewValidationError("mode", "switch to %s mode first", strings.Join(names, " or "))
}
