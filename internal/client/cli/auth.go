package cli

import (
	"context"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/services"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
)

// Test seams for interactive input.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

// ask reads one line from the user.
func (a *App) ask(prompt string) (string, error) {
	return getSimpleText(a.reader, prompt, a.out)
}

// askSecret reads a password and returns it as a string, wiping the buffer.
func (a *App) askSecret(prompt string) (string, error) {
	pw, err := getPassword(prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// Signup registers a new account. The account cannot log in until its email
// address is verified with Verify.
func (a *App) Signup(ctx context.Context) error {
	if a.isLoggedIn() {
		return common.ErrSessionActive
	}
	email, err := a.ask("Email")
	if err != nil {
		return err
	}
	username, err := a.ask("Username")
	if err != nil {
		return err
	}
	password, err := a.askSecret("Password")
	if err != nil {
		return err
	}
	confirm, err := a.askSecret("Repeat password")
	if err != nil {
		return err
	}
	if password != confirm {
		return common.NewValidationError("password", "passwords do not match")
	}

	a.verify.Reset()
	p, err := a.verify.Signup(ctx, email, password, username)
	if err != nil {
		return err
	}
	a.printf("Account %s created. A %d-digit code was sent to %s.\n", p.Username, common.VerificationCodeLength, p.Email)
	a.println("Enter it with 'verify <code>'.")
	return nil
}

// Verify submits the email verification code, taken from args or prompted.
func (a *App) Verify(ctx context.Context, args []string) error {
	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		var err error
		if code, err = a.ask("Verification code"); err != nil {
			return err
		}
	}
	if err := a.verify.SubmitCode(ctx, code); err != nil {
		return err
	}
	a.println("Email verified. You can now log in.")
	return nil
}

// Resend asks the server for a new verification code.
func (a *App) Resend(ctx context.Context) error {
	if err := a.verify.Resend(ctx); err != nil {
		return err
	}
	if p := a.verify.Pending(); p != nil {
		a.println("A new code was sent to", p.Email)
	}
	return nil
}

// Login authenticates with email and password. After a password reset the
// recovered email is offered as the default.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		return common.ErrSessionActive
	}
	st, ok := a.auth.State().(services.PasswordState)
	if !ok {
		if err := a.auth.SelectMode(services.ModePassword); err != nil {
			return err
		}
	}

	prompt := "Email"
	if st.RecoveredEmail != "" {
		prompt = "Email [" + st.RecoveredEmail + "]"
	}
	email, err := a.ask(prompt)
	if err != nil {
		return err
	}
	if email == "" {
		email = st.RecoveredEmail
	}
	password, err := a.askSecret("Password")
	if err != nil {
		return err
	}

	sess, err := a.auth.LoginWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	a.printf("Logged in as %s (%s).\n", sess.Identity.Username, sess.Identity.Email)
	return nil
}

// LoginOTP authenticates with a one-time code sent by email.
func (a *App) LoginOTP(ctx context.Context) error {
	if a.isLoggedIn() {
		return common.ErrSessionActive
	}
	if err := a.auth.SelectMode(services.ModeOTP); err != nil {
		return err
	}
	defer a.resetMode()

	email, err := a.ask("Email")
	if err != nil {
		return err
	}
	if err := a.auth.RequestCode(ctx, email); err != nil {
		return err
	}
	a.println("If the account exists, a code was sent to", email)

	code, err := a.ask("Code")
	if err != nil {
		return err
	}
	sess, err := a.auth.SubmitOTP(ctx, code)
	if err != nil {
		return err
	}
	a.printf("Logged in as %s (%s).\n", sess.Identity.Username, sess.Identity.Email)
	return nil
}

// Recover resets a forgotten password with a code sent by email.
func (a *App) Recover(ctx context.Context) error {
	if err := a.auth.SelectMode(services.ModeRecovery); err != nil {
		return err
	}

	email, err := a.ask("Email")
	if err != nil {
		a.resetMode()
		return err
	}
	if err := a.auth.RequestCode(ctx, email); err != nil {
		a.resetMode()
		return err
	}
	a.println("If the account exists, a code was sent to", email)

	code, err := a.ask("Code")
	if err != nil {
		a.resetMode()
		return err
	}
	password, err := a.askSecret("New password")
	if err != nil {
		a.resetMode()
		return err
	}
	if err := a.auth.SubmitRecovery(ctx, code, password); err != nil {
		a.resetMode()
		return err
	}
	a.println("Password updated. Log in with 'login'.")
	return nil
}

// resetMode returns the controller to password mode unless it already is.
func (a *App) resetMode() {
	if _, ok := a.auth.State().(services.PasswordState); ok {
		return
	}
	_ = a.auth.SelectMode(services.ModePassword)
}

// Logout ends the session locally and on the server.
func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		return common.ErrUnauthorized
	}
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.println("Logged out.")
	return nil
}

// WhoAmI re-validates the session and prints the current user.
func (a *App) WhoAmI(ctx context.Context) error {
	id, err := a.session.CheckAuth(ctx)
	if err != nil {
		return err
	}
	if id == nil {
		return common.ErrUnauthorized
	}
	verified := "verified"
	if !id.EmailVerified {
		verified = "not verified"
	}
	a.printf("%s <%s>, email %s, id %s\n", id.Username, id.Email, verified, id.ID)
	return nil
}
