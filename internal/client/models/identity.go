// Package models defines the client-side data model: identities, sessions,
// capsules and their media.
package models

// Identity is the user as known to the client.
type Identity struct {
	// ID is the server-assigned user identifier.
	ID string `json:"id"`

	// Username is the display name chosen at signup.
	Username string `json:"username"`

	// Email is the login identifier.
	Email string `json:"email"`

	// EmailVerified flips from false to true once, via email verification.
	EmailVerified bool `json:"email_verified"`
}

// PendingIdentity is an identity returned by signup that has not verified
// its email yet. It is a distinct type so it cannot back a Session.
type PendingIdentity struct {
	Identity
}

// Session binds a verified identity to a bearer token.
type Session struct {
	Token    string
	Identity Identity
}

// AuthResult is the server response to a successful credential exchange.
type AuthResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	User        *Identity `json:"user"`
}

// OtpPurpose distinguishes one-time codes used to log in from codes used to
// reset a password.
type OtpPurpose string

const (
	OtpPurposeLogin    OtpPurpose = "login"
	OtpPurposeRecovery OtpPurpose = "recovery"
)

// OtpChallenge is the payload of a single verify round. It lives only for
// the duration of the call; expiry is enforced by the server.
type OtpChallenge struct {
	Email         string     `json:"email"`
	Purpose       OtpPurpose `json:"purpose"`
	SubmittedCode string     `json:"code"`
	NewPassword   string     `json:"new_password,omitempty"`
}
