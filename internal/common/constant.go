// Package common contains shared constants, sentinel errors and small helpers
// used by both the capsulekeeper client and the reference server.
package common

import "time"

// AccessTokenKey is the fixed identifier under which the session token is
// persisted in the client key-value store.
const AccessTokenKey = "access_token"

// AuthorizationHeaderName carries the bearer token on authenticated calls.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName carries a per-request correlation id.
const RequestIDHeaderName = "X-Request-ID"

// NotifySecretHeaderName authenticates the reminder trigger endpoint.
const NotifySecretHeaderName = "X-Notify-Secret"

const (
	// MinPasswordLength applies to signup and password recovery.
	MinPasswordLength = 6
	// MinUsernameLength applies to signup.
	MinUsernameLength = 3
	// MaxUsernameLength applies to signup.
	MaxUsernameLength = 50
	// VerificationCodeLength is the length of email verification codes.
	VerificationCodeLength = 6
	// MaxTitleLength bounds capsule titles.
	MaxTitleLength = 200
	// MaxMediaSize is the upload cap for a single media file (50 MB).
	MaxMediaSize = 50 * 1024 * 1024
)

// MinUnlockOffset is how far in the future a capsule unlock time must be at
// creation. It is a usability guard, not a security boundary.
const MinUnlockOffset = 5 * time.Minute

// CodeValidity is the documented lifetime of one-time and verification codes.
const CodeValidity = 15 * time.Minute
