package client

import (
	"context"
	"io"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
)

// TokenSource yields the current bearer token, or "" when there is none.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// AuthAPI is the credential exchange surface.
type AuthAPI interface {
	Signup(ctx context.Context, email, password, username string) (*models.Identity, error)
	Login(ctx context.Context, email, password string) (*models.AuthResult, error)
	RequestOTP(ctx context.Context, email string, purpose models.OtpPurpose) error
	// VerifyOTP returns a session payload for login challenges and an empty
	// result for recovery challenges.
	VerifyOTP(ctx context.Context, ch models.OtpChallenge) (*models.AuthResult, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.Identity, error)
}

// CapsuleAPI is the capsule and media surface. Every call is authenticated.
type CapsuleAPI interface {
	ListCapsules(ctx context.Context) ([]models.Capsule, error)
	GetCapsule(ctx context.Context, id string) (*models.Capsule, error)
	CreateCapsule(ctx context.Context, draft models.CapsuleDraft) (*models.Capsule, error)
	UpdateCapsule(ctx context.Context, id string, upd models.CapsuleUpdate) (*models.Capsule, error)
	DeleteCapsule(ctx context.Context, id string) error
	UploadMedia(ctx context.Context, capsuleID, filename, contentType string, r io.Reader) (*models.Media, error)
	MediaURL(ctx context.Context, mediaID string) (*models.MediaURL, error)
	DeleteMedia(ctx context.Context, mediaID string) error
}

// Client is the full server API.
type Client interface {
	AuthAPI
	CapsuleAPI
}
