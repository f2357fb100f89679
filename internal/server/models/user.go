// Package models holds the server's stored records and their conversion to
// the wire types shared with the client.
package models

import (
	"time"

	wire "github.com/dmitrijs2005/capsulekeeper/internal/client/models"
)

type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
}

// Identity is the public view of the user.
func (u *User) Identity() *wire.Identity {
	return &wire.Identity{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
	}
}

// Code purposes. Login and recovery match the client's OTP purposes.
const (
	PurposeVerifyEmail = "verify_email"
	PurposeLogin       = string(wire.OtpPurposeLogin)
	PurposeRecovery    = string(wire.OtpPurposeRecovery)
)

// Code is a pending one-time code. Only its keyed digest is stored; there is
// at most one live code per email and purpose.
type Code struct {
	Email     string
	Purpose   string
	Digest    []byte
	ExpiresAt time.Time
}
