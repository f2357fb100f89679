package services

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return common.NewValidationError("email", "email is required")
	}
	if a, err := mail.ParseAddress(email); err != nil || a.Address != email {
		return common.NewValidationError("email", "email is not valid")
	}
	return nil
}

func validatePassword(field, password string) error {
	if utf8.RuneCountInString(password) < common.MinPasswordLength {
		return common.NewValidationError(field, "password must be at least %d characters", common.MinPasswordLength)
	}
	return nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < common.MinUsernameLength || n > common.MaxUsernameLength {
		return common.NewValidationError("username", "username must be %d to %d characters",
			common.MinUsernameLength, common.MaxUsernameLength)
	}
	return nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(title)
	if n == 0 {
		return common.NewValidationError("title", "title is required")
	}
	if n > common.MaxTitleLength {
		return common.NewValidationError("title", "title must be at most %d characters", common.MaxTitleLength)
	}
	return nil
}

// The server only requires the unlock time to be in the future; the
// client adds its own lead time on top.
func validateUnlockAt(unlockAt, now time.Time) error {
	if unlockAt.IsZero() {
		return common.NewValidationError("unlock_date", "unlock date is required")
	}
	if !unlockAt.After(now) {
		return common.NewValidationError("unlock_date", "unlock date must be in the future")
	}
	return nil
}
