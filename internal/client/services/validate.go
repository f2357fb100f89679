package services

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
)

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return common.NewValidationError("email", "email is required")
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
	n := utf8.RuneCountInString(strings.TrimSpace(username))
	if n < common.MinUsernameLength {
		return common.NewValidationError("username", "username must be at least %d characters", common.MinUsernameLength)
	}
	if n > common.MaxUsernameLength {
		return common.NewValidationError("username", "username must be at most %d characters", common.MaxUsernameLength)
	}
	return nil
}

func validateCodePresent(code string) error {
	if strings.TrimSpace(code) == "" {
		return common.NewValidationError("code", "code is required")
	}
	return nil
}

func validateVerificationCode(code string) error {
	if utf8.RuneCountInString(code) != common.VerificationCodeLength {
		return common.NewValidationError("code", "code must be %d digits", common.VerificationCodeLength)
	}
	return nil
}

func validateTitle(title string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(title))
	if n == 0 {
		return common.NewValidationError("title", "title is required")
	}
	if n > common.MaxTitleLength {
		return common.NewValidationError("title", "title must be at most %d characters", common.MaxTitleLength)
	}
	return nil
}

// validateUnlockAt enforces the minimum lead time on a new or edited unlock
// time.
func validateUnlockAt(unlockAt, now time.Time) error {
	if unlockAt.IsZero() {
		return common.NewValidationError("unlock_date", "unlock date is required")
	}
	if unlockAt.Before(now.Add(common.MinUnlockOffset)) {
		return common.NewValidationError("unlock_date", "unlock date must be at least %d minutes in the future",
			int(common.MinUnlockOffset/time.Minute))
	}
	return nil
}
