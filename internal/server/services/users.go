// Package services contains the reference server's business logic. This
// file implements UserService: signup with email verification, password and
// one-time-code login, password recovery and token revocation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/cryptox"
	"github.com/dmitrijs2005/capsulekeeper/internal/dbx"
	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/auth"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/config"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/mail"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/server/repositories/repomanager"
)

var generateCode = func() (string, error) {
	return common.RandomDigits(common.VerificationCodeLength)
}

// Grant is the outcome of a successful credential exchange.
type Grant struct {
	AccessToken string
	User        *models.User
}

type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	mailer                      mail.Mailer
	log                         logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	codeValidityDuration        time.Duration
	now                         func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, mailer mail.Mailer, log logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		mailer:                      mailer,
		log:                         log,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		codeValidityDuration:        cfg.CodeValidityDuration,
		now:                         time.Now,
	}
}

// SetClock replaces the clock used for codes and tokens.
func (s *UserService) SetClock(now func() time.Time) {
	s.now = now
}

// Signup creates an unverified account and mails it a verification code.
func (s *UserService) Signup(ctx context.Context, email, password, username string) (*models.User, error) {
	email = normalizeEmail(email)
	username = strings.TrimSpace(username)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword("password", password); err != nil {
		return nil, err
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: cryptox.HashPassword(password),
		CreatedAt:    s.now().UTC(),
	}

	var code string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		var err error
		code, err = s.issueCode(ctx, tx, email, models.PurposeVerifyEmail)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.send(ctx, mail.VerificationCode(email, code, s.codeValidityDuration))
	s.log.Info(ctx, "user signed up", "user_id", user.ID)
	return user, nil
}

// VerifyEmail consumes the verification code and marks the email verified.
func (s *UserService) VerifyEmail(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.consumeCode(ctx, tx, email, models.PurposeVerifyEmail, code); err != nil {
			return err
		}
		users := s.repomanager.Users(tx)
		user, err := users.GetByEmail(ctx, email)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidOrExpiredCode
		}
		if err != nil {
			return err
		}
		return users.MarkEmailVerified(ctx, user.ID)
	})
}

// ResendVerification replaces the pending verification code. Unknown and
// already verified emails are accepted silently so the call does not reveal
// which addresses exist.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}

	code, err := s.issueCode(ctx, s.db, email, models.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	s.send(ctx, mail.VerificationCode(email, code, s.codeValidityDuration))
	return nil
}

// Login checks the password and returns a fresh access token. Unknown
// emails and wrong passwords are indistinguishable.
func (s *UserService) Login(ctx context.Context, email, password string) (*Grant, error) {
	email = normalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := cryptox.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", user.ID, err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, common.ErrEmailNotVerified
	}

	return s.grant(user)
}

// RequestOTP mails a login or recovery code. Unknown emails are accepted
// silently.
func (s *UserService) RequestOTP(ctx context.Context, email, purpose string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := validatePurpose(purpose); err != nil {
		return err
	}

	_, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if errors.Is(err, common.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	code, err := s.issueCode(ctx, s.db, email, purpose)
	if err != nil {
		return err
	}
	if purpose == models.PurposeLogin {
		s.send(ctx, mail.LoginCode(email, code, s.codeValidityDuration))
	} else {
		s.send(ctx, mail.RecoveryCode(email, code, s.codeValidityDuration))
	}
	return nil
}

// VerifyOTP consumes a login or recovery code. A login code yields a Grant
// and, having proven control of the mailbox, verifies the email. A recovery
// code replaces the password and yields no Grant.
func (s *UserService) VerifyOTP(ctx context.Context, email, purpose, code, newPassword string) (*Grant, error) {
	email = normalizeEmail(email)
	if err := validatePurpose(purpose); err != nil {
		return nil, err
	}
	if purpose == models.PurposeRecovery {
		if err := validatePassword("new_password", newPassword); err != nil {
			return nil, err
		}
	}

	var user *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.consumeCode(ctx, tx, email, purpose, code); err != nil {
			return err
		}
		users := s.repomanager.Users(tx)
		var err error
		user, err = users.GetByEmail(ctx, email)
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidOrExpiredCode
		}
		if err != nil {
			return err
		}

		if purpose == models.PurposeRecovery {
			return users.SetPasswordHash(ctx, user.ID, cryptox.HashPassword(newPassword))
		}
		if !user.EmailVerified {
			user.EmailVerified = true
			return users.MarkEmailVerified(ctx, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if purpose == models.PurposeRecovery {
		s.log.Info(ctx, "password reset", "user_id", user.ID)
		return nil, nil
	}
	return s.grant(user)
}

// Authenticate resolves a bearer token to its user. Any failure is
// ErrUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, *auth.Claims, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}

	revoked, err := s.repomanager.Tokens(s.db).IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, fmt.Errorf("%w: token revoked", common.ErrUnauthorized)
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: unknown user", common.ErrUnauthorized)
	}
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// Logout revokes the token the claims came from.
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) error {
	expiresAt := s.now().Add(s.accessTokenValidityDuration)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.repomanager.Tokens(s.db).Revoke(ctx, claims.ID, expiresAt)
}

// PurgeRevoked forgets revocations of tokens that have expired anyway.
func (s *UserService) PurgeRevoked(ctx context.Context) (int64, error) {
	return s.repomanager.Tokens(s.db).Purge(ctx, s.now())
}

// --- helpers below ---

func validatePurpose(purpose string) error {
	if purpose != models.PurposeLogin && purpose != models.PurposeRecovery {
		return common.NewValidationError("purpose", "purpose must be %q or %q", models.PurposeLogin, models.PurposeRecovery)
	}
	return nil
}

func (s *UserService) grant(user *models.User) (*Grant, error) {
	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Grant{AccessToken: token, User: user}, nil
}

func codeScope(email, purpose string) string {
	return purpose + ":" + email
}

// issueCode stores a fresh code for email and purpose, replacing any
// pending one, and returns it in clear text for mailing.
func (s *UserService) issueCode(ctx context.Context, db dbx.DBTX, email, purpose string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	err = s.repomanager.Codes(db).Put(ctx, &models.Code{
		Email:     email,
		Purpose:   purpose,
		Digest:    cryptox.HashCode(s.jwtSecret, codeScope(email, purpose), code),
		ExpiresAt: s.now().Add(s.codeValidityDuration),
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

// consumeCode checks code against the pending one and deletes it on success,
// so each code works once.
func (s *UserService) consumeCode(ctx context.Context, db dbx.DBTX, email, purpose, code string) error {
	codes := s.repomanager.Codes(db)

	pending, err := codes.Get(ctx, email, purpose)
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrInvalidOrExpiredCode
	}
	if err != nil {
		return err
	}

	if s.now().After(pending.ExpiresAt) {
		return common.ErrInvalidOrExpiredCode
	}
	if !cryptox.EqualCode(s.jwtSecret, codeScope(email, purpose), strings.TrimSpace(code), pending.Digest) {
		return common.ErrInvalidOrExpiredCode
	}

	return codes.Delete(ctx, email, purpose)
}

func (s *UserService) send(ctx context.Context, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn(ctx, "mail not sent", "to", msg.To, "subject", msg.Subject, "error", err)
	}
}
