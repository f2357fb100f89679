package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/credentials"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
)

// fakeAPI implements client.Client for unit tests.
type fakeAPI struct {
	mu sync.Mutex

	SignupRet *models.Identity
	SignupErr error

	LoginRet *models.AuthResult
	LoginErr error

	RequestOTPErr error

	VerifyOTPRet *models.AuthResult
	VerifyOTPErr error

	VerifyEmailErr error
	ResendErr      error
	LogoutErr      error

	MeRet *models.Identity
	MeErr error

	Capsules  map[string]*models.Capsule
	CreateRet *models.Capsule
	APIErr    error // returned by every capsule call when set

	MediaURLRet *models.MediaURL
	UploadRet   *models.Media

	// gate, when set, blocks RequestOTP and VerifyOTP until it is closed.
	gate    chan struct{}
	entered chan string

	Calls []string

	LastSignupEmail    string
	LastLoginEmail     string
	LastOTP            models.OtpChallenge
	LastRequestPurpose models.OtpPurpose
	LastVerifyEmail    string
	LastVerifyCode     string
	LastDraft          models.CapsuleDraft
	LastUpdate         models.CapsuleUpdate
	LastUploadName     string
	LastDeleted        string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{Capsules: map[string]*models.Capsule{}}
}

func (f *fakeAPI) record(name string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, name)
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeAPI) block(ctx context.Context, name string) error {
	if f.gate == nil {
		return nil
	}
	if f.entered != nil {
		f.entered <- name
	}
	select {
	case <-f.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeAPI) Signup(_ context.Context, email, _, _ string) (*models.Identity, error) {
	f.record("signup")
	f.LastSignupEmail = email
	if f.SignupErr != nil {
		return nil, f.SignupErr
	}
	id := *f.SignupRet
	return &id, nil
}

func (f *fakeAPI) Login(_ context.Context, email, _ string) (*models.AuthResult, error) {
	f.record("login")
	f.LastLoginEmail = email
	return f.LoginRet, f.LoginErr
}

func (f *fakeAPI) RequestOTP(ctx context.Context, _ string, purpose models.OtpPurpose) error {
	f.record("otp_request")
	f.LastRequestPurpose = purpose
	if err := f.block(ctx, "otp_request"); err != nil {
		return err
	}
	return f.RequestOTPErr
}

func (f *fakeAPI) VerifyOTP(ctx context.Context, ch models.OtpChallenge) (*models.AuthResult, error) {
	f.record("otp_verify")
	f.LastOTP = ch
	if err := f.block(ctx, "otp_verify"); err != nil {
		return nil, err
	}
	if f.VerifyOTPErr != nil {
		return nil, f.VerifyOTPErr
	}
	if f.VerifyOTPRet == nil {
		return &models.AuthResult{}, nil
	}
	return f.VerifyOTPRet, nil
}

func (f *fakeAPI) VerifyEmail(_ context.Context, email, code string) error {
	f.record("verify_email")
	f.LastVerifyEmail, f.LastVerifyCode = email, code
	return f.VerifyEmailErr
}

func (f *fakeAPI) ResendVerification(context.Context, string) error {
	f.record("resend")
	return f.ResendErr
}

func (f *fakeAPI) Logout(context.Context) error {
	f.record("logout")
	return f.LogoutErr
}

func (f *fakeAPI) Me(context.Context) (*models.Identity, error) {
	f.record("me")
	return f.MeRet, f.MeErr
}

func (f *fakeAPI) ListCapsules(context.Context) ([]models.Capsule, error) {
	f.record("list")
	if f.APIErr != nil {
		return nil, f.APIErr
	}
	out := make([]models.Capsule, 0, len(f.Capsules))
	for _, c := range f.Capsules {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeAPI) GetCapsule(_ context.Context, id string) (*models.Capsule, error) {
	f.record("get")
	if f.APIErr != nil {
		return nil, f.APIErr
	}
	c, ok := f.Capsules[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *c
	return &cp, nil
}

func (f *fakeAPI) CreateCapsule(_ context.Context, d models.CapsuleDraft) (*models.Capsule, error) {
	f.record("create")
	f.LastDraft = d
	if f.APIErr != nil {
		return nil, f.APIErr
	}
	return f.CreateRet, nil
}

func (f *fakeAPI) UpdateCapsule(_ context.Context, id string, u models.CapsuleUpdate) (*models.Capsule, error) {
	f.record("update")
	f.LastUpdate = u
	c := *f.Capsules[id]
	if u.Title != nil {
		c.Title = *u.Title
	}
	return &c, nil
}

func (f *fakeAPI) DeleteCapsule(_ context.Context, id string) error {
	f.record("delete")
	f.LastDeleted = id
	return nil
}

func (f *fakeAPI) UploadMedia(_ context.Context, _, filename, _ string, r io.Reader) (*models.Media, error) {
	f.record("upload")
	f.LastUploadName = filename
	_, _ = io.Copy(io.Discard, r)
	return f.UploadRet, nil
}

func (f *fakeAPI) MediaURL(context.Context, string) (*models.MediaURL, error) {
	f.record("media_url")
	return f.MediaURLRet, nil
}

func (f *fakeAPI) DeleteMedia(_ context.Context, id string) error {
	f.record("media_delete")
	f.LastDeleted = id
	return nil
}

// failingStore wraps a MemoryStore and can fail writes.
type failingStore struct {
	*credentials.MemoryStore
	SaveErr  error
	EraseErr error
}

func (s *failingStore) Save(ctx context.Context, tok string) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	return s.MemoryStore.Save(ctx, tok)
}

func (s *failingStore) Erase(ctx context.Context) error {
	if s.EraseErr != nil {
		return s.EraseErr
	}
	return s.MemoryStore.Erase(ctx)
}

func verifiedUser() *models.Identity {
	return &models.Identity{ID: "u1", Username: "alice", Email: "a@b.c", EmailVerified: true}
}

func authResult(tok string, verified bool) *models.AuthResult {
	u := verifiedUser()
	u.EmailVerified = verified
	return &models.AuthResult{AccessToken: tok, TokenType: "bearer", User: u}
}

func storedToken(s credentials.TokenReader) string {
	tok, _ := s.Token(context.Background())
	return tok
}
