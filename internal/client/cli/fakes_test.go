package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/config"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/credentials"
	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
)

// fakeServer is a small in-memory stand-in for the REST API.
type fakeServer struct {
	mu sync.Mutex

	users    map[string]*fakeUser // by email
	codes    map[string]string    // email -> last code
	capsules map[string]*models.Capsule
	nextID   int

	current  *fakeUser // owner of the bearer token
	mediaURL string
	uploaded []byte
}

type fakeUser struct {
	models.Identity
	password string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		users:    map[string]*fakeUser{},
		codes:    map[string]string{},
		capsules: map[string]*models.Capsule{},
	}
}

func (f *fakeServer) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// addUser registers a verified user directly.
func (f *fakeServer) addUser(email, password string) *fakeUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &fakeUser{
		Identity: models.Identity{ID: f.id("u"), Username: strings.Split(email, "@")[0], Email: email, EmailVerified: true},
		password: password,
	}
	f.users[email] = u
	return u
}

func (f *fakeServer) addCapsule(c models.Capsule) *models.Capsule {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		c.ID = f.id("c")
	}
	f.capsules[c.ID] = &c
	return &c
}

func (f *fakeServer) session(u *fakeUser) *models.AuthResult {
	f.current = u
	id := u.Identity
	return &models.AuthResult{AccessToken: "tok-" + u.ID, TokenType: "bearer", User: &id}
}

func (f *fakeServer) Signup(_ context.Context, email, password, username string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return nil, &common.APIError{Status: 409, Err: common.ErrEmailAlreadyRegistered}
	}
	u := &fakeUser{Identity: models.Identity{ID: f.id("u"), Username: username, Email: email}, password: password}
	f.users[email] = u
	f.codes[email] = "123456"
	id := u.Identity
	return &id, nil
}

func (f *fakeServer) Login(_ context.Context, email, password string) (*models.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok || u.password != password {
		return nil, &common.APIError{Status: 401, Err: common.ErrInvalidCredentials}
	}
	if !u.EmailVerified {
		return nil, &common.APIError{Status: 403, Err: common.ErrEmailNotVerified}
	}
	return f.session(u), nil
}

func (f *fakeServer) RequestOTP(_ context.Context, email string, _ models.OtpPurpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[email] = "654321"
	return nil
}

func (f *fakeServer) VerifyOTP(_ context.Context, ch models.OtpChallenge) (*models.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[ch.Email]
	if !ok || f.codes[ch.Email] != ch.SubmittedCode {
		return nil, &common.APIError{Status: 400, Err: common.ErrInvalidOrExpiredCode}
	}
	delete(f.codes, ch.Email)
	if ch.Purpose == models.OtpPurposeRecovery {
		u.password = ch.NewPassword
		return &models.AuthResult{}, nil
	}
	return f.session(u), nil
}

func (f *fakeServer) VerifyEmail(_ context.Context, email, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok || f.codes[email] != code {
		return &common.APIError{Status: 400, Err: common.ErrInvalidOrExpiredCode}
	}
	u.EmailVerified = true
	delete(f.codes, email)
	return nil
}

func (f *fakeServer) ResendVerification(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[email] = "111222"
	return nil
}

func (f *fakeServer) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	return nil
}

func (f *fakeServer) Me(context.Context) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, &common.APIError{Status: 401, Err: common.ErrUnauthorized}
	}
	id := f.current.Identity
	return &id, nil
}

func (f *fakeServer) ListCapsules(context.Context) ([]models.Capsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Capsule
	for _, c := range f.capsules {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeServer) GetCapsule(_ context.Context, id string) (*models.Capsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.capsules[id]
	if !ok {
		return nil, &common.APIError{Status: 404, Err: common.ErrNotFound}
	}
	cp := *c
	cp.Media = append([]models.Media(nil), c.Media...)
	return &cp, nil
}

func (f *fakeServer) CreateCapsule(_ context.Context, d models.CapsuleDraft) (*models.Capsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Capsule{
		ID:          f.id("c"),
		Title:       d.Title,
		Description: d.Description,
		UnlockAt:    d.UnlockAt,
		OwnerID:     f.current.ID,
		IsGroup:     d.IsGroup,
	}
	f.capsules[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeServer) UpdateCapsule(_ context.Context, id string, upd models.CapsuleUpdate) (*models.Capsule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.capsules[id]
	if upd.Title != nil {
		c.Title = *upd.Title
	}
	if upd.Description != nil {
		c.Description = *upd.Description
	}
	if upd.UnlockAt != nil {
		c.UnlockAt = *upd.UnlockAt
	}
	cp := *c
	return &cp, nil
}

func (f *fakeServer) DeleteCapsule(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.capsules, id)
	return nil
}

func (f *fakeServer) UploadMedia(_ context.Context, capsuleID, filename, contentType string, r io.Reader) (*models.Media, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	ft, _ := models.FileTypeFor(contentType)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = b
	m := models.Media{ID: f.id("m"), Filename: filename, FileType: ft, CapsuleID: capsuleID}
	c := f.capsules[capsuleID]
	c.Media = append(c.Media, m)
	return &m, nil
}

func (f *fakeServer) MediaURL(context.Context, string) (*models.MediaURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.MediaURL{URL: f.mediaURL, ExpiresIn: 3600}, nil
}

func (f *fakeServer) DeleteMedia(_ context.Context, mediaID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.capsules {
		for i, m := range c.Media {
			if m.ID == mediaID {
				c.Media = append(c.Media[:i], c.Media[i+1:]...)
				return nil
			}
		}
	}
	return &common.APIError{Status: 404, Err: common.ErrNotFound}
}

// testApp wires an App to a fake server. Prompts read from input lines.
func testApp(t *testing.T, srv *fakeServer, lines ...string) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DownloadDir = t.TempDir()
	cfg.CountdownInterval = 10 * time.Millisecond

	out := &bytes.Buffer{}
	in := bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	return newApp(cfg, srv, credentials.NewMemoryStore(), logging.NewNop(), in, out), out
}

// stubPasswords makes getPassword return the given answers in order.
func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := getPassword
	t.Cleanup(func() { getPassword = orig })

	var i int
	getPassword = func(_ string, _ io.Writer) ([]byte, error) {
		if i >= len(answers) {
			return nil, io.EOF
		}
		pw := []byte(answers[i])
		i++
		return pw, nil
	}
}

// loggedIn returns an app whose session belongs to a fresh verified user.
func loggedIn(t *testing.T, srv *fakeServer, lines ...string) (*App, *fakeUser, *bytes.Buffer) {
	t.Helper()
	u := srv.addUser("alice@example.org", "secret1")
	a, out := testApp(t, srv, lines...)
	_, err := a.session.Login(context.Background(), u.Email, "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return a, u, out
}
