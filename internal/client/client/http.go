package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/capsulekeeper/internal/client/models"
	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/logging"
)

// endpoint selects how non-2xx statuses are interpreted.
type endpoint int

const (
	epAuthed endpoint = iota
	epLogin
	epSignup
	epCode
	epPublic
)

// HTTPClient talks to the capsulekeeper REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     logging.Logger
}

// Option customizes an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l }
}

// NewHTTPClient returns a client for baseURL. tokens may be nil for a client
// that only uses the public endpoints.
func NewHTTPClient(baseURL string, tokens TokenSource, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		log:     logging.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type userEnvelope struct {
	User *models.Identity `json:"user"`
	models.Identity
}

func (e *userEnvelope) identity() (*models.Identity, error) {
	if e.User != nil {
		return e.User, nil
	}
	if e.ID != "" {
		id := e.Identity
		return &id, nil
	}
	return nil, fmt.Errorf("%w: missing user", common.ErrMalformedResponse)
}

func (c *HTTPClient) Signup(ctx context.Context, email, password, username string) (*models.Identity, error) {
	body := map[string]string{"email": email, "password": password, "username": username}
	var out userEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", epSignup, body, &out); err != nil {
		return nil, err
	}
	return out.identity()
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	body := map[string]string{"email": email, "password": password}
	var out models.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", epLogin, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RequestOTP(ctx context.Context, email string, purpose models.OtpPurpose) error {
	body := map[string]string{"email": email, "purpose": string(purpose)}
	return c.do(ctx, http.MethodPost, "/api/auth/otp/request", epPublic, body, nil)
}

func (c *HTTPClient) VerifyOTP(ctx context.Context, ch models.OtpChallenge) (*models.AuthResult, error) {
	var out models.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/otp/verify", epCode, ch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) VerifyEmail(ctx context.Context, email, code string) error {
	body := map[string]string{"email": email, "code": code}
	return c.do(ctx, http.MethodPost, "/api/auth/verify-email", epCode, body, nil)
}

func (c *HTTPClient) ResendVerification(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/api/auth/verify-email/resend", epPublic, body, nil)
}

func (c *HTTPClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", epAuthed, nil, nil)
}

func (c *HTTPClient) Me(ctx context.Context) (*models.Identity, error) {
	var out userEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", epAuthed, nil, &out); err != nil {
		return nil, err
	}
	return out.identity()
}

func (c *HTTPClient) ListCapsules(ctx context.Context) ([]models.Capsule, error) {
	var out []models.Capsule
	if err := c.do(ctx, http.MethodGet, "/api/capsules", epAuthed, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetCapsule(ctx context.Context, id string) (*models.Capsule, error) {
	var out models.Capsule
	if err := c.do(ctx, http.MethodGet, "/api/capsules/"+url.PathEscape(id), epAuthed, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) CreateCapsule(ctx context.Context, draft models.CapsuleDraft) (*models.Capsule, error) {
	if draft.GroupMembers == nil {
		draft.GroupMembers = []string{}
	}
	var out models.Capsule
	if err := c.do(ctx, http.MethodPost, "/api/capsules", epAuthed, draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateCapsule(ctx context.Context, id string, upd models.CapsuleUpdate) (*models.Capsule, error) {
	var out models.Capsule
	if err := c.do(ctx, http.MethodPut, "/api/capsules/"+url.PathEscape(id), epAuthed, upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteCapsule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/capsules/"+url.PathEscape(id), epAuthed, nil, nil)
}

func (c *HTTPClient) UploadMedia(ctx context.Context, capsuleID, filename, contentType string, r io.Reader) (*models.Media, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/media/upload/"+url.PathEscape(capsuleID), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out models.Media
	if err := c.send(req, epAuthed, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) MediaURL(ctx context.Context, mediaID string) (*models.MediaURL, error) {
	var out models.MediaURL
	if err := c.do(ctx, http.MethodGet, "/api/media/"+url.PathEscape(mediaID)+"/url", epAuthed, nil, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, fmt.Errorf("%w: empty media url", common.ErrMalformedResponse)
	}
	return &out, nil
}

func (c *HTTPClient) DeleteMedia(ctx context.Context, mediaID string) error {
	return c.do(ctx, http.MethodDelete, "/api/media/"+url.PathEscape(mediaID), epAuthed, nil, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, ep endpoint, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, ep, out)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())

	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if tok != "" {
			req.Header.Set(common.AuthorizationHeaderName, "Bearer "+tok)
		}
	}
	return req, nil
}

func (c *HTTPClient) send(req *http.Request, ep endpoint, out any) error {
	ctx := req.Context()
	start := time.Now()
	reqID := req.Header.Get(common.RequestIDHeaderName)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug(ctx, "request failed", "method", req.Method, "path", req.URL.Path, "request_id", reqID, "error", err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", common.ErrNetwork, ctxErr)
		}
		return fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.log.Debug(ctx, "request done",
		"method", req.Method, "path", req.URL.Path, "status", resp.StatusCode,
		"request_id", reqID, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapStatus(ep, resp.StatusCode, readDetail(resp.Body))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", common.ErrMalformedResponse)
		}
		return fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}
	return nil
}

// readDetail extracts the "detail" field of an error payload. FastAPI-style
// validation errors carry a list there; the first message is used.
func readDetail(r io.Reader) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(payload.Detail, &s) == nil {
		return s
	}
	var list []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(payload.Detail, &list) == nil && len(list) > 0 {
		return list[0].Msg
	}
	return ""
}

func mapStatus(ep endpoint, status int, detail string) error {
	return &common.APIError{Status: status, Detail: detail, Err: sentinelFor(ep, status, detail)}
}

func sentinelFor(ep endpoint, status int, detail string) error {
	switch ep {
	case epLogin:
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return common.ErrInvalidCredentials
		case http.StatusForbidden:
			return common.ErrEmailNotVerified
		}
	case epCode:
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusGone:
			return common.ErrInvalidOrExpiredCode
		}
	case epSignup:
		if status == http.StatusConflict ||
			(status == http.StatusBadRequest && strings.Contains(strings.ToLower(detail), "already")) {
			return common.ErrEmailAlreadyRegistered
		}
	case epAuthed:
		if status == http.StatusUnauthorized {
			return common.ErrUnauthorized
		}
	}

	switch {
	case status == http.StatusForbidden:
		return common.ErrForbidden
	case status == http.StatusNotFound:
		return common.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity,
		status == http.StatusRequestEntityTooLarge:
		return common.ErrValidation
	case status == http.StatusUnauthorized:
		return common.ErrUnauthorized
	default:
		return common.ErrServer
	}
}
