package media

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/capsulekeeper/internal/common"
	"github.com/dmitrijs2005/capsulekeeper/internal/cryptox"
	"github.com/dmitrijs2005/capsulekeeper/internal/filex"
)

// BlobPath is where LocalStorage links point, relative to the public URL.
const BlobPath = "/media/blobs/"

const signatureScope = "media-blob"

// LocalStorage keeps blobs under a directory and serves them through
// HMAC-signed links handled by ServeHTTP.
type LocalStorage struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewLocalStorage creates dir if needed. baseURL is the public server URL
// the links are built on.
func NewLocalStorage(dir, baseURL string, secret []byte) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &LocalStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	if !filepath.IsLocal(key) {
		return "", fmt.Errorf("%w: bad storage key", common.ErrValidation)
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := filex.EnsureParentDir(p); err != nil {
		return err
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = os.Remove(p)
		return fmt.Errorf("write blob: %w", err)
	}
	return f.Close()
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (s *LocalStorage) URL(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	if _, err := s.path(key); err != nil {
		return "", err
	}
	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)

	q := url.Values{}
	q.Set("expires", expires)
	q.Set("name", filename)
	q.Set("sig", s.sign(key, expires, filename))

	return s.baseURL + BlobPath + key + "?" + q.Encode(), nil
}

func (s *LocalStorage) sign(key, expires, filename string) string {
	return hex.EncodeToString(cryptox.HashCode(s.secret, signatureScope, key+"\n"+expires+"\n"+filename))
}

func (s *LocalStorage) verify(key, expires, filename, sig string) bool {
	digest, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return cryptox.EqualCode(s.secret, signatureScope, key+"\n"+expires+"\n"+filename, digest)
}

// ServeHTTP serves a blob for a link produced by URL. Bad or expired
// signatures get 403, absent blobs 404.
func (s *LocalStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, BlobPath)
	q := r.URL.Query()
	expires, filename := q.Get("expires"), q.Get("name")

	if !s.verify(key, expires, filename, q.Get("sig")) {
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		http.Error(w, "link expired", http.StatusForbidden)
		return
	}

	p, err := s.path(key)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(p)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		http.NotFound(w, r)
		return
	}

	if filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	http.ServeContent(w, r, filename, st.ModTime(), f)
}
