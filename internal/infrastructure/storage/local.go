package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ErrKeyExists    = errors.New("storage: key already written")
	ErrBadKey       = errors.New("storage: key escapes root")
	ErrBadSignature = errors.New("storage: invalid signature")
	ErrURLExpired   = errors.New("storage: url expired")
)

// LocalStore keeps objects on disk under root and serves them through
// HMAC-signed, expiring URLs at {baseURL}/files/{key}.
type LocalStore struct {
	root    string
	secret  []byte
	baseURL string
	now     func() time.Time
}

func NewLocal(root, secret, baseURL string) (*LocalStore, error) {
	if secret == "" {
		return nil, errors.New("storage: signing secret required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &LocalStore{root: abs, secret: []byte(secret), baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}, nil
}

// Path resolves key inside root, rejecting traversal.
func (s *LocalStore) Path(key string) (string, error) {
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if p != s.root && !strings.HasPrefix(p, s.root+string(os.PathSeparator)) {
		return "", ErrBadKey
	}
	return p, nil
}

// Put writes to a temp file and renames it into place; an existing key is
// never overwritten.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err == nil {
		return ErrKeyExists
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	p, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) Open(key string) (*os.File, error) {
	p, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (s *LocalStore) sign(key string, exp int64, name string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(key + "\n" + strconv.FormatInt(exp, 10) + "\n" + name))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *LocalStore) SignedURL(_ context.Context, key string, ttl time.Duration, downloadName string) (string, error) {
	if _, err := s.Path(key); err != nil {
		return "", err
	}
	exp := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("name", downloadName)
	q.Set("sig", s.sign(key, exp, downloadName))
	return s.baseURL + "/files/" + escapeKey(key) + "?" + q.Encode(), nil
}

// Verify checks a signed URL's query against key.
func (s *LocalStore) Verify(key string, q url.Values) error {
	exp, err := strconv.ParseInt(q.Get("exp"), 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	got, err := hex.DecodeString(q.Get("sig"))
	if err != nil {
		return ErrBadSignature
	}
	want, _ := hex.DecodeString(s.sign(key, exp, q.Get("name")))
	if !hmac.Equal(got, want) {
		return ErrBadSignature
	}
	if s.now().Unix() > exp {
		return ErrURLExpired
	}
	return nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader { return &ctxReader{ctx: ctx, r: r} }

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
