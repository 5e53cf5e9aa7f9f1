package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner creates and validates download tokens for stored files.
// A token binds a bucket name (photos, cards) to a relative path and an expiry.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token for bucket/relPath.
func (s *SignedURLSigner) Generate(bucket, relPath string) (string, time.Time, error) {
	if bucket == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("bucket and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	token := strings.Join([]string{bucket, ts, encodedPath, s.sign(bucket, ts, encodedPath)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded bucket and path.
func (s *SignedURLSigner) Parse(token string) (bucket, relPath string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", fmt.Errorf("invalid token format")
	}
	bucket, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(bucket, ts, encodedPath)), []byte(signature)) {
		return "", "", fmt.Errorf("invalid token signature")
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", fmt.Errorf("invalid timestamp")
	}
	if s.now().After(time.Unix(expUnix, 0)) {
		return "", "", fmt.Errorf("token expired")
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", fmt.Errorf("decode path: %w", err)
	}
	return bucket, string(rawPath), nil
}

func (s *SignedURLSigner) sign(bucket, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(bucket + "|" + ts + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
