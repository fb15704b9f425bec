// Package credential hashes passwords and issues and verifies signed,
// time-limited identity tokens.
package credential

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the number of characters of a password that are
// hashed; anything past this limit is ignored.
const MaxPasswordLength = 50

var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

// Config holds the signing settings. It is built once at startup.
type Config struct {
	SigningKey string
	Algorithm  string
	TokenTTL   time.Duration
	BcryptCost int
}

// Service is safe for concurrent use.
type Service struct {
	key    []byte
	method jwt.SigningMethod
	ttl    time.Duration
	cost   int
	now    func() time.Time
}

// New validates cfg. A missing key or an unsupported algorithm is an error
// the caller should treat as fatal.
func New(cfg Config) (*Service, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("credential: signing key is required")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("credential: unsupported signing algorithm %q", cfg.Algorithm)
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Service{
		key:    []byte(cfg.SigningKey),
		method: method,
		ttl:    cfg.TokenTTL,
		cost:   cost,
		now:    time.Now,
	}, nil
}

// TokenTTL returns the configured lifetime of issued tokens.
func (s *Service) TokenTTL() time.Duration {
	return s.ttl
}

// prepare keeps the first MaxPasswordLength characters and digests them.
// The base64 SHA-256 digest is 44 bytes, so every one of those characters
// counts under bcrypt's 72-byte input limit.
func prepare(plaintext string) []byte {
	runes := []rune(plaintext)
	if len(runes) > MaxPasswordLength {
		runes = runes[:MaxPasswordLength]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// HashPassword hashes the first MaxPasswordLength characters of plaintext.
func (s *Service) HashPassword(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prepare(plaintext), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether plaintext matches hash. A malformed hash
// is a mismatch.
func (s *Service) VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prepare(plaintext)) == nil
}

// IssueToken signs a token for subjectID that expires after ttl. A zero ttl
// uses the configured lifetime.
func (s *Service) IssueToken(subjectID int64, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = s.ttl
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subjectID, 10),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature and expiry of token and returns its
// subject.
func (s *Service) VerifyToken(token string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenInvalid
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	return id, nil
}
