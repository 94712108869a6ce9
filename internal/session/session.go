package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/crypto/argon2"
)

const tokenBytes = 32 // 256 bits of entropy per token

var (
	ErrBadCredentials      = errors.New("bad credentials")
	ErrNoSecretConfigured  = errors.New("no admin secret configured")
	ErrInvalidPasswordHash = errors.New("invalid password hash format")
)

type Config struct {
	Logger *slog.Logger

	// Exactly one of these should be set. AdminPasswordHash takes
	// precedence and must be an argon2id encoded string.
	AdminPassword     string
	AdminPasswordHash string

	TokenTTL time.Duration
}

// Store owns the live set of admin bearer tokens. Nothing is persisted; a
// process restart invalidates every session and forces re-authentication.
type Store struct {
	logger   *slog.Logger
	cfg      Config
	tokens   *ttlcache.Cache[string, time.Time]
	tokenTTL time.Duration
}

func New(cfg Config) (*Store, error) {
	if cfg.AdminPassword == "" && cfg.AdminPasswordHash == "" {
		return nil, ErrNoSecretConfigured
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 8 * time.Hour
	}

	tokens := ttlcache.New[string, time.Time](
		ttlcache.WithTTL[string, time.Time](cfg.TokenTTL),

		// A token's lifetime is fixed from issuance; validation must not
		// extend it.
		ttlcache.WithDisableTouchOnHit[string, time.Time](),
	)
	go tokens.Start()

	return &Store{
		logger:   cfg.Logger.WithGroup("sessions"),
		cfg:      cfg,
		tokens:   tokens,
		tokenTTL: cfg.TokenTTL,
	}, nil
}

// Authenticate checks the supplied password against the configured admin
// secret and, on match, mints a high-entropy opaque token with the fixed
// session TTL. Nothing beyond pass/fail is revealed on mismatch.
func (s *Store) Authenticate(password string) (string, error) {
	ok, err := s.checkPassword(password)
	if err != nil {
		s.logger.Error("password verification failed", "error", err)
		return "", ErrBadCredentials
	}
	if !ok {
		s.logger.Warn("admin authentication rejected")
		return "", ErrBadCredentials
	}

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to mint token: %w", err)
	}
	token := hex.EncodeToString(buf)

	s.tokens.Set(token, time.Now(), s.tokenTTL)
	s.logger.Info("admin session issued", "ttl", s.tokenTTL)
	return token, nil
}

// Validate reports whether token is in the live set and unexpired.
func (s *Store) Validate(token string) bool {
	if token == "" {
		return false
	}
	item := s.tokens.Get(token)
	if item == nil || item.IsExpired() {
		return false
	}
	return true
}

// Revoke removes a token immediately. Used by the gateway when a request
// arrives with a token that failed validation, so the client holding it
// falls back to re-authentication.
func (s *Store) Revoke(token string) {
	if token == "" {
		return
	}
	s.tokens.Delete(token)
}

// Close stops the expiry janitor and clears every live session.
func (s *Store) Close() {
	s.tokens.Stop()
	s.tokens.DeleteAll()
	s.logger.Info("session store closed, all sessions cleared")
}

func (s *Store) checkPassword(password string) (bool, error) {
	if s.cfg.AdminPasswordHash != "" {
		return verifyArgon2id(s.cfg.AdminPasswordHash, password)
	}
	match := subtle.ConstantTimeCompare([]byte(s.cfg.AdminPassword), []byte(password)) == 1
	return match, nil
}

// HashPassword produces an argon2id encoded hash suitable for the
// adminPasswordHash config field.
func HashPassword(password string) (string, error) {
	const (
		memory      = 64 * 1024
		iterations  = 3
		parallelism = 2
		saltLength  = 16
		keyLength   = 32
	)

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyArgon2id checks password against an encoded hash of the form
// $argon2id$v=19$m=...,t=...,p=...$salt$hash
func verifyArgon2id(encoded, password string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, ErrInvalidPasswordHash
	}
	if version != argon2.Version {
		return false, ErrInvalidPasswordHash
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, ErrInvalidPasswordHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrInvalidPasswordHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, ErrInvalidPasswordHash
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
