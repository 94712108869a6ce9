package session

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	cfg.Logger = testLogger()
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestAuthenticate_CorrectPassword(t *testing.T) {
	s := newTestStore(t, Config{AdminPassword: "hunter2", TokenTTL: time.Hour})

	token, err := s.Authenticate("hunter2")
	require.NoError(t, err)
	assert.Len(t, token, 64, "token should be 32 random bytes hex-encoded")
	assert.True(t, s.Validate(token), "freshly issued token must validate")
}

func TestAuthenticate_WrongPasswordYieldsNoToken(t *testing.T) {
	s := newTestStore(t, Config{AdminPassword: "hunter2", TokenTTL: time.Hour})

	token, err := s.Authenticate("wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	assert.Empty(t, token)
}

func TestValidate_ExpiredToken(t *testing.T) {
	s := newTestStore(t, Config{AdminPassword: "hunter2", TokenTTL: 50 * time.Millisecond})

	token, err := s.Authenticate("hunter2")
	require.NoError(t, err)
	require.True(t, s.Validate(token))

	time.Sleep(120 * time.Millisecond)
	assert.False(t, s.Validate(token), "token must be invalid after TTL elapses")
}

func TestValidate_EmptyAndUnknownTokens(t *testing.T) {
	s := newTestStore(t, Config{AdminPassword: "hunter2", TokenTTL: time.Hour})

	assert.False(t, s.Validate(""))
	assert.False(t, s.Validate("not-a-real-token"))
}

func TestRevoke(t *testing.T) {
	s := newTestStore(t, Config{AdminPassword: "hunter2", TokenTTL: time.Hour})

	token, err := s.Authenticate("hunter2")
	require.NoError(t, err)

	s.Revoke(token)
	assert.False(t, s.Validate(token), "revoked token must not validate")
}

func TestTokensAreUnique(t *testing.T) {
	s := newTestStore(t, Config{AdminPassword: "hunter2", TokenTTL: time.Hour})

	a, err := s.Authenticate("hunter2")
	require.NoError(t, err)
	b, err := s.Authenticate("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.True(t, s.Validate(a))
	assert.True(t, s.Validate(b))
}

func TestArgon2idHashPath(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	s := newTestStore(t, Config{AdminPasswordHash: hash, TokenTTL: time.Hour})

	token, err := s.Authenticate("correct horse")
	require.NoError(t, err)
	assert.True(t, s.Validate(token))

	_, err = s.Authenticate("battery staple")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(Config{Logger: testLogger()})
	assert.ErrorIs(t, err, ErrNoSecretConfigured)
}
