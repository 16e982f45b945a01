// Package auth tracks the signed-in user. Sessions are bearer tokens issued
// by the remote provider; the token is kept in the OS keyring between runs.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/observe"
	"github.com/zalando/go-keyring"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New(config.ErrNotAuthenticated)

	// ErrTokenInvalid is returned when a token fails signature or claim checks.
	ErrTokenInvalid = errors.New(config.ErrTokenInvalid)

	// ErrTokenSubject is returned when a valid token carries no subject.
	ErrTokenSubject = errors.New(config.ErrTokenSubject)
)

// Event is published whenever the signed-in user changes.
type Event struct {
	Authenticated bool
	UserID        string
}

// Option configures a Session.
type Option func(*Session)

// WithoutKeyring keeps tokens in memory only.
func WithoutKeyring() Option {
	return func(s *Session) { s.useKeyring = false }
}

// Session is safe for concurrent use.
type Session struct {
	secret     []byte
	useKeyring bool
	events     observe.Topic[Event]

	mu     sync.RWMutex
	userID string
	token  string
}

// New returns a signed-out session that verifies HS256 tokens with secret.
func New(secret string, opts ...Option) *Session {
	s := &Session{secret: []byte(secret), useKeyring: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every sign-in and sign-out.
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	return s.events.Subscribe(fn)
}

// IsAuthenticated reports whether a user is signed in.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.CurrentUserID()
	return ok
}

// CurrentUserID returns the signed-in user id.
func (s *Session) CurrentUserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.userID != ""
}

// Token returns the bearer token of the session, empty when signed out or
// signed in without one.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SignInWithToken verifies token and signs its subject in. The token is
// stored in the keyring; a keyring failure is logged but does not fail the
// sign-in.
func (s *Session) SignInWithToken(token string) error {
	userID, err := s.verify(token)
	if err != nil {
		return err
	}
	if s.useKeyring {
		if err := keyring.Set(config.KeyringService, config.KeyringSession, token); err != nil {
			slog.Warn(config.ErrKeyring,
				config.LogKeyComponent, config.CompAuth,
				config.LogKeyError, err)
		}
	}
	s.set(userID, token)
	return nil
}

// SignInAs signs userID in without a token. It serves trusted local callers
// such as a backend reached with a service key.
func (s *Session) SignInAs(userID string) error {
	if userID == "" {
		return ErrTokenSubject
	}
	s.set(userID, "")
	return nil
}

// RestoreFromKeyring signs in with the stored token, if any. A stored token
// that no longer verifies is removed.
func (s *Session) RestoreFromKeyring() error {
	if !s.useKeyring {
		return nil
	}
	token, err := keyring.Get(config.KeyringService, config.KeyringSession)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrKeyring, err)
	}

	userID, err := s.verify(token)
	if err != nil {
		slog.Warn(config.MsgAuthRestoreFail,
			config.LogKeyComponent, config.CompAuth,
			config.LogKeyError, err)
		_ = keyring.Delete(config.KeyringService, config.KeyringSession)
		return err
	}
	s.set(userID, token)
	return nil
}

// SignOut clears the session and the stored token.
func (s *Session) SignOut() {
	if s.useKeyring {
		err := keyring.Delete(config.KeyringService, config.KeyringSession)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			slog.Warn(config.ErrKeyring,
				config.LogKeyComponent, config.CompAuth,
				config.LogKeyError, err)
		}
	}
	s.set("", "")
}

func (s *Session) verify(token string) (string, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return "", ErrTokenInvalid
	}
	if claims.Subject == "" {
		return "", ErrTokenSubject
	}
	return claims.Subject, nil
}

// set publishes only when the user actually changes.
func (s *Session) set(userID, token string) {
	s.mu.Lock()
	changed := s.userID != userID
	s.userID = userID
	s.token = token
	s.mu.Unlock()

	if !changed {
		return
	}
	slog.Info(config.MsgAuthChanged,
		config.LogKeyComponent, config.CompAuth,
		config.LogKeyAuth, userID != "",
		config.LogKeyUser, userID)
	s.events.Publish(Event{Authenticated: userID != "", UserID: userID})
}
