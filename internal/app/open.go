package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fyne.io/fyne/v2"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/gateway"
	"github.com/tartampluch/go-lifegrid/internal/remote"
	"github.com/tartampluch/go-lifegrid/internal/remote/pgstore"
	"github.com/tartampluch/go-lifegrid/internal/remote/rest"
	"github.com/zalando/go-keyring"
)

// ErrFynePrefsMissing is returned when the fyne backend is selected without
// a fyne application.
var ErrFynePrefsMissing = errors.New(config.ErrFynePrefs)

// OpenBackend opens the local storage selected by s.Backend. prefs is only
// used by the fyne backend. The returned close function is never nil.
func OpenBackend(s config.Settings, prefs fyne.Preferences) (gateway.Backend, func() error, error) {
	noop := func() error { return nil }

	switch s.Backend {
	case config.BackendSQLite:
		b, err := gateway.OpenSQLite(s.StoragePath)
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	case config.BackendFyne:
		if prefs == nil {
			return nil, noop, ErrFynePrefsMissing
		}
		return gateway.NewPreferencesBackend(prefs), noop, nil
	case config.BackendMemory:
		return gateway.NewMemoryBackend(), noop, nil
	default:
		return nil, noop, fmt.Errorf("%s: %q", config.ErrUnknownBackend, s.Backend)
	}
}

// Remote is an opened remote store.
type Remote struct {
	Endpoints remote.Endpoints
	close     func() error
}

// Close releases the remote connection.
func (r *Remote) Close() error {
	if r == nil || r.close == nil {
		return nil
	}
	return r.close()
}

// OpenRemote connects the remote selected by s.RemoteBackend. It returns
// nil for config.RemoteNone. token supplies the user's bearer token to the
// REST backend.
func OpenRemote(ctx context.Context, s config.Settings, token func() string) (*Remote, error) {
	switch s.RemoteBackend {
	case "", config.RemoteNone:
		return nil, nil

	case config.RemoteREST:
		c, err := rest.New(s.RemoteURL, apiKey(s), rest.WithToken(token))
		if err != nil {
			return nil, err
		}
		return &Remote{Endpoints: c.Endpoints()}, nil

	case config.RemotePostgres:
		st, err := pgstore.Open(s.RemoteDSN)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return &Remote{Endpoints: st.Endpoints(), close: st.Close}, nil

	default:
		return nil, fmt.Errorf("%s: %q", config.ErrUnknownRemote, s.RemoteBackend)
	}
}

// apiKey prefers the configured key and falls back to the OS keyring.
func apiKey(s config.Settings) string {
	if s.RemoteAPIKey != "" {
		return s.RemoteAPIKey
	}
	key, err := keyring.Get(config.KeyringService, config.KeyringAPIKey)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			slog.Warn(config.ErrKeyring,
				config.LogKeyComponent, config.CompRemote,
				config.LogKeyError, err)
		}
		return ""
	}
	return key
}
