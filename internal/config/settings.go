package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
// Pointer fields distinguish "unset" from a zero value so defaults survive.
type FileConfig struct {
	Language *string       `toml:"language"`
	Storage  StorageConfig `toml:"storage"`
	Remote   RemoteConfig  `toml:"remote"`
	Feed     FeedConfig    `toml:"feed"`
}

// StorageConfig maps local persistence settings.
type StorageConfig struct {
	Backend *string `toml:"backend"`
	Path    *string `toml:"path"`
}

// RemoteConfig maps remote synchronization settings.
type RemoteConfig struct {
	Backend      *string `toml:"backend"`
	URL          *string `toml:"url"`
	DSN          *string `toml:"dsn"`
	APIKey       *string `toml:"api_key"`
	JWTSecret    *string `toml:"jwt_secret"`
	FlushSeconds *int    `toml:"flush_seconds"`
}

// FeedConfig maps the calendar feed server settings.
type FeedConfig struct {
	Port *string `toml:"port"`
}

// Settings is the fully resolved runtime configuration.
type Settings struct {
	Language      string
	Backend       string
	StoragePath   string
	RemoteBackend string
	RemoteURL     string
	RemoteDSN     string
	RemoteAPIKey  string
	JWTSecret     string
	FlushEvery    time.Duration
	FeedPort      string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Language:      DefaultLanguage,
		Backend:       BackendSQLite,
		StoragePath:   DefaultDBPath(),
		RemoteBackend: RemoteNone,
		FlushEvery:    DefaultFlushEvery,
		FeedPort:      DefaultPort,
	}
}

// LoadFile reads a TOML config from the given path. Missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("%s: %w", ErrConfigStat, err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("%s: %w", ErrConfigDecode, err)
	}
	return cfg, nil
}

// Apply overlays the set fields of a file config.
func (s Settings) Apply(fc FileConfig) Settings {
	setString(&s.Language, fc.Language)
	setString(&s.Backend, fc.Storage.Backend)
	setString(&s.StoragePath, fc.Storage.Path)
	setString(&s.RemoteBackend, fc.Remote.Backend)
	setString(&s.RemoteURL, fc.Remote.URL)
	setString(&s.RemoteDSN, fc.Remote.DSN)
	setString(&s.RemoteAPIKey, fc.Remote.APIKey)
	setString(&s.JWTSecret, fc.Remote.JWTSecret)
	setString(&s.FeedPort, fc.Feed.Port)
	if fc.Remote.FlushSeconds != nil && *fc.Remote.FlushSeconds > 0 {
		s.FlushEvery = time.Duration(*fc.Remote.FlushSeconds) * time.Second
	}
	return s
}

// ApplyEnv overlays LIFEGRID_* variables. lookup is usually os.LookupEnv.
func (s Settings) ApplyEnv(lookup func(string) (string, bool)) Settings {
	env := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	env("LANGUAGE", &s.Language)
	env("BACKEND", &s.Backend)
	env("STORAGE_PATH", &s.StoragePath)
	env("REMOTE", &s.RemoteBackend)
	env("REMOTE_URL", &s.RemoteURL)
	env("REMOTE_DSN", &s.RemoteDSN)
	env("REMOTE_API_KEY", &s.RemoteAPIKey)
	env("JWT_SECRET", &s.JWTSecret)
	env("FEED_PORT", &s.FeedPort)

	if v, ok := lookup(EnvPrefix + "FLUSH_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.FlushEvery = time.Duration(n) * time.Second
		}
	}
	return s
}

// Resolve builds settings from defaults, the TOML file and the environment.
func Resolve(path string) (Settings, error) {
	fc, err := LoadFile(path)
	if err != nil {
		return Settings{}, err
	}
	return Defaults().Apply(fc).ApplyEnv(os.LookupEnv), nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), "lifegrid", DBFileName)
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), "lifegrid", ConfigFileName)
}
