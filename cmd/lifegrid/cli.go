package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"
	"github.com/tartampluch/go-lifegrid/internal/app"
	"github.com/tartampluch/go-lifegrid/internal/auth"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/metrics"
	"github.com/tartampluch/go-lifegrid/internal/preference"
)

// cli holds the global flags and everything opened for one command.
type cli struct {
	configPath string
	backend    string
	lang       string
	debug      bool

	settings config.Settings
	ws       *app.Workspace
	metrics  *metrics.Collector
	closers  []func() error
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "lifegrid",
		Short:         "Your life in weeks: annotate, paint and sync the grid",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.SetVersionTemplate(versionString())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, config.FlagConfig, config.DefaultConfigPath(), "path to the TOML config file")
	flags.StringVar(&c.backend, config.FlagBackend, "", "local storage: sqlite, fyne or memory (overrides config)")
	flags.StringVar(&c.lang, config.FlagLang, "", "language code (overrides config)")
	flags.BoolVar(&c.debug, config.FlagDebug, false, "enable debug logging")

	root.AddCommand(
		newStatusCmd(c),
		newProfileCmd(c),
		newPaintCmd(c),
		newExportCmd(c),
		newServeCmd(c),
		newImportCmd(c),
		newSyncCmd(c),
		newLoginCmd(c),
		newLogoutCmd(c),
	)
	return root
}

// setup resolves settings and opens the workspace used by every command.
func (c *cli) setup(cmd *cobra.Command) error {
	if closer := setupLogging(c.debug); closer != nil {
		c.closers = append(c.closers, closer.Close)
	}
	logStartupInfo()

	s, err := config.Resolve(c.configPath)
	if err != nil {
		return err
	}
	if c.backend != "" {
		s.Backend = c.backend
	}
	if c.lang != "" {
		s.Language = c.lang
	}
	c.settings = s
	slog.Debug(config.MsgSettings,
		config.LogKeyComponent, config.CompMain,
		config.LogKeyBackend, s.Backend,
		config.LogKeyLang, s.Language)
	c.metrics = metrics.NewCollector(config.MetricsNamespace)

	var prefs fyne.Preferences
	var system preference.SystemTheme = preference.StaticTheme(false)
	if s.Backend == config.BackendFyne {
		a := fyneapp.NewWithID(config.AppID)
		prefs = a.Preferences()
		system = preference.FyneSystemTheme{App: a}
	}

	backend, closeBackend, err := app.OpenBackend(s, prefs)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, closeBackend)

	session := auth.New(s.JWTSecret)
	if err := session.RestoreFromKeyring(); err != nil {
		slog.Warn(config.MsgAuthRestoreFail,
			config.LogKeyComponent, config.CompAuth,
			config.LogKeyError, err)
	}

	opts := []app.Option{
		app.WithMetrics(c.metrics),
		app.WithSystemTheme(system),
		app.WithSession(session),
		app.WithLanguage(s.Language),
		app.WithSyncTimeout(config.SyncTimeout),
	}

	ctx := cmd.Context()
	rem, err := app.OpenRemote(ctx, s, session.Token)
	if err != nil {
		return err
	}
	if rem != nil {
		c.closers = append(c.closers, rem.Close)
		opts = append(opts, app.WithRemote(rem.Endpoints))
	}

	c.ws = app.New(backend, opts...)
	return nil
}

// close drains the workspace, then releases resources in reverse order.
func (c *cli) close() {
	var errs []error
	if c.ws != nil {
		ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		errs = append(errs, c.ws.Close(ctx))
		cancel()
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		slog.Error(config.ErrAppFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err)
		return
	}
	slog.Debug(config.MsgAppStop, config.LogKeyComponent, config.CompMain)
}

// out is where command results go.
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
