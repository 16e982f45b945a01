package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tartampluch/go-lifegrid/internal/auth"
	"github.com/tartampluch/go-lifegrid/internal/config"
	"github.com/tartampluch/go-lifegrid/internal/feed"
	"github.com/tartampluch/go-lifegrid/internal/temporal"
	"github.com/tartampluch/go-lifegrid/internal/weeks"
)

var errWeekArg = errors.New(config.ErrWeekArg)

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current week and progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws := c.ws
			fmt.Fprintln(out(cmd), ws.StatusLine())

			p := ws.Profile.Snapshot()
			if p.UserName != nil {
				fmt.Fprintf(out(cmd), "name:        %s\n", *p.UserName)
			}
			if p.Birth != nil {
				fmt.Fprintf(out(cmd), "born:        %s\n", p.Birth)
			}
			st := ws.Stats()
			fmt.Fprintf(out(cmd), "age:         %d\n", st.Age)
			fmt.Fprintf(out(cmd), "remaining:   %d weeks\n", st.RemainingWeeks)
			fmt.Fprintf(out(cmd), "milestones:  %d\n", st.Milestones)
			fmt.Fprintf(out(cmd), "goals:       %d\n", len(ws.Notes.Goals()))
			fmt.Fprintf(out(cmd), "selected:    %d\n", ws.Selection.SelectionCount())
			if uid, ok := ws.Session.CurrentUserID(); ok {
				fmt.Fprintf(out(cmd), "signed in:   %s\n", uid)
			}
			return nil
		},
	}
}

func newProfileCmd(c *cli) *cobra.Command {
	var name, birth string
	var lifeExp int

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Set name, birth date and life expectancy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := time.Parse(config.DateFormatFullDash, birth)
			if err != nil {
				return fmt.Errorf("%s: %w", config.ErrInvalidDate, err)
			}
			if err := c.ws.CompleteProfile(cmd.Context(), name, weeks.DateOf(t), lifeExp); err != nil {
				return err
			}
			fmt.Fprintln(out(cmd), c.ws.StatusLine())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, config.FlagName, "", "display name")
	cmd.Flags().StringVar(&birth, config.FlagBirth, "", "birth date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&lifeExp, config.FlagLifeExp, config.DefaultLifeExpectancy, "life expectancy in years")
	_ = cmd.MarkFlagRequired(config.FlagBirth)
	return cmd
}

func newPaintCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paint <category> <week|from-to>...",
		Short: "Paint weeks with a mood category",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			ws := c.ws
			ws.Selection.SetSelectedColor(key)

			painted := 0
			for _, arg := range args[1:] {
				from, to, err := parseWeeks(arg)
				if err != nil {
					return err
				}
				if from == to {
					ws.TapWeek(from)
				} else {
					ws.PaintRange(from, to)
					ws.Selection.AddPinnedWeeks(span(from, to)...)
				}
				painted += to - from + 1
			}

			slog.Info(config.MsgPainted,
				config.LogKeyComponent, config.CompMain,
				config.LogKeyKey, key,
				config.LogKeyCount, painted)
			fmt.Fprintln(out(cmd), ws.StatusLine())
			return nil
		},
	}
}

// parseWeeks accepts "12" or "10-20".
func parseWeeks(arg string) (int, int, error) {
	lo, hi, isRange := strings.Cut(arg, "-")
	from, err := strconv.Atoi(lo)
	if err != nil || from < config.FirstWeek {
		return 0, 0, fmt.Errorf("%w: %q", errWeekArg, arg)
	}
	if !isRange {
		return from, from, nil
	}
	to, err := strconv.Atoi(hi)
	if err != nil || to < config.FirstWeek {
		return 0, 0, fmt.Errorf("%w: %q", errWeekArg, arg)
	}
	if to < from {
		from, to = to, from
	}
	return from, to, nil
}

func span(from, to int) []int {
	list := make([]int, 0, to-from+1)
	for w := from; w <= to; w++ {
		list = append(list, w)
	}
	return list
}

func newExportCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export-ics",
		Short: "Write milestones and goals as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, n, err := c.ws.Calendar()
			if err != nil {
				return err
			}
			if output == config.StdoutPath {
				_, err = out(cmd).Write(data)
			} else {
				err = os.WriteFile(output, data, config.FilePermUserRW)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", config.ErrOutputWrite, err)
			}
			slog.Info(config.MsgExported,
				config.LogKeyComponent, config.CompFeed,
				config.LogKeyFile, output,
				config.LogKeyEvents, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, config.FlagOutput, "o", config.StdoutPath, "output file, - for stdout")
	return cmd
}

func newServeCmd(c *cli) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar feed on localhost and keep syncing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if port == "" {
				port = c.settings.FeedPort
			}

			srv := feed.NewServer(port, feed.WithMetrics(c.metrics))
			stop, err := c.ws.Publish(srv)
			if err != nil {
				return err
			}
			defer stop()

			if c.ws.Sync != nil {
				c.ws.Start(ctx)
				go c.ws.Sync.Run(ctx, c.settings.FlushEvery)
			}

			fmt.Fprintf(out(cmd), "http://%s:%s%s\n", config.LocalhostBindAddr, port, config.RouteCalendar)
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&port, config.FlagPort, "", "listen port (overrides config)")
	return cmd
}

func newImportCmd(c *cli) *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "import-vcard <file.vcf|url>",
		Short: "Take name and birth date from a vCard file or CardDAV URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if strings.HasPrefix(src, config.SchemeHTTP+"://") || strings.HasPrefix(src, config.SchemeHTTPS+"://") {
				err := c.ws.Profile.ImportVCardFrom(cmd.Context(), temporal.NewHTTPFetcher(), src, user, pass)
				if err != nil {
					return err
				}
			} else {
				f, err := os.Open(src)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				if err := c.ws.Profile.ImportVCard(f); err != nil {
					return err
				}
			}

			slog.Info(config.MsgImported,
				config.LogKeyComponent, config.CompTemporal,
				config.LogKeyFile, src)
			fmt.Fprintln(out(cmd), c.ws.StatusLine())
			return nil
		},
	}
	cmd.Flags().StringVar(&user, config.FlagUser, "", "basic auth user for URLs")
	cmd.Flags().StringVar(&pass, config.FlagPassword, "", "basic auth password for URLs")
	return cmd
}

func newSyncCmd(c *cli) *cobra.Command {
	var push bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull remote records, then push local ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws := c.ws
			if ws.Sync == nil {
				return fmt.Errorf("%s: %q", config.ErrUnknownRemote, c.settings.RemoteBackend)
			}
			if !ws.Session.IsAuthenticated() {
				return auth.ErrNotAuthenticated
			}
			ctx := cmd.Context()
			if err := ws.Sync.Pull(ctx); err != nil {
				return err
			}
			if push {
				if err := ws.Sync.PushAll(ctx); err != nil {
					return err
				}
			}
			fmt.Fprintln(out(cmd), ws.StatusLine())
			return nil
		},
	}
	cmd.Flags().BoolVar(&push, config.FlagPush, true, "upsert every local record after pulling")
	return cmd
}

func newLoginCmd(c *cli) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token issued by the remote provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.ws.Session.SignInWithToken(token); err != nil {
				return err
			}
			uid, _ := c.ws.Session.CurrentUserID()
			fmt.Fprintf(out(cmd), "signed in as %s\n", uid)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, config.FlagToken, "", "JWT access token")
	_ = cmd.MarkFlagRequired(config.FlagToken)
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.ws.Session.SignOut()
			fmt.Fprintln(out(cmd), "signed out")
			return nil
		},
	}
}
