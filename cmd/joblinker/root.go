package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"joblinker/internal/app"
	"joblinker/internal/platform/config"
	"joblinker/internal/platform/logger"
)

// cli carries the resolved configuration from the root command to its
// children.
type cli struct {
	cfg    config.Client
	logger *slog.Logger

	apiURL           string
	profile          string
	logLevel         string
	refreshTimeout   time.Duration
	bootstrapTimeout time.Duration
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "joblinker",
		Short: "Job board client with a persistent session",
		Long: `joblinker signs in to the job board backend and keeps the session alive.

Each invocation is a fresh page load: the access token lives only in memory,
and the session is restored from the HTTP-only refresh cookie kept in the
cookie profile.

Examples:
  joblinker login --email ada@example.com
  joblinker whoami
  joblinker get jobs
  joblinker serve`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.apiURL, "api-url", "", "backend API base URL (env JOBLINKER_API_URL)")
	flags.StringVar(&c.profile, "profile", "", "cookie profile path (env JOBLINKER_PROFILE)")
	flags.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (env JOBLINKER_LOG_LEVEL)")
	flags.DurationVar(&c.refreshTimeout, "refresh-timeout", 0, "bound on one refresh call (env JOBLINKER_REFRESH_TIMEOUT)")
	flags.DurationVar(&c.bootstrapTimeout, "bootstrap-timeout", 0, "bound on session restore (env JOBLINKER_BOOTSTRAP_TIMEOUT)")

	root.AddCommand(
		newLoginCmd(c),
		newRegisterCmd(c),
		newVerifyCmd(c),
		newLogoutCmd(c),
		newWhoamiCmd(c),
		newGetCmd(c),
		newServeCmd(c),
	)
	return root
}

// load resolves config from env and .env, then applies flag overrides.
func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.APIURL = c.apiURL
	}
	if c.profile != "" {
		cfg.ProfilePath = c.profile
	}
	if c.refreshTimeout > 0 {
		cfg.RefreshTimeout = c.refreshTimeout
	}
	if c.bootstrapTimeout > 0 {
		cfg.BootstrapTimeout = c.bootstrapTimeout
	}
	if c.logLevel != "" {
		if cfg.LogLevel, err = config.ParseLevel(c.logLevel); err != nil {
			return err
		}
	}
	c.cfg = cfg
	c.logger = logger.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
	return nil
}

// open starts one page load.
func (c *cli) open() (*app.App, error) {
	a, err := app.New(c.cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return a, nil
}

// closeApp persists the cookie profile; a failure there outranks a nil err.
func closeApp(a *app.App, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("save cookie profile: %w", cerr)
	}
}
