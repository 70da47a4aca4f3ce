/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/analogy/store"
)

type Config struct {
	archiveSessions  bool
	autoSaveInterval time.Duration
	bind             string
	corsOrigin       string
	dbPath           string
	pairCount        int
	pairsFile        string
	port             int
	prefix           string
	profile          bool
	redisURL         string
	sessionTimeout   time.Duration
	store            string
	timerDuration    int
	tlsCert          string
	tlsKey           string
	verbose          bool
	version          bool

	logger zerolog.Logger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if !slices.Contains(store.Drivers, c.store) {
		return fmt.Errorf("invalid store (must be one of %s): %q", strings.Join(store.Drivers, ", "), c.store)
	}
	if c.store == "redis" && c.redisURL == "" {
		return errors.New("--redis-url is required when --store=redis")
	}
	if c.pairCount < 1 {
		return fmt.Errorf("invalid pair count (must be at least 1): %d", c.pairCount)
	}
	if c.timerDuration < 1 {
		return fmt.Errorf("invalid timer duration (must be at least 1 second): %d", c.timerDuration)
	}
	if c.autoSaveInterval < 100*time.Millisecond {
		return fmt.Errorf("invalid autosave interval (must be at least 100ms): %s", c.autoSaveInterval)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) storeOptions() store.Options {
	return store.Options{
		Driver:   c.store,
		Path:     c.dbPath,
		RedisURL: c.redisURL,
		Prefix:   "analogy:",
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ANALOGY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "analogy",
		Short:         "Facilitates the Analogy Game strategy workshop from a single shared screen.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			level := zerolog.InfoLevel
			if cfg.verbose {
				level = zerolog.DebugLevel
			}
			cfg.logger = log.Logger.Level(level)

			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.BoolVar(&cfg.archiveSessions, "archive-sessions", false, "also keep every session under its own id, so resets supersede instead of overwrite (env: ANALOGY_ARCHIVE_SESSIONS)")
	fs.DurationVar(&cfg.autoSaveInterval, "autosave-interval", 5*time.Second, "interval between autosaves of new sessions (env: ANALOGY_AUTOSAVE_INTERVAL)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: ANALOGY_BIND)")
	fs.StringVar(&cfg.corsOrigin, "cors-origin", "", "allow cross-origin requests from this origin (env: ANALOGY_CORS_ORIGIN)")
	fs.StringVar(&cfg.dbPath, "db-path", "analogy.db", "path to sqlite database, for --store=sqlite (env: ANALOGY_DB_PATH)")
	fs.IntVar(&cfg.pairCount, "pair-count", 5, "number of company pairs drawn per session (env: ANALOGY_PAIR_COUNT)")
	fs.StringVar(&cfg.pairsFile, "pairs-file", "", "path to a JSON or YAML pair catalog, instead of the built-in one (env: ANALOGY_PAIRS_FILE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: ANALOGY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: ANALOGY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: ANALOGY_PROFILE)")
	fs.StringVar(&cfg.redisURL, "redis-url", "", "redis connection url, for --store=redis (env: ANALOGY_REDIS_URL)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are unloaded (env: ANALOGY_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.store, "store", "memory", "session storage driver: memory, sqlite or redis (env: ANALOGY_STORE)")
	fs.IntVar(&cfg.timerDuration, "timer-duration", 10, "countdown length in seconds for new sessions (env: ANALOGY_TIMER_DURATION)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: ANALOGY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: ANALOGY_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: ANALOGY_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: ANALOGY_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("analogy v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
