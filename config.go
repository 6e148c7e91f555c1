package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind         string
	maxQuestions int
	offlineGrace time.Duration
	points       int
	port         int
	prefix       string
	profile      bool
	questions    string
	questionTime time.Duration
	tickInterval time.Duration
	tlsCert      string
	tlsKey       string
	verbose      bool
	version      bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxQuestions < 1 {
		return fmt.Errorf("invalid maximum question count: %d", c.maxQuestions)
	}
	if c.points < 1 {
		return fmt.Errorf("invalid points per question: %d", c.points)
	}
	if c.questionTime <= 0 {
		return fmt.Errorf("invalid question time: %s", c.questionTime)
	}
	if c.tickInterval <= 0 {
		return fmt.Errorf("invalid tick interval: %s", c.tickInterval)
	}
	if c.offlineGrace <= 0 {
		return fmt.Errorf("invalid offline grace period: %s", c.offlineGrace)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizbox...",
		Short:         "A multiplayer trivia server with rooms, jokers, and live scoreboards.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZBOX_BIND)")
	fs.IntVar(&cfg.maxQuestions, "max-questions", 30, "maximum number of questions per game (env: QUIZBOX_MAX_QUESTIONS)")
	fs.DurationVar(&cfg.offlineGrace, "offline-grace", 2*time.Minute, "time disconnected players are kept before removal (env: QUIZBOX_OFFLINE_GRACE)")
	fs.IntVar(&cfg.points, "points", 1, "points awarded per correct answer (env: QUIZBOX_POINTS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUIZBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: QUIZBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: QUIZBOX_PROFILE)")
	fs.StringVarP(&cfg.questions, "questions", "q", "questions.csv", "path to semicolon-delimited question file (env: QUIZBOX_QUESTIONS)")
	fs.DurationVar(&cfg.questionTime, "question-time", 2*time.Minute, "time players have to answer each question (env: QUIZBOX_QUESTION_TIME)")
	fs.DurationVar(&cfg.tickInterval, "tick-interval", 350*time.Millisecond, "interval between countdown ticks (env: QUIZBOX_TICK_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: QUIZBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: QUIZBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: QUIZBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: QUIZBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
