package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"f451comms/internal/config"
	"f451comms/internal/domain/dispatch"
	"f451comms/internal/infra/chat"
	"f451comms/internal/infra/email"
	"f451comms/internal/infra/sms"
	"f451comms/internal/infra/social"
)

var (
	flagMessage  string
	flagChannels []string
	flagAttrs    []string
	flagConfig   string
	flagSecrets  string
	flagLogLevel string
	flagSuppress bool
	flagTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "comms",
	Short: "Send a message across email, chat, SMS, and social channels",
	Long: `comms dispatches a single message to one or more configured
communication channels (Mailgun email, Slack, Twilio SMS, Twitter) and
reports the per-channel outcome.

Channels are named by their canonical identifiers (f451_mailgun,
f451_slack, f451_twilio, f451_twitter), by configured aliases, or by the
"all" wildcard. Multiple channels may be given as repeated flags or as a
single pipe-delimited string.`,
	Example: `  comms --msg "deploy finished" --channel all
  comms --msg "disk almost full" --channel "f451_slack|f451_twilio"
  comms --msg "hello" --channel f451_mailgun --attr subject="Greetings"`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&flagMessage, "msg", "m", "", "message text to send (required)")
	rootCmd.Flags().StringArrayVarP(&flagChannels, "channel", "c", nil, `target channel(s); defaults to the configured channel set`)
	rootCmd.Flags().StringArrayVarP(&flagAttrs, "attr", "a", nil, "per-call attribute as key=value (repeatable)")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "path to an additional config file")
	rootCmd.Flags().StringVar(&flagSecrets, "secrets", "", "path to an additional secrets file")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (DEBUG, INFO, WARNING, ERROR, OFF, or 0-50)")
	rootCmd.Flags().BoolVar(&flagSuppress, "suppress-errors", false, "report channel failures without a non-zero exit")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 2*time.Minute, "overall dispatch timeout")
	_ = rootCmd.MarkFlagRequired("msg")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig, flagSecrets)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	setupLogging(cfg)

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if len(registry.Channels()) == 0 {
		return fmt.Errorf("no communication channels configured; add credentials to config or environment")
	}

	dispatcher := dispatch.NewDispatcher(registry, dispatch.Options{
		DefaultChannels: cfg.DefaultChannels(),
		SuppressErrors:  cfg.Main.SuppressErrors || flagSuppress,
	})

	attribs, err := parseAttrs(flagAttrs)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	result, err := dispatcher.Send(ctx, &dispatch.Message{Text: flagMessage}, flagChannels, attribs)
	if result == nil {
		return err
	}

	printResult(cmd, result)

	if !result.OK() {
		if err != nil {
			return err
		}
		return fmt.Errorf("message delivery failed on every channel")
	}
	return nil
}

// setupLogging configures the default slog logger. The CLI writes logs to
// stderr so delivery reports on stdout stay clean.
func setupLogging(cfg *config.Config) {
	levelStr := cfg.Main.LogLevel
	if flagLogLevel != "" {
		levelStr = flagLogLevel
	}
	level, err := dispatch.ParseLogLevel(levelStr)
	if err != nil {
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildRegistry constructs an adapter for every channel with usable
// credentials. Channels without credentials are skipped silently so a
// laptop with only a Slack token still works.
func buildRegistry(cfg *config.Config) (*dispatch.Registry, error) {
	registry := dispatch.NewRegistry(cfg.ChannelAliases())

	if cfg.Mailgun.Enabled() {
		p, err := email.NewMailgunProvider(cfg.Mailgun.PrivAPIKey, cfg.Mailgun.FromDomain, cfg.Mailgun.FromName)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(p, cfg.Mailgun.Defaults()); err != nil {
			return nil, err
		}
	}
	if cfg.Slack.Enabled() {
		p, err := chat.NewSlackProvider(cfg.Slack.AuthToken, cfg.Slack.FromSlack)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(p, cfg.Slack.Defaults()); err != nil {
			return nil, err
		}
	}
	if cfg.Twilio.Enabled() {
		p, err := sms.NewTwilioProvider(cfg.Twilio.AcctSID, cfg.Twilio.AuthToken, cfg.Twilio.FromPhone)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(p, cfg.Twilio.Defaults()); err != nil {
			return nil, err
		}
	}
	if cfg.Twitter.Enabled() {
		p, err := social.NewTwitterProvider(cfg.Twitter.UserKey, cfg.Twitter.UserSecret, cfg.Twitter.AuthToken, cfg.Twitter.AuthSecret)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(p, cfg.Twitter.Defaults()); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// parseAttrs converts repeated key=value flags into an attribute map.
func parseAttrs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attribs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid attribute %q: expected key=value", pair)
		}
		attribs[strings.TrimSpace(key)] = value
	}
	return attribs, nil
}

// printResult writes one line per attempted channel, successes first.
func printResult(cmd *cobra.Command, result dispatch.Result) {
	channels := make([]string, 0, len(result))
	for ch := range result {
		channels = append(channels, ch)
	}
	sort.Slice(channels, func(i, j int) bool {
		a, b := result[channels[i]], result[channels[j]]
		if a.OK() != b.OK() {
			return a.OK()
		}
		return channels[i] < channels[j]
	})

	for _, ch := range channels {
		o := result[ch]
		if o.OK() {
			if o.Provider != nil && o.Provider.MessageID != "" {
				cmd.Printf("%-14s OK  %s\n", ch, o.Provider.MessageID)
			} else {
				cmd.Printf("%-14s OK\n", ch)
			}
			continue
		}
		cmd.Printf("%-14s FAILED  %v\n", ch, o.Err)
	}
}
