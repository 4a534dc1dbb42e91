package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/logging"
	"github.com/zulandar/switchyard/internal/notify"
	discordadapter "github.com/zulandar/switchyard/internal/notify/discord"
	slackadapter "github.com/zulandar/switchyard/internal/notify/slack"
	"go.uber.org/zap"
)

func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Manage the chat notifier",
		Long:  "The notifier posts board activity and scheduled digests to Slack or Discord.",
	}

	cmd.AddCommand(newNotifyStartCmd())
	return cmd
}

func newNotifyStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the notifier daemon",
		Long:  "Connects to the configured chat platform and posts Switchyard events until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifyStart(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runNotifyStart(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Notify.Platform == "" {
		return fmt.Errorf("notify: no platform configured in %s (add notify.platform)", configPath)
	}

	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.Dev)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	adapter, err := createAdapter(cfg, logger)
	if err != nil {
		return err
	}

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)

	opts := notify.DaemonOpts{
		DB:           gormDB,
		Adapters:     []notify.Adapter{adapter},
		Channel:      cfg.Notify.Channel,
		PollInterval: time.Duration(cfg.Notify.PollIntervalSec) * time.Second,
		Logger:       logger,
	}
	if cfg.Notify.Digest.Enabled {
		opts.DigestSchedule = cfg.Notify.Digest.Schedule
	}
	daemon, err := notify.NewDaemon(opts)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	logger.Info("notifier starting", zap.String("platform", cfg.Notify.Platform), zap.String("channel", cfg.Notify.Channel))
	return daemon.Run(ctx)
}

// createAdapter builds a platform adapter from the config.
func createAdapter(cfg *config.Config, logger *zap.Logger) (notify.Adapter, error) {
	switch cfg.Notify.Platform {
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Channel,
			Logger:    logger,
		})
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Channel,
			Logger:    logger,
		})
	default:
		return nil, fmt.Errorf("notify: unsupported platform %q", cfg.Notify.Platform)
	}
}
