package main

import (
	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/access"
	"github.com/zulandar/switchyard/internal/api"
	"github.com/zulandar/switchyard/internal/logging"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Serves the Switchyard REST API until interrupted. Requests authenticate with the static tokens in auth.tokens.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer closeDB(gormDB)

	logger, err := logging.New(cfg.Server.LogLevel, cfg.Server.Dev)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if port == 0 {
		port = cfg.Server.Port
	}
	if len(cfg.Auth.Tokens) == 0 {
		logger.Warn("no auth.tokens configured; every request will be rejected")
	}

	ctx, stop := signalContext()
	defer stop()

	logger.Info("starting api", zap.String("store", describeStore(cfg.Database)))
	return api.Start(ctx, api.StartOpts{
		DB:         gormDB,
		Port:       port,
		Logger:     logger,
		Resolver:   access.TokenResolver(gormDB, cfg.Auth.Tokens),
		Authorizer: access.NewDBAuthorizer(gormDB),
	})
}
