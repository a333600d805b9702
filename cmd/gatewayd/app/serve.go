package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blockstack/gaia-gateway/internal/config"
	"github.com/blockstack/gaia-gateway/internal/gateway"
	"github.com/blockstack/gaia-gateway/internal/logger"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway's HTTP listener",
		Long: `Start the gateway's HTTP listener. The server reads its configuration from
the --config INI file, if given, overlaid with GAIA_* environment overrides,
and serves the full /v1 surface until interrupted.`,
		RunE: runServe,
	}

	cmd.Flags().String("host", "", "Host address to bind to (overrides config file)")
	cmd.Flags().String("port", "", "Port to listen on (overrides config file)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	configPath := viper.GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Debug {
		logger.Initialize(true)
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.BindHost = host
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.BindPort = port
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return err
	}
	gw.Deps.Version = version

	logger.Infof("starting gatewayd on %s", cfg.Addr())
	return gw.Start(ctx)
}
