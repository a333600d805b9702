// Package app provides the entry point for the gatewayd command-line
// application, grounded on the teacher's cmd/vmcp/app root-command
// and cmd/thv-registry-api/app serve-command conventions.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blockstack/gaia-gateway/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:               "gatewayd",
	DisableAutoGenTag: true,
	Short:             "Gaia gateway — a local authenticated proxy onto the fabric",
	Long: `gatewayd runs the Gaia gateway, a local HTTP service that mediates between
co-located client applications and the decentralized naming and data layer
("the fabric"). It terminates the authenticated multi-device datastore
protocol, proxies naming and blockchain reads, and forwards registrar
mutations to the external queue.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize(viper.GetBool("debug"))
	},
}

// NewRootCmd creates the gatewayd root command.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the gateway's INI config file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version)
		},
	}
}

// version is overridden at build time via -ldflags.
var version = "dev"
