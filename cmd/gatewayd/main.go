// Command gatewayd runs the Gaia gateway: a local authenticated HTTP
// proxy between co-located client applications and the fabric.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockstack/gaia-gateway/cmd/gatewayd/app"
	"github.com/blockstack/gaia-gateway/internal/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("gatewayd: %v", err)
		os.Exit(1)
	}
}
