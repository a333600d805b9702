// Package gateway wires the dependency order spec §2 describes —
// driver registry → datastore core → {registrar, chain} →
// auth/session → listener/dispatcher — into a single owned Gateway,
// grounded on the teacher's pkg/api.Serve but turned into a struct
// with Start/Shutdown methods rather than one free function, so a
// caller other than cmd/gatewayd (a test, an embedder) can manage its
// lifecycle without package-level state.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/chain"
	"github.com/blockstack/gaia-gateway/internal/config"
	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/drivers"
	"github.com/blockstack/gaia-gateway/internal/httpapi"
	"github.com/blockstack/gaia-gateway/internal/logger"
	"github.com/blockstack/gaia-gateway/internal/registrar"
	"github.com/blockstack/gaia-gateway/internal/store"
	"github.com/blockstack/gaia-gateway/internal/wallet"
)

const readHeaderTimeout = 10 * time.Second

// Gateway owns every backend the HTTP surface dispatches to and the
// http.Server that fronts them.
type Gateway struct {
	cfg    *config.Config
	srv    *http.Server
	Deps   *httpapi.Deps
}

// New constructs a Gateway from cfg. It always generates a fresh
// ephemeral master data key; no key is read from the config (spec §6
// doesn't specify master-key persistence; a fresh gateway process
// mints one and every previously-issued session becomes invalid,
// which is consistent with spec §5's "no shared mutable datastore
// state kept in the gateway").
func New(cfg *config.Config) (*Gateway, error) {
	registry := drivers.NewRegistry()

	if cfg.LocalDiskRoot != "" {
		disk, err := drivers.NewLocalDiskDriver("disk", cfg.LocalDiskRoot)
		if err != nil {
			return nil, fmt.Errorf("construct localdisk driver: %w", err)
		}
		if err := registry.Register("disk", disk, ""); err != nil {
			return nil, fmt.Errorf("register localdisk driver: %w", err)
		}
	} else {
		registry.Register("disk", drivers.NewMemoryDriver("disk"), "") //nolint:errcheck // fresh registry, first registration never races
	}

	writeOpts := store.DefaultWriteOptions()
	writeOpts.MinSuccess = cfg.MinWriteSuccess
	dataStore := store.NewStore(registry, writeOpts)

	masterKey, err := cryptoutil.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate master data key: %w", err)
	}

	var localOrigins []auth.Origin
	for _, raw := range cfg.LocalOrigins {
		if o, ok := auth.ParseOrigin(raw); ok {
			localOrigins = append(localOrigins, o)
		}
	}

	authCfg := auth.Config{
		MasterPassword:  cfg.MasterPassword,
		MasterPublicKey: masterKey.PubKey(),
		MasterKey:       masterKey,
		LocalOrigins:    localOrigins,
		AllowedSuffixes: cfg.AppSuffixes,
	}

	var wf *wallet.File
	if cfg.WalletPath != "" {
		wf = wallet.NewFile(cfg.WalletPath)
	}
	node := httpapi.NewNodeConfig(registry, wf)
	node.DriverFactories["memory"] = func(name string, _ map[string]interface{}) (drivers.Driver, error) {
		return drivers.NewMemoryDriver(name), nil
	}
	node.DriverFactories["localdisk"] = func(name string, params map[string]interface{}) (drivers.Driver, error) {
		root, _ := params["root"].(string)
		if root == "" {
			return nil, fmt.Errorf("localdisk driver requires a root parameter")
		}
		return drivers.NewLocalDiskDriver(name, root)
	}

	deps := &httpapi.Deps{
		AuthConfig: authCfg,
		Store:      dataStore,
		Registry:   registry,
		Registrar:  registrar.NewQueue(),
		Chain:      chain.NewClient(cfg.NamingNodeURL, cfg.UTXOServiceURL),
		Node:       node,
		Version:    "dev",
	}

	return &Gateway{cfg: cfg, Deps: deps}, nil
}

// Start begins serving the gateway's HTTP surface on cfg.Addr() in a
// background goroutine and blocks until ctx is canceled, at which
// point it shuts the listener down gracefully (spec §9's lifecycle
// note), mirroring the teacher's pkg/api.Serve goroutine-then-
// ctx.Done() shape.
func (g *Gateway) Start(ctx context.Context) error {
	httpapi.SetVersion(g.Deps.Version)
	handler := httpapi.NewRouter(g.Deps)

	g.srv = &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              g.cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gateway listening on %s", g.srv.Addr)
		if err := g.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return g.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP listener.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := g.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown failed: %w", err)
	}
	logger.Info("gateway stopped")
	return nil
}
