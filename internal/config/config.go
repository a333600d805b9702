// Package config loads the gateway's small INI-backed configuration
// (spec §6 "Persisted state layout": config file with INI sections),
// with environment-variable overrides for the handful of values spec
// §6 calls out explicitly. Parsing a general config system is out of
// scope (spec §1); this package owns only the struct and loader the
// gateway needs to start.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Config is everything internal/gateway needs to construct a running
// Gateway: the bind address, auth material, datastore driver layout,
// and fabric upstream endpoints.
type Config struct {
	// [gateway]
	BindHost string
	BindPort string
	Debug    bool

	// [auth]
	MasterPassword string
	WalletPath     string
	SessionSecret  string
	LocalOrigins   []string
	AppSuffixes    []string

	// [datastore]
	DefaultDrivers []string
	MinWriteSuccess int

	// [drivers]
	LocalDiskRoot string

	// naming-node / UTXO service endpoints, read from the [datastore]
	// section; required to construct internal/chain.Client.
	NamingNodeURL  string
	UTXOServiceURL string

	ConfigDir string
}

const (
	defaultBindHost = "127.0.0.1"
	defaultBindPort = "6270"
)

// Default returns a Config with the gateway's documented defaults,
// suitable for local development without a config file.
func Default() *Config {
	return &Config{
		BindHost:        defaultBindHost,
		BindPort:        defaultBindPort,
		DefaultDrivers:  []string{"disk"},
		MinWriteSuccess: 1,
		LocalOrigins:    []string{"http://localhost:" + defaultBindPort},
	}
}

// Load reads an INI config file at path, overlaying it on Default()'s
// values, then applies environment overrides (spec §6: "the wallet
// password, API password, API bind host/port, and API session may be
// provided via environment variables whose values override the config
// file"). path may be empty, in which case only defaults and env
// overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		applySections(cfg, f)
		cfg.ConfigDir = filepath.Dir(path)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applySections(cfg *Config, f *ini.File) {
	gw := f.Section("gateway")
	if v := gw.Key("bind_host").String(); v != "" {
		cfg.BindHost = v
	}
	if v := gw.Key("bind_port").String(); v != "" {
		cfg.BindPort = v
	}
	cfg.Debug = gw.Key("debug").MustBool(cfg.Debug)

	auth := f.Section("auth")
	if v := auth.Key("master_password").String(); v != "" {
		cfg.MasterPassword = v
	}
	if v := auth.Key("wallet_path").String(); v != "" {
		cfg.WalletPath = v
	}
	if v := auth.Key("session_secret").String(); v != "" {
		cfg.SessionSecret = v
	}
	if vs := auth.Key("local_origins").Strings(","); len(vs) > 0 {
		cfg.LocalOrigins = vs
	}
	if vs := auth.Key("app_suffixes").Strings(","); len(vs) > 0 {
		cfg.AppSuffixes = vs
	}

	ds := f.Section("datastore")
	if vs := ds.Key("default_drivers").Strings(","); len(vs) > 0 {
		cfg.DefaultDrivers = vs
	}
	cfg.MinWriteSuccess = ds.Key("min_write_success").MustInt(cfg.MinWriteSuccess)
	if v := ds.Key("naming_node_url").String(); v != "" {
		cfg.NamingNodeURL = v
	}
	if v := ds.Key("utxo_service_url").String(); v != "" {
		cfg.UTXOServiceURL = v
	}

	drv := f.Section("drivers")
	if v := drv.Key("localdisk_root").String(); v != "" {
		cfg.LocalDiskRoot = v
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GAIA_WALLET_PASSWORD"); v != "" {
		cfg.MasterPassword = v
	}
	if v := os.Getenv("GAIA_API_PASSWORD"); v != "" {
		cfg.MasterPassword = v
	}
	if v := os.Getenv("GAIA_API_BIND_HOST"); v != "" {
		cfg.BindHost = v
	}
	if v := os.Getenv("GAIA_API_BIND_PORT"); v != "" {
		cfg.BindPort = v
	}
	if v := os.Getenv("GAIA_API_SESSION"); v != "" {
		cfg.SessionSecret = v
	}
}

// Addr returns the host:port the gateway's HTTP listener should bind.
func (c *Config) Addr() string {
	return c.BindHost + ":" + c.BindPort
}
