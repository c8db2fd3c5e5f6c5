// This file maps the CLI context and an optional TOML file onto the launcher config.

package launcher

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"gopkg.in/urfave/cli.v1"

	"github.com/consensus-shipyard/ipc-sub004/gateway"
	"github.com/consensus-shipyard/ipc-sub004/integration"
	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/ipc"
	"github.com/consensus-shipyard/ipc-sub004/ipc/genesis"
)

var errNoGenesis = errors.New("no genesis: pass --genesis or --fakenet")

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	Node    NodeConfig
	HTTP    HTTPConfig
	DB      integration.DBPreset
	Rules   ipc.Rules
	Genesis GenesisConfig
}

type NodeConfig struct {
	DataDir string
	Logging LoggingConfig
}

type LoggingConfig struct {
	Verbosity  int
	Format     string
	Color      bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	SentryDSN  string
}

type HTTPConfig struct {
	Enabled         bool
	Addr            string
	Port            int
	ShutdownTimeout time.Duration
}

// GenesisConfig names the genesis file. FakeSubnets, when set, replaces the
// file with a synthetic genesis on the network of the rules.
type GenesisConfig struct {
	Path        string
	FakeSubnets int
	FakeSupply  int64
}

// -----------------------------------------------------------------------------
// Default config + builders
// -----------------------------------------------------------------------------

func defaultConfig() Config {
	d := DefaultConfig()
	rules, err := ipc.RulesByName(d.Rules)
	if err != nil {
		panic(err)
	}
	db, err := integration.GetPresetByName(d.Storage.DBPreset)
	if err != nil {
		panic(err)
	}
	return Config{
		Node: NodeConfig{
			DataDir: resolvePath(d.Node.DataDir),
			Logging: LoggingConfig{
				Verbosity:  d.Logging.Verbosity,
				Format:     d.Logging.Format,
				Color:      d.Logging.Color,
				MaxSizeMB:  d.Logging.MaxSizeMB,
				MaxBackups: d.Logging.MaxBackups,
			},
		},
		HTTP: HTTPConfig{
			Enabled:         d.HTTP.Enabled,
			Addr:            d.HTTP.Addr,
			Port:            d.HTTP.Port,
			ShutdownTimeout: d.HTTP.ShutdownTimeout,
		},
		DB:    db,
		Rules: rules,
		Genesis: GenesisConfig{
			FakeSubnets: d.Node.FakeSubnets,
			FakeSupply:  d.Node.FakeSupply,
		},
	}
}

// MakeAllConfigs merges defaults, config-file values, and CLI overrides into
// a single config struct, then validates it.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()

	if file := ctx.String("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", file, err)
		}
	}

	if err := applyCLIOverrides(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if err := ensureDir(cfg.Node.DataDir); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	switch c.Node.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Node.Logging.Format)
	}
	if c.Genesis.Path == "" && c.Genesis.FakeSubnets <= 0 {
		return errNoGenesis
	}
	return nil
}

// GatewayConfig loads the genesis and pairs it with the rules.
func (c Config) GatewayConfig() (gateway.Config, error) {
	var (
		gen genesis.Genesis
		err error
	)
	if c.Genesis.Path != "" {
		gen, err = genesis.Load(c.Genesis.Path)
		if err != nil {
			return gateway.Config{}, err
		}
	} else {
		network := inter.RootSubnet(c.Rules.NetworkID)
		gen = genesis.FakeGenesis(network, c.Genesis.FakeSubnets, big.NewInt(c.Genesis.FakeSupply))
	}
	return gateway.Config{Rules: c.Rules, Genesis: gen}, nil
}

// IntegrationConfig describes the node to assemble.
func (c Config) IntegrationConfig() (integration.Config, error) {
	gw, err := c.GatewayConfig()
	if err != nil {
		return integration.Config{}, err
	}
	return integration.Config{
		DataDir: c.Node.DataDir,
		DB:      c.DB,
		Gateway: gw,
	}, nil
}

// -----------------------------------------------------------------------------
// Config-file / CLI wiring
// -----------------------------------------------------------------------------

func loadConfigFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	cfg.Node.DataDir = resolvePath(cfg.Node.DataDir)
	if cfg.Genesis.Path != "" {
		cfg.Genesis.Path = resolvePath(cfg.Genesis.Path)
	}
	return nil
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) error {
	if ctx.IsSet("datadir") {
		cfg.Node.DataDir = resolvePath(ctx.String("datadir"))
	}

	if ctx.IsSet("log.format") {
		cfg.Node.Logging.Format = ctx.String("log.format")
	}
	if ctx.IsSet("log.verbosity") {
		cfg.Node.Logging.Verbosity = ctx.Int("log.verbosity")
	}
	if ctx.IsSet("log.color") {
		cfg.Node.Logging.Color = ctx.Bool("log.color")
	}
	if ctx.IsSet("log.file") {
		cfg.Node.Logging.File = ctx.String("log.file")
	}
	if ctx.IsSet("log.maxsize") {
		cfg.Node.Logging.MaxSizeMB = ctx.Int("log.maxsize")
	}
	if ctx.IsSet("log.maxbackups") {
		cfg.Node.Logging.MaxBackups = ctx.Int("log.maxbackups")
	}
	if ctx.IsSet("sentry.dsn") {
		cfg.Node.Logging.SentryDSN = ctx.String("sentry.dsn")
	}

	if ctx.Bool("http") {
		cfg.HTTP.Enabled = true
	}
	if ctx.IsSet("http.addr") {
		cfg.HTTP.Addr = ctx.String("http.addr")
	}
	if ctx.IsSet("http.port") {
		cfg.HTTP.Port = ctx.Int("http.port")
	}
	if ctx.IsSet("http.shutdown") {
		cfg.HTTP.ShutdownTimeout = ctx.Duration("http.shutdown")
	}

	if ctx.IsSet("db.preset") {
		preset, err := integration.GetPresetByName(ctx.String("db.preset"))
		if err != nil {
			return err
		}
		cfg.DB = preset
	}
	if ctx.IsSet("cache") {
		cfg.DB.CacheMB = ctx.Int("cache")
	}
	if ctx.IsSet("db.handles") {
		cfg.DB.Handles = ctx.Int("db.handles")
	}

	if ctx.IsSet("genesis") {
		cfg.Genesis.Path = resolvePath(ctx.String("genesis"))
		cfg.Genesis.FakeSubnets = 0
	}
	if ctx.IsSet("fakenet") {
		cfg.Genesis.Path = ""
		cfg.Genesis.FakeSubnets = ctx.Int("fakenet")
	}

	if ctx.IsSet("rules") {
		rules, err := ipc.RulesByName(ctx.String("rules"))
		if err != nil {
			return err
		}
		cfg.Rules = rules
	}
	if ctx.IsSet("quorum.majority") {
		majority := ctx.Int("quorum.majority")
		if majority < 0 || majority > 100 {
			return fmt.Errorf("%w: majority percentage %d out of range", ipc.ErrInvalidRules, majority)
		}
		cfg.Rules.Quorum.MajorityPercentage = uint8(majority)
	}
	if ctx.IsSet("batch.maxmsgs") {
		cfg.Rules.Batches.MaxMsgsPerBatch = ctx.Uint64("batch.maxmsgs")
	}
	if ctx.IsSet("batch.period") {
		cfg.Rules.Batches.Period = idx.Block(ctx.Uint64("batch.period"))
	}
	if ctx.IsSet("prune.certified") {
		cfg.Rules.Retention.PruneCertified = ctx.Bool("prune.certified")
	}
	if ctx.IsSet("prune.uncertified") {
		cfg.Rules.Retention.PruneUncertified = ctx.Bool("prune.uncertified")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
