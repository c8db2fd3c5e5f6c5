package launcher

import (
	"time"

	"github.com/consensus-shipyard/ipc-sub004/integration"
	"github.com/consensus-shipyard/ipc-sub004/ipc"
)

// Defaults bundles the baseline configuration values the launcher uses
// before the config file and flags override them.

type Defaults struct {
	Node    NodeDefaults
	HTTP    HTTPDefaults
	Storage StorageDefaults
	Logging LoggingDefaults
	Rules   string
}

// NodeDefaults captures top-level node settings.

type NodeDefaults struct {
	DataDir     string //	Filesystem root for the gateway database and log files.
	FakeSupply  int64  //	Circulating supply given to every synthetic subnet of a --fakenet genesis.
	FakeSubnets int    //	Synthetic child subnets when no genesis file is given; zero means a genesis file is required.
}

// HTTPDefaults configures the API server.
type HTTPDefaults struct {
	Enabled         bool          //	Serve the HTTP API; without it the node only keeps its state open.
	Addr            string        //	Interface the API binds to; 127.0.0.1 keeps it local.
	Port            int           //	TCP port of the API.
	ShutdownTimeout time.Duration //	How long in-flight requests may run after a shutdown signal.
}

// StorageDefaults configures the database.
type StorageDefaults struct {
	DBPreset string //	Preset name resolved by integration.GetPresetByName.
}

// LoggingDefaults controls log verbosity/format.
type LoggingDefaults struct {
	Verbosity  int    //	Log level numeric (0=fatal, 1=error, 2=warn, 3=info, 4=debug, 5=trace).
	Format     string //	Log output format (text vs json).
	Color      bool   //	Whether to use ANSI color codes in logs.
	MaxSizeMB  int    //	Size at which the log file is rotated.
	MaxBackups int    //	Rotated files kept next to the log file.
}

// DefaultConfig returns a fully populated Defaults instance.

func DefaultConfig() Defaults {
	return Defaults{
		Node: NodeDefaults{
			DataDir:    "~/.ipcgw",
			FakeSupply: 1_000_000,
		},
		HTTP: HTTPDefaults{
			Enabled:         true,
			Addr:            "127.0.0.1",
			Port:            18645,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageDefaults{
			DBPreset: integration.DefaultPreset().Name,
		},
		Logging: LoggingDefaults{
			Verbosity:  3,
			Format:     "text",
			Color:      true,
			MaxSizeMB:  100,
			MaxBackups: 10,
		},
		Rules: ipc.MainNetRules().Name,
	}
}
