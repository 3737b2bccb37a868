package node

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default configuration values.
const (
	DefaultLogLevel        = "debug"
	DefaultBindAddr        = "127.0.0.1:1337"
	DefaultServiceAddr     = "127.0.0.1:8000"
	DefaultNetDelay        = 3 * time.Second
	DefaultProposalTimeout = 20 * time.Second
	DefaultCatchupWindow   = 8 * time.Second
	DefaultInitialBalance  = 100
)

// Config binds every tunable constant of the node to a single struct loaded
// from flags/config file, so a deployment can override the protocol's
// default timings — e.g. shrinking NetDelay for a fast local test run.
type Config struct {
	// NodeID is this node's id within the peer set.
	NodeID int `mapstructure:"id"`

	// DataDir is the directory containing this node's persisted ledger.
	DataDir string `mapstructure:"datadir"`

	// PeersFile is the path to the static JSON peer configuration.
	PeersFile string `mapstructure:"peers"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindAddr is the local address:port this node listens on for Paxos and
	// catch-up traffic.
	BindAddr string `mapstructure:"listen"`

	// NoService disables the HTTP introspection endpoint.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP introspection
	// service.
	ServiceAddr string `mapstructure:"service-listen"`

	// NetDelay is the artificial one-way transport latency.
	NetDelay time.Duration `mapstructure:"net-delay"`

	// ProposalTimeout is how long a proposer waits for consensus before
	// retrying with a higher ballot.
	ProposalTimeout time.Duration `mapstructure:"proposal-timeout"`

	// CatchupWindow is how long a recovering node waits to collect
	// LEDGER_RESPONSE replies before picking a winner.
	CatchupWindow time.Duration `mapstructure:"catchup-window"`

	logger *logrus.Entry
}

// NewDefaultConfig returns a Config with every default value set.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:         DefaultDataDir(),
		PeersFile:       filepath.Join(DefaultDataDir(), "peers.json"),
		LogLevel:        DefaultLogLevel,
		BindAddr:        DefaultBindAddr,
		ServiceAddr:     DefaultServiceAddr,
		NetDelay:        DefaultNetDelay,
		ProposalTimeout: DefaultProposalTimeout,
		CatchupWindow:   DefaultCatchupWindow,
	}
}

// Logger returns a formatted logrus Entry tagged with this node's id. When
// DataDir is set, Info-and-above records are additionally routed to a
// per-node log file so five nodes can run in one terminal without their
// debug chatter interleaving.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		l := logrus.New()
		l.Level = LogLevel(c.LogLevel)
		l.Formatter = new(prefixed.TextFormatter)

		if c.DataDir != "" {
			logPath := filepath.Join(c.DataDir, fmt.Sprintf("node_%d.log", c.NodeID))
			l.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.InfoLevel:  logPath,
					logrus.WarnLevel:  logPath,
					logrus.ErrorLevel: logPath,
					logrus.FatalLevel: logPath,
					logrus.PanicLevel: logPath,
				},
				new(prefixed.TextFormatter),
			))
		}

		c.logger = l.WithField("node_id", c.NodeID)
	}
	return c.logger
}

// LogLevel parses a string into a logrus level, defaulting to Debug.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

// DefaultDataDir returns the default data directory for the current OS.
func DefaultDataDir() string {
	home := HomeDir()
	if home == "" {
		return ""
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, ".LedgerNode")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "LedgerNode")
	default:
		return filepath.Join(home, ".ledgernode")
	}
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
