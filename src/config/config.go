package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/mosaicnetworks/murmur/src/common"
	"github.com/mosaicnetworks/murmur/src/node"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultPeersFile is the default name of the file listing bootstrap nodes.
	DefaultPeersFile = "peers.json"
)

// Default configuration values.
const (
	DefaultLogLevel            = "debug"
	DefaultBindAddr            = "127.0.0.1:8444"
	DefaultServiceAddr         = "127.0.0.1:8000"
	DefaultConnectionLimit     = 8
	DefaultMaxConnections      = 150
	DefaultTCPTimeout          = 5 * time.Second
	DefaultHandshakeTimeout    = 20 * time.Second
	DefaultIdleTimeout         = 10 * time.Minute
	DefaultRequestTimeout      = 2 * time.Minute
	DefaultMaintenanceInterval = 30 * time.Second
	DefaultKnownTTL            = 5 * time.Minute
	DefaultPowResumeDelay      = 30 * time.Second
	DefaultPowWorkers          = 0
	DefaultSyncIdle            = 2 * time.Second
	DefaultInventoryCleanup    = time.Hour
	DefaultStore               = false
	DefaultUserAgent           = "/murmur/"
)

// DefaultStreams is the list of streams a node serves unless told otherwise.
var DefaultStreams = []uint64{1}

// Config contains all the configuration properties of a Murmur node.
type Config struct {
	// DataDir is the top-level directory containing Murmur configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, mirrors the log output into a file in DataDir.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node listens for peers.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes, in the version message.
	AdvertiseAddr string `mapstructure:"advertise"`

	// Streams lists the streams this node serves.
	Streams []uint64 `mapstructure:"streams"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// ConnectionLimit is the number of outgoing connections the node tries to
	// keep open.
	ConnectionLimit int `mapstructure:"connection-limit"`

	// MaxConnections caps the total number of connections. Extra incoming
	// connections are closed as soon as they are accepted.
	MaxConnections int `mapstructure:"max-connections"`

	// TCPTimeout is the dial timeout.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// HandshakeTimeout bounds the time a connection may spend before the
	// version exchange completes.
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`

	// IdleTimeout closes active connections that have been silent for that
	// long.
	IdleTimeout time.Duration `mapstructure:"idle-timeout"`

	// RequestTimeout is the delay after which an unanswered getdata is asked
	// from another peer, and then forgotten.
	RequestTimeout time.Duration `mapstructure:"request-timeout"`

	// MaintenanceInterval is the average period of the maintenance loop.
	MaintenanceInterval time.Duration `mapstructure:"maintenance-interval"`

	// KnownTTL is how long a connection remembers that its peer knows a
	// vector.
	KnownTTL time.Duration `mapstructure:"known-ttl"`

	// PowResumeDelay is the wait before queued proof-of-work from a previous
	// run is resumed.
	PowResumeDelay time.Duration `mapstructure:"pow-resume-delay"`

	// PowWorkers is the number of goroutines searching for nonces. 0 means one
	// per CPU.
	PowWorkers int `mapstructure:"pow-workers"`

	// SyncIdle is how long a one-shot synchronization waits without traffic
	// before it considers itself done.
	SyncIdle time.Duration `mapstructure:"sync-idle"`

	// InventoryCleanup is the period of the inventory cleanup.
	InventoryCleanup time.Duration `mapstructure:"inventory-cleanup"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// UserAgent is advertised in the version message.
	UserAgent string `mapstructure:"user-agent"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:             DefaultDataDir(),
		LogLevel:            DefaultLogLevel,
		BindAddr:            DefaultBindAddr,
		ServiceAddr:         DefaultServiceAddr,
		Streams:             append([]uint64{}, DefaultStreams...),
		ConnectionLimit:     DefaultConnectionLimit,
		MaxConnections:      DefaultMaxConnections,
		TCPTimeout:          DefaultTCPTimeout,
		HandshakeTimeout:    DefaultHandshakeTimeout,
		IdleTimeout:         DefaultIdleTimeout,
		RequestTimeout:      DefaultRequestTimeout,
		MaintenanceInterval: DefaultMaintenanceInterval,
		KnownTTL:            DefaultKnownTTL,
		PowResumeDelay:      DefaultPowResumeDelay,
		PowWorkers:          DefaultPowWorkers,
		SyncIdle:            DefaultSyncIdle,
		InventoryCleanup:    DefaultInventoryCleanup,
		Store:               DefaultStore,
		DatabaseDir:         DefaultDatabaseDir(),
		UserAgent:           DefaultUserAgent,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	config.logger.Level = level
	config.MaintenanceInterval = 100 * time.Millisecond
	config.SyncIdle = 200 * time.Millisecond
	config.TCPTimeout = time.Second
	config.PowResumeDelay = 0
	return config
}

// SetDataDir sets the top-level Murmur directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// PeersFile returns the full path of the bootstrap peers file.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, DefaultPeersFile)
}

// LogFilePath returns the full path of the log file, or an empty string if
// file logging is disabled.
func (c *Config) LogFilePath() string {
	if c.LogFile == "" {
		return ""
	}
	if filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, c.LogFile)
}

// NodeConfig converts c into the settings of the networking node.
func (c *Config) NodeConfig() *node.Config {
	conf := node.NewConfig(
		c.Streams,
		c.ConnectionLimit,
		c.MaxConnections,
		c.TCPTimeout,
		c.UserAgent,
		c.Logger().Logger,
	)
	conf.HandshakeTimeout = c.HandshakeTimeout
	conf.IdleTimeout = c.IdleTimeout
	conf.RequestTimeout = c.RequestTimeout
	conf.MaintenanceInterval = c.MaintenanceInterval
	conf.CleanupInterval = c.InventoryCleanup
	conf.KnownTTL = c.KnownTTL
	conf.SyncIdle = c.SyncIdle
	return conf
}

// Logger returns a formatted logrus Entry, with prefix set to "murmur".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "murmur")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level Murmur config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Murmur")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Murmur")
		} else {
			return filepath.Join(home, ".murmur")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
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

// LogLevel parses a string into a Logrus log level.
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
