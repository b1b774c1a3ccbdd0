package node

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/murmur/src/common"
)

// Config holds the tunables of a Node.
type Config struct {
	Streams []uint64 `mapstructure:"streams"`

	// ConnectionLimit is the number of active connections the maintenance
	// loop tries to keep.
	ConnectionLimit int `mapstructure:"connection-limit"`
	// MaxConnections caps accepted plus dialed sockets.
	MaxConnections int `mapstructure:"max-connections"`

	DialTimeout         time.Duration `mapstructure:"timeout"`
	HandshakeTimeout    time.Duration `mapstructure:"handshake-timeout"`
	IdleTimeout         time.Duration `mapstructure:"idle-timeout"`
	RequestTimeout      time.Duration `mapstructure:"request-timeout"`
	MaintenanceInterval time.Duration `mapstructure:"maintenance-interval"`
	CleanupInterval     time.Duration `mapstructure:"inventory-cleanup"`
	KnownTTL            time.Duration `mapstructure:"known-ttl"`
	SyncIdle            time.Duration `mapstructure:"sync-idle"`

	// KnownCacheSize is the initial capacity of the per-connection cache of
	// known vectors. The cache grows rather than forget vectors before
	// KnownTTL.
	KnownCacheSize int `mapstructure:"known-cache-size"`

	UserAgent string `mapstructure:"user-agent"`

	Logger *logrus.Logger
}

// NewConfig ...
func NewConfig(streams []uint64,
	connectionLimit int,
	maxConnections int,
	dialTimeout time.Duration,
	userAgent string,
	logger *logrus.Logger) *Config {

	conf := DefaultConfig()
	conf.Streams = streams
	conf.ConnectionLimit = connectionLimit
	conf.MaxConnections = maxConnections
	conf.DialTimeout = dialTimeout
	conf.UserAgent = userAgent
	conf.Logger = logger
	return conf
}

// DefaultConfig ...
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		Streams:             []uint64{1},
		ConnectionLimit:     8,
		MaxConnections:      150,
		DialTimeout:         5 * time.Second,
		HandshakeTimeout:    20 * time.Second,
		IdleTimeout:         10 * time.Minute,
		RequestTimeout:      2 * time.Minute,
		MaintenanceInterval: 30 * time.Second,
		CleanupInterval:     time.Hour,
		KnownTTL:            5 * time.Minute,
		SyncIdle:            2 * time.Second,
		KnownCacheSize:      100000,
		UserAgent:           "/murmur/",
		Logger:              logger,
	}
}

// TestConfig returns a configuration with short timeouts that logs to t.
func TestConfig(t testing.TB) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestLogger(t)
	config.MaintenanceInterval = 100 * time.Millisecond
	config.SyncIdle = 200 * time.Millisecond
	config.DialTimeout = time.Second
	return config
}
