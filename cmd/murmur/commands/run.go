package commands

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mosaicnetworks/murmur/src/murmur"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a Murmur node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runMurmur,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMurmur(cmd *cobra.Command, args []string) error {
	engine := murmur.NewMurmur(&_config.Murmur)

	if err := engine.Init(); err != nil {
		_config.Murmur.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		engine.Shutdown()
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

// AddDataFlags adds the flags shared by every command that opens the data
// directory.
func AddDataFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.Murmur.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Murmur.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Murmur.LogFile, "Also write info and debug logs to this file, relative to datadir")

	// Store
	cmd.Flags().Bool("store", _config.Murmur.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Murmur.DatabaseDir, "Dabatabase directory")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Murmur.BindAddr, "Listen IP:Port for murmur node")
	cmd.Flags().StringP("advertise", "a", _config.Murmur.AdvertiseAddr, "Advertise IP:Port for murmur node")
	cmd.Flags().StringSlice("streams", streamStrings(_config.Murmur.Streams), "Streams served by this node")
	cmd.Flags().DurationP("timeout", "t", _config.Murmur.TCPTimeout, "TCP dial timeout")
	cmd.Flags().Duration("handshake-timeout", _config.Murmur.HandshakeTimeout, "Time allowed to complete the version exchange")
	cmd.Flags().String("user-agent", _config.Murmur.UserAgent, "User agent advertised to peers")
	cmd.Flags().Duration("sync-idle", _config.Murmur.SyncIdle, "Silence after which a one-shot sync is complete")
}

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	AddDataFlags(cmd)

	// Connections
	cmd.Flags().Int("connection-limit", _config.Murmur.ConnectionLimit, "Number of outgoing connections to keep")
	cmd.Flags().Int("max-connections", _config.Murmur.MaxConnections, "Maximum number of connections")
	cmd.Flags().Duration("idle-timeout", _config.Murmur.IdleTimeout, "Close connections silent for that long")
	cmd.Flags().Duration("request-timeout", _config.Murmur.RequestTimeout, "Ask another peer for objects not received within that time")
	cmd.Flags().Duration("maintenance-interval", _config.Murmur.MaintenanceInterval, "Time between maintenance rounds")
	cmd.Flags().Duration("known-ttl", _config.Murmur.KnownTTL, "How long a peer is assumed to know an object")
	cmd.Flags().Duration("inventory-cleanup", _config.Murmur.InventoryCleanup, "Time between inventory cleanups")

	// Proof of work
	cmd.Flags().Duration("pow-resume-delay", _config.Murmur.PowResumeDelay, "Delay before resuming unfinished proof of work")
	cmd.Flags().Int("pow-workers", _config.Murmur.PowWorkers, "Proof of work goroutines, 0 for one per CPU")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Murmur.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Murmur.NoService, "Disable HTTP service")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Murmur.SetDataDir(_config.Murmur.DataDir)

	addFileHook(_config.Murmur.Logger().Logger, _config.Murmur.LogFilePath())

	logFields := logrus.Fields{
		"murmur.DataDir":             _config.Murmur.DataDir,
		"murmur.BindAddr":            _config.Murmur.BindAddr,
		"murmur.AdvertiseAddr":       _config.Murmur.AdvertiseAddr,
		"murmur.Streams":             _config.Murmur.Streams,
		"murmur.ServiceAddr":         _config.Murmur.ServiceAddr,
		"murmur.NoService":           _config.Murmur.NoService,
		"murmur.Store":               _config.Murmur.Store,
		"murmur.LogLevel":            _config.Murmur.LogLevel,
		"murmur.ConnectionLimit":     _config.Murmur.ConnectionLimit,
		"murmur.MaxConnections":      _config.Murmur.MaxConnections,
		"murmur.TCPTimeout":          _config.Murmur.TCPTimeout,
		"murmur.HandshakeTimeout":    _config.Murmur.HandshakeTimeout,
		"murmur.IdleTimeout":         _config.Murmur.IdleTimeout,
		"murmur.RequestTimeout":      _config.Murmur.RequestTimeout,
		"murmur.MaintenanceInterval": _config.Murmur.MaintenanceInterval,
		"murmur.KnownTTL":            _config.Murmur.KnownTTL,
		"murmur.PowResumeDelay":      _config.Murmur.PowResumeDelay,
		"murmur.PowWorkers":          _config.Murmur.PowWorkers,
		"murmur.SyncIdle":            _config.Murmur.SyncIdle,
		"murmur.InventoryCleanup":    _config.Murmur.InventoryCleanup,
	}

	if _config.Murmur.Store {
		logFields["murmur.DatabaseDir"] = _config.Murmur.DatabaseDir
	}

	_config.Murmur.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/murmur.toml (.json, .yaml also work)
	viper.SetConfigName("murmur")               // name of config file (without extension)
	viper.AddConfigPath(_config.Murmur.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Murmur.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Murmur.Logger().Debugf("No config file found in: %s", _config.Murmur.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

func streamStrings(streams []uint64) []string {
	res := make([]string, len(streams))
	for i, s := range streams {
		res[i] = strconv.FormatUint(s, 10)
	}
	return res
}

// addFileHook mirrors info and debug output into path.
func addFileHook(logger *logrus.Logger, path string) {
	if path == "" {
		return
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.WithError(err).Info("Failed to open log file, using default stderr")
		return
	}
	f.Close()

	logger.Hooks.Add(lfshook.NewHook(
		lfshook.PathMap{
			logrus.InfoLevel:  path,
			logrus.DebugLevel: path,
		},
		&logrus.TextFormatter{},
	))
}
