package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/mosaicnetworks/murmur/src/murmur"
	"github.com/spf13/cobra"
)

var syncTimeout time.Duration

//NewSyncCmd returns the command that synchronizes the local inventory with a
//single peer and exits
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync [address]",
		Short:   "Exchange objects with one node and exit",
		Args:    cobra.ExactArgs(1),
		PreRunE: loadConfig,
		RunE:    syncMurmur,
	}
	AddDataFlags(cmd)
	cmd.Flags().DurationVar(&syncTimeout, "sync-timeout", 5*time.Minute, "Give up after this long")
	return cmd
}

func syncMurmur(cmd *cobra.Command, args []string) error {
	// the sync command only needs the node
	_config.Murmur.NoService = true
	_config.Murmur.ConnectionLimit = 0

	engine := murmur.NewMurmur(&_config.Murmur)

	if err := engine.Init(); err != nil {
		_config.Murmur.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.RunAsync()
	defer engine.Shutdown()

	start := time.Now()
	if err := engine.Sync(context.Background(), args[0], syncTimeout); err != nil {
		return fmt.Errorf("synchronizing with %s: %w", args[0], err)
	}

	fmt.Printf("Synchronized with %s in %s, %d objects in inventory\n",
		args[0],
		time.Since(start).Round(time.Millisecond),
		len(engine.Store.GetInventory(_config.Murmur.Streams...)))

	return nil
}
