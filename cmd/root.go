package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ntl-cli/internal/config"
	"github.com/sells-group/ntl-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ntl-cli",
	Short: "Urban expansion metrics from nighttime lights",
	Long:  "Turns yearly nighttime-light rasters into lit-area masks and measures extent, shape, rings, sectors, centroid shift and threshold sensitivity.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initStore opens and migrates the configured run store.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
