package cmd

import (
	"fmt"

	"github.com/javi11/altmount/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the resolved cache configuration",
		Long:  `Load the configuration file, apply accessor defaults, and print the settings the daemon would start with, without starting it.`,
		RunE:  runInspect,
	}
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("cache:\n")
	fmt.Printf("  size_blocks:             %d\n", cfg.GetCacheSizeBlocks())
	fmt.Printf("  expiry:                  %s\n", cfg.GetCacheExpiry())
	fmt.Printf("  read_cache_line_size:    %d\n", cfg.GetReadCacheLineSize())
	fmt.Printf("  volatile_read_cache_size: %d\n", cfg.Cache.VolatileReadCacheSize)
	fmt.Printf("  ghost_list_fraction:     %.2f\n", cfg.GetGhostListFraction())
	fmt.Printf("buffer_pool:\n")
	fmt.Printf("  block_size_bytes: %d\n", cfg.GetBlockSizeBytes())
	fmt.Printf("  capacity_blocks:  %d\n", cfg.GetBufferPoolCapacity())
	fmt.Printf("storage:\n")
	fmt.Printf("  dir:             %s\n", cfg.Storage.Dir)
	fmt.Printf("  page_size_bytes: %d\n", cfg.Storage.PageSizeBytes)
	fmt.Printf("job_queue:\n")
	fmt.Printf("  max_workers: %d\n", cfg.GetMaxWorkers())

	return nil
}
