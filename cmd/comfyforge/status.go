package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend system statistics",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := connect()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()

		stats, err := c.GetSystemStats(cmd.Context())
		if err != nil {
			fmt.Printf("Error fetching system stats: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("OS:     %s\n", stats.System.OS)
		fmt.Printf("Python: %s", stats.System.PythonVersion)
		if stats.System.EmbeddedPython {
			fmt.Print(" (embedded)")
		}
		fmt.Println()
		for _, gpu := range stats.Devices {
			fmt.Printf("%s (%s)\n", gpu.Name, gpu.Type)
			fmt.Printf("  VRAM:  %s free of %s\n", formatBytes(gpu.VRAMFree), formatBytes(gpu.VRAMTotal))
			fmt.Printf("  Torch: %s free of %s\n", formatBytes(gpu.TorchVRAMFree), formatBytes(gpu.TorchVRAMTotal))
		}

		if info, err := c.GetQueueInfo(cmd.Context()); err == nil {
			fmt.Printf("Queue:  %d pending\n", info.ExecInfo.QueueRemaining)
		}
		if embeddings, err := c.GetEmbeddings(cmd.Context()); err == nil {
			fmt.Printf("Embeddings installed: %d\n", len(embeddings))
		}
	},
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	}
	return fmt.Sprintf("%d B", n)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
