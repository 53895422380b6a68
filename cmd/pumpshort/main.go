// Command pumpshort runs the pump-detection and short-signal service:
// poll the exchange, detect pumps, score them, and emit tiered signals.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/pumpshort/internal/obslog"
)

const version = "v0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:     "pumpshort",
	Short:   "Perpetual-futures pump detector and short-signal generator",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config yaml (defaults to built-in defaults)")
	rootCmd.AddCommand(runCmd, statusCmd, statsCmd, healthCmd, backtestReplayCmd)
}

func main() {
	obslog.Init("info", isTTY())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isTTY() bool {
	stat, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
