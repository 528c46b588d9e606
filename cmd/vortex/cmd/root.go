// Package cmd implements the host binary driving the kernel. The kernel
// itself exposes no CLI; everything here is host-side plumbing.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var rootCmd = &cobra.Command{
	Use:   "vortex",
	Short: "Run parallel discrete-event simulations.",
	Long: "vortex hosts a parallel discrete-event simulation kernel: " +
		"it loads a topology, partitions it across ranks, and runs the " +
		"event loops under the cross-rank sync barrier.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A .env file can preset VORTEX_MONITOR_PORT; absence is fine.
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			logrus.WithError(err).Warn("cannot load .env file")
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
