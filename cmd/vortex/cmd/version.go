package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information.",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("vortex (unknown build)")
			return
		}

		fmt.Printf("vortex %s\n", info.Main.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
