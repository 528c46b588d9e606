package cmd

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/vortexsim/vortex/simulation"
)

// Exit codes of the run command.
const (
	exitOK        = 0
	exitConfig    = 1
	exitSimFailed = 2
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation described by a topology file.",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		ranks, _ := cmd.Flags().GetInt("ranks")
		period, _ := cmd.Flags().GetUint64("period")
		checkpointInterval, _ := cmd.Flags().GetUint64("checkpoint-interval")
		monitorPort, _ := cmd.Flags().GetInt("monitor-port")
		recorderPath, _ := cmd.Flags().GetString("record")
		verbose, _ := cmd.Flags().GetBool("verbose")

		cfg, err := simulation.LoadConfig(configPath)
		if err != nil {
			logrus.WithError(err).Error("invalid topology")
			atexit.Exit(exitConfig)
		}

		// Command-line overrides win over the topology file.
		if ranks > 0 {
			cfg.Ranks = ranks
		}
		if period > 0 {
			cfg.Period = period
		}
		if checkpointInterval > 0 {
			cfg.Checkpoint.Interval = checkpointInterval
		}

		builder := simulation.MakeBuilder().WithConfig(cfg)

		if verbose {
			builder = builder.WithActivityLogging()
		}

		if monitorPort == 0 {
			monitorPort = monitorPortFromEnv()
		}
		if monitorPort > 0 {
			builder = builder.WithMonitor(monitorPort)
		}

		if recorderPath != "" {
			builder = builder.WithRecorderPath(recorderPath)
		}

		job, err := builder.Build()
		if err != nil {
			logrus.WithError(err).Error("cannot build simulation")
			atexit.Exit(exitConfig)
		}

		if err := job.Run(); err != nil {
			logrus.WithError(err).Error("simulation failed")
			atexit.Exit(exitSimFailed)
		}

		for _, rank := range job.Ranks() {
			logrus.WithFields(logrus.Fields{
				"rank":  rank.Rank(),
				"cycle": rank.CurrentCycle(),
			}).Info("rank reached quiescence")
		}

		atexit.Exit(exitOK)
	},
}

func monitorPortFromEnv() int {
	v := os.Getenv("VORTEX_MONITOR_PORT")
	if v == "" {
		return 0
	}

	port, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithError(err).Warn("ignoring VORTEX_MONITOR_PORT")
		return 0
	}

	return port
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("config", "topology.yaml",
		"Topology file to simulate")
	runCmd.Flags().Int("ranks", 0,
		"Override the rank count of the topology")
	runCmd.Flags().Uint64("period", 0,
		"Override the sync period, in cycles")
	runCmd.Flags().Uint64("checkpoint-interval", 0,
		"Write a checkpoint every N cycles")
	runCmd.Flags().Int("monitor-port", 0,
		"Serve the monitoring API on this port")
	runCmd.Flags().String("record", "",
		"Record run statistics into this SQLite file")
	runCmd.Flags().BoolP("verbose", "v", false,
		"Log every executed activity")
}
