package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mezonai/starnotary/logx"
)

var (
	configDir string
	dataDir   string
	stdoutLog bool
)

var rootCmd = &cobra.Command{
	Use:   "starnotary",
	Short: "Star notary ledger node CLI",
	Long:  "Command line interface for running and auditing a single-writer star notary ledger.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if stdoutLog {
			logx.SetOutput(os.Stdout)
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", "./config", "directory holding genesis.yml and config.ini")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "./node-data", "directory for ledger data")
	rootCmd.PersistentFlags().BoolVar(&stdoutLog, "stdout-log", false, "log to stdout instead of the rotating log file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed: ", err)
		os.Exit(1)
	}
}
