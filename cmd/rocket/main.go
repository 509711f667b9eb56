package main

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// settings resolves flags against ROCKET_* environment variables
var settings = viper.New()

var rootCmd = &cobra.Command{
	Use:   "rocket",
	Short: "Fault injection harness for XRPL validator networks",
	Long: `rocket sits between the validators of a test network and decides, packet by
packet, whether to forward, delay, mutate or drop their traffic. After every
iteration it checks whether the consensus properties held.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := settings.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if settings.GetBool("debug") {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	},
}

func init() {
	settings.SetEnvPrefix("ROCKET")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.AddCommand(runCmd, checkCmd, aggregateCmd, statusCmd)
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
