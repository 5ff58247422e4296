// pesitd is a PeSIT-E file transfer daemon and client. The serve
// subcommand runs the server role; send and fetch drive the demander
// role against a remote server; enroll and status manage the local
// partner registry.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pesit-e/pesitengine/internal/config"
)

var (
	cfgFile string
	rootV   = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "pesitd",
	Short: "PeSIT-E file transfer daemon and client",
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := rootV.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return config.Load(cfgFile, rootV)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, env + flags only)")
	rootCmd.PersistentFlags().String("log_level", "info", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log_encoding", "console", "log encoding (console|json)")
	rootCmd.PersistentFlags().String("partners_file", "partners.yaml", "partner registry file")

	rootCmd.AddCommand(serveCmd, sendCmd, fetchCmd, enrollCmd, statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
