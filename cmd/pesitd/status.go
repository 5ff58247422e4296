package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pesit-e/pesitengine/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the effective configuration and partner registry",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("server id:       %s\n", cfg.ServerID)
	fmt.Printf("listen address:  %s\n", cfg.ListenAddr)
	fmt.Printf("storage:         %s (%s)\n", cfg.StorageBackend, storageDetail(cfg))
	fmt.Printf("entity size:     %d bytes\n", cfg.MaxEntitySize)
	fmt.Printf("sync interval:   %d KB\n", cfg.SyncIntervalKB)
	fmt.Printf("restart store:   %s\n", cfg.RestartStoreBackend)
	fmt.Println()

	v := viper.New()
	v.SetConfigFile(cfg.PartnersFile)
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("partners file %s not readable: %v\n", cfg.PartnersFile, err)
		return nil
	}
	var entries []config.PartnerEntry
	if err := v.UnmarshalKey("partners", &entries); err != nil {
		return fmt.Errorf("decoding partners file %s: %w", cfg.PartnersFile, err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Partner", "Enabled", "Max Sessions"})
	for _, e := range entries {
		table.Append([]string{e.ID, strconv.FormatBool(e.Enabled), strconv.Itoa(e.MaxSessions)})
	}
	table.Render()
	return nil
}

func storageDetail(cfg *config.Config) string {
	if cfg.StorageBackend == "s3" {
		return "bucket " + cfg.S3Bucket
	}
	return cfg.StorageRoot
}
