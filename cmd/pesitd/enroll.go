package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pesit-e/pesitengine/internal/config"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Interactively add a partner to the registry",
	RunE:  runEnroll,
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	idPrompt := promptui.Prompt{
		Label: "Partner id",
		Validate: func(s string) error {
			if s == "" || len(s) > 24 {
				return errors.New("partner id must be 1-24 characters")
			}
			return nil
		},
	}
	id, err := idPrompt.Run()
	if err != nil {
		return err
	}

	pwPrompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(s string) error {
			if s == "" || len(s) > 16 {
				return errors.New("password must be 1-16 characters")
			}
			return nil
		},
	}
	password, err := pwPrompt.Run()
	if err != nil {
		return err
	}

	maxPrompt := promptui.SelectWithAdd{
		Label:    "Max concurrent sessions",
		Items:    []string{"1", "4", "16"},
		AddLabel: "Other",
	}
	_, maxStr, err := maxPrompt.Run()
	if err != nil {
		return err
	}
	var maxSessions int
	fmt.Sscanf(maxStr, "%d", &maxSessions)

	v := viper.New()
	v.SetConfigFile(cfg.PartnersFile)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok && !os.IsNotExist(err) {
			return fmt.Errorf("reading partners file %s: %w", cfg.PartnersFile, err)
		}
	}

	var entries []config.PartnerEntry
	if err := v.UnmarshalKey("partners", &entries); err != nil {
		return fmt.Errorf("decoding partners file %s: %w", cfg.PartnersFile, err)
	}
	for _, e := range entries {
		if e.ID == id {
			return fmt.Errorf("partner %s already enrolled", id)
		}
	}
	entries = append(entries, config.PartnerEntry{
		ID:          id,
		Password:    password,
		MaxSessions: maxSessions,
		Enabled:     true,
	})

	v.Set("partners", entries)
	if err := v.WriteConfigAs(cfg.PartnersFile); err != nil {
		return fmt.Errorf("writing partners file %s: %w", cfg.PartnersFile, err)
	}

	fmt.Printf("enrolled partner %s (max sessions %d)\n", id, maxSessions)
	return nil
}
