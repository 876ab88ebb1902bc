package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chrissnell/snowline/pkg/config"
)

func convertConfig(cmd *cobra.Command, args []string) error {
	yamlFile, dbFile := args[0], args[1]

	if _, err := os.Stat(dbFile); err == nil && !convertForce {
		return fmt.Errorf("SQLite file already exists: %s (use --force to replace its configuration)", dbFile)
	}

	cfg, err := config.NewYAMLProvider(yamlFile).LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	provider, err := config.NewSQLiteProvider(dbFile)
	if err != nil {
		return fmt.Errorf("error creating SQLite provider: %w", err)
	}
	defer provider.Close()

	if err := provider.SaveConfig(cfg); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "converted %s to %s (%d AOIs)\n", yamlFile, dbFile, len(cfg.AOIs))
	return nil
}
