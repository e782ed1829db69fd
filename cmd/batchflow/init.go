package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aristath/batchflow/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default project config to .batchflow/config.json",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(".batchflow", "config.json")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		if err := config.Save(config.DefaultConfig(), path); err != nil {
			return err
		}

		fmt.Printf("wrote %s\n", path)
		return nil
	},
}
