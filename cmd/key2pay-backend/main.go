package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"key2pay-backend/internal/config"
	"key2pay-backend/internal/env"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "key2pay-backend",
		Short:         "Key2Pay payment gateway backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env files and the KEY2PAY_* environment.
func loadConfig() (config.Config, error) {
	if _, err := env.Load(".env.local", ".env"); err != nil {
		return config.Config{}, err
	}
	return config.EnvDefaults()
}
