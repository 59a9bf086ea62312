package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	rootCmd    = &cobra.Command{
		Use:   "forge",
		Short: "Forge - autonomous application builder",
		Long: `Forge turns a markdown requirements document into a working project.
It runs a six-phase pipeline (understand, scaffold, build, verify, harden,
deliver), checkpoints its progress after every phase, and resumes from the
checkpoint when re-run.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
