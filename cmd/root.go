package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "easel",
	Short: "easel — real-time voice + text AI copilot for a shared card board",
	Long:  "easel is a session daemon that bridges a human and an AI agent over\nsimultaneous chat, audio, and workspace-bridge channels.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
}
