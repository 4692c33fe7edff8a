package main

import (
	"fmt"
	"os"

	"github.com/carepath-labs/skillverify/internal/cli"
	"github.com/carepath-labs/skillverify/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "skillverify",
		Short: "Skillverify CLI - knowledge and verification for CNA skill training",
		Long: `Skillverify CLI manages the clinical knowledge corpus and submits step
performance events for AI-assisted verification.

Environment variables:
  SKILLVERIFY_API_KEY   API key for authentication
  SKILLVERIFY_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.DocumentCmd())
	rootCmd.AddCommand(client.VerifyCmd())
	rootCmd.AddCommand(client.RetrieveCmd())
	rootCmd.AddCommand(client.StatsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
