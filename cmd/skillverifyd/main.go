package main

import (
	"fmt"
	"os"

	"github.com/carepath-labs/skillverify/internal/cli"
	"github.com/carepath-labs/skillverify/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "skillverifyd",
		Short: "Skillverify daemon and admin CLI",
		Long:  "Skillverify daemon for running the verification API server and managing the knowledge corpus",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.IngestCmd())
	rootCmd.AddCommand(admin.RefreshCmd())
	rootCmd.AddCommand(admin.ExportCmd())
	rootCmd.AddCommand(admin.StatsCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
