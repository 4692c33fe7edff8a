package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/carepath-labs/skillverify/internal/config"
	"github.com/spf13/cobra"
)

// RefreshCmd returns the refresh command
func RefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-embed every non-archived document",
		Long: `Chunk, embed and upsert every non-archived document, replacing its
existing vectors. Use after changing the embedding model or chunking
configuration.`,
		RunE: runRefresh,
	}
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	refreshed, failed, err := app.docs.RefreshAllEmbeddings(ctx)
	if err != nil {
		return err
	}

	log.Printf("refresh complete: %d refreshed, %d failed", refreshed, failed)
	if failed > 0 {
		return fmt.Errorf("%d documents failed to refresh", failed)
	}
	return nil
}
