package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/carepath-labs/skillverify/internal/config"
	"github.com/spf13/cobra"
)

// StatsCmd returns the stats command
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print document and vector index statistics",
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
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

	counts, err := app.repo.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}

	out := map[string]interface{}{
		"documents":               counts,
		"static_corpus_documents": app.corpus.Size(),
	}

	if indexStats, err := app.index.Stats(ctx); err != nil {
		out["index_error"] = err.Error()
	} else {
		out["index"] = indexStats
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
