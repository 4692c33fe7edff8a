package admin

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/carepath-labs/skillverify/internal/config"
	"github.com/carepath-labs/skillverify/internal/service"
	"github.com/carepath-labs/skillverify/internal/storage"
	"github.com/spf13/cobra"
)

// ExportCmd returns the export command group for corpus snapshots
func ExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import corpus snapshots via object storage",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all non-archived documents to object storage",
		RunE:  runSnapshotExport,
	}
	exportCmd.Flags().String("key", "", "Object key for the snapshot (default: snapshots/corpus-<timestamp>.json)")

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import a corpus snapshot, re-creating and re-embedding each document",
		RunE:  runSnapshotImport,
	}
	importCmd.Flags().String("key", "", "Object key of the snapshot to import (required)")
	_ = importCmd.MarkFlagRequired("key")

	cmd.AddCommand(exportCmd)
	cmd.AddCommand(importCmd)
	return cmd
}

func buildSnapshotService(ctx context.Context, cfg *config.Config, app *app) (*service.SnapshotService, error) {
	if !cfg.HasS3() {
		return nil, fmt.Errorf("object storage not configured: set SKILLVERIFY_S3_ENDPOINT, SKILLVERIFY_S3_ACCESS_KEY_ID and SKILLVERIFY_S3_SECRET_ACCESS_KEY")
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return service.NewSnapshotService(app.docs, app.repo, s3Client), nil
}

func runSnapshotExport(cmd *cobra.Command, args []string) error {
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

	snapshots, err := buildSnapshotService(ctx, cfg, app)
	if err != nil {
		return err
	}

	key, _ := cmd.Flags().GetString("key")
	if key == "" {
		key = fmt.Sprintf("snapshots/corpus-%s.json", time.Now().UTC().Format("20060102-150405"))
	}

	count, err := snapshots.Export(ctx, key)
	if err != nil {
		return err
	}

	log.Printf("exported %d documents to %s/%s", count, cfg.S3Bucket, key)
	return nil
}

func runSnapshotImport(cmd *cobra.Command, args []string) error {
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

	snapshots, err := buildSnapshotService(ctx, cfg, app)
	if err != nil {
		return err
	}

	key, _ := cmd.Flags().GetString("key")
	created, failed, err := snapshots.Import(ctx, key)
	if err != nil {
		return err
	}

	log.Printf("import complete: %d created, %d failed", created, failed)
	if failed > 0 {
		return fmt.Errorf("%d documents failed to import", failed)
	}
	return nil
}
