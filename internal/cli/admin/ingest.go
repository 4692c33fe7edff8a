package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/carepath-labs/skillverify/internal/config"
	"github.com/carepath-labs/skillverify/internal/service"
	"github.com/carepath-labs/skillverify/internal/storage"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Bulk-load pre-chunked knowledge records into the vector index",
		Long: `Read a JSON array of pre-chunked knowledge records from a file, embed
each record and upsert the vectors in throttled batches. Per-record
failures are skipped and reported at the end.`,
		RunE: runIngest,
	}

	cmd.Flags().StringP("file", "f", "", "Path or s3://bucket/key of the JSON records file (required)")
	cmd.Flags().String("namespace", "", "Vector namespace to ingest into")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// readIngestSource reads the records payload from a local path or an
// s3://bucket/key URL.
func readIngestSource(ctx context.Context, cfg *config.Config, path string) ([]byte, error) {
	if !strings.HasPrefix(path, "s3://") {
		return os.ReadFile(path)
	}

	if !cfg.HasS3() {
		return nil, fmt.Errorf("s3 source %s requires object storage credentials", path)
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(path, "s3://"), "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 source %s, expected s3://bucket/key", path)
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return s3Client.GetSnapshot(ctx, key)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path, _ := cmd.Flags().GetString("file")
	namespace, _ := cmd.Flags().GetString("namespace")

	data, err := readIngestSource(ctx, cfg, path)
	if err != nil {
		return fmt.Errorf("failed to read records source: %w", err)
	}

	var records []service.IngestRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to decode records file: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("records file %s is empty", path)
	}

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	log.Printf("ingesting %d records in batches of %d", len(records), cfg.IngestBatchSize)

	report, err := app.pipeline.BatchIngest(ctx, records, service.BatchIngestOptions{
		BatchSize:  cfg.IngestBatchSize,
		ItemDelay:  cfg.IngestItemDelay,
		BatchDelay: cfg.IngestBatchDelay,
		Namespace:  namespace,
	})
	if err != nil {
		return err
	}

	log.Printf("ingest complete: %d/%d succeeded, %d skipped, %d batches",
		report.Succeeded, report.Total, report.Skipped, report.Batches)
	return nil
}
