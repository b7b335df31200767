// Command submit-job is a one-shot CLI that uploads a seed job blob and
// publishes the job-submission envelope Master consumes, mirroring the
// original submission UI's POST handler side effects without
// reimplementing its HTML form (spec §7 Supplemented Features).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohamedmostafam0/distracrawl/internal/blobstore"
	"github.com/mohamedmostafam0/distracrawl/internal/bus"
	"github.com/mohamedmostafam0/distracrawl/internal/config"
	"github.com/mohamedmostafam0/distracrawl/internal/master"
	"github.com/mohamedmostafam0/distracrawl/internal/model"
)

func main() {
	var seedURLsFlag string
	var depth int
	var domainRestriction string

	root := &cobra.Command{
		Use:   "submit-job",
		Short: "Submit a seed crawl job to the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			seedURLs := splitAndTrim(seedURLsFlag)
			if len(seedURLs) == 0 {
				return fmt.Errorf("at least one --url is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			config.SetupLogger(cfg, "submit-job")

			ctx := context.Background()

			msgBus, err := bus.NewPubSubBus(ctx, cfg.ProjectID)
			if err != nil {
				return fmt.Errorf("failed to connect to message bus: %w", err)
			}
			defer msgBus.Close()

			store, err := blobstore.NewGCSStore(ctx, cfg.BucketName)
			if err != nil {
				return fmt.Errorf("failed to connect to blob store: %w", err)
			}
			defer store.Close()

			jobID := master.NewJobID()
			job := model.Job{
				JobID:             jobID,
				SeedURLs:          seedURLs,
				Depth:             depth,
				DomainRestriction: domainRestriction,
				Timestamp:         model.NowISO(),
			}
			data, err := json.Marshal(job)
			if err != nil {
				return fmt.Errorf("failed to marshal job: %w", err)
			}

			path := fmt.Sprintf("crawl_tasks/%s.json", jobID)
			if err := store.Write(ctx, path, data, blobstore.ContentTypeJSON); err != nil {
				return fmt.Errorf("failed to upload job blob: %w", err)
			}

			envelope := model.JobSubmissionEnvelope{TaskID: jobID, GCSPath: path}
			envData, err := json.Marshal(envelope)
			if err != nil {
				return fmt.Errorf("failed to marshal job-submission envelope: %w", err)
			}
			if err := msgBus.Publish(ctx, cfg.Topics.JobSubmission, envData); err != nil {
				return fmt.Errorf("failed to publish job-submission envelope: %w", err)
			}

			slog.Info("submit-job: job submitted", "job_id", jobID, "seed_urls", seedURLs)
			fmt.Println(jobID)
			return nil
		},
	}

	root.Flags().StringVar(&seedURLsFlag, "url", "", "comma-separated seed URLs (required)")
	root.Flags().IntVar(&depth, "depth", 2, "crawl depth limit")
	root.Flags().StringVar(&domainRestriction, "domain-restriction", "", "restrict discovered links to hosts containing this substring")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
