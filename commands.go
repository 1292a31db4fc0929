package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"davos_stays/config"
	"davos_stays/httputil"
	"davos_stays/importer"
	"davos_stays/models"
	"davos_stays/normalize"
	"davos_stays/scraper"
	"davos_stays/sheet"
	"davos_stays/storage"
)

const missingCredentials = "Supabase credentials not found in environment.\n" +
	"Set NEXT_PUBLIC_SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY to import to database."

func importCmd(a *app) *cobra.Command {
	var opts importer.Options
	var excelPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Normalize the listing spreadsheet into JSON and optionally push it to Supabase",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if opts.OutputDir == "" {
				opts.OutputDir = a.cfg.DataDir
			}
			opts.Source = filepath.Base(excelPath)

			fmt.Fprintf(out, "Loading Excel file: %s\n", excelPath)
			rows, err := sheet.Read(excelPath)
			if err != nil {
				return fmt.Errorf("read %s: %w", excelPath, err)
			}

			orch := importer.NewOrchestrator(normalize.New(a.cfg.Rules), out)
			orch.SetBatchSize(a.cfg.BatchSize)
			if a.history != nil {
				orch.SetHistory(a.history)
			}

			if !opts.DryRun && !opts.JSONOnly {
				sink, closeSink, err := buildSink(ctx, a.cfg)
				if err != nil {
					slog.Error("remote sink unavailable", "error", err)
					orch.SetSinkMissing(fmt.Sprintf("Database import error: %v", err))
				} else if sink == nil {
					orch.SetSinkMissing(missingCredentials)
				} else {
					defer closeSink()
					orch.SetSink(sink)
				}
			}

			report, err := orch.Run(ctx, rows, opts)
			if err != nil {
				return err
			}
			slog.Info("import finished", "run", report.RunID, "properties", len(report.Properties),
				"pricing_rules", len(report.PricingRules), "errors", len(report.Errors), "remote", report.Remote.Status())
			return nil
		},
	}

	cmd.Flags().StringVar(&excelPath, "excel", "", "Path to the listing spreadsheet (.xlsx or .csv)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Parse and write JSON, skip the database")
	cmd.Flags().BoolVar(&opts.JSONOnly, "json-only", false, "Only write JSON files")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Only consider the first N data rows")
	cmd.Flags().StringVar(&opts.OutputDir, "out", "", "Output directory for JSON files (default DATA_DIR)")
	cmd.MarkFlagRequired("excel")
	return cmd
}

// buildSink picks the remote destination: a direct Postgres connection when
// SUPABASE_DB_URL is set, otherwise the REST API. Both are wrapped in the
// schema validator. A nil sink means no credentials are configured.
func buildSink(ctx context.Context, cfg *config.Config) (importer.Sink, func(), error) {
	noop := func() {}

	var next interface {
		storage.Submitter
		Name() string
	}
	closeFn := noop

	switch {
	case cfg.Supabase.DBURL != "":
		pg, err := storage.NewPostgresSink(ctx, cfg.Supabase.DBURL, cfg.Supabase.Table)
		if err != nil {
			return nil, noop, fmt.Errorf("connect %s: %w", maskConnectionString(cfg.Supabase.DBURL), err)
		}
		slog.Info("connected to postgres", "db", maskConnectionString(cfg.Supabase.DBURL))
		next, closeFn = pg, pg.Close
	case cfg.Supabase.Configured():
		clients, err := httputil.NewClients(&cfg.Scraper)
		if err != nil {
			return nil, noop, err
		}
		next = storage.NewSupabaseSink(&cfg.Supabase, clients.API)
	default:
		return nil, noop, nil
	}

	sink, err := storage.NewValidatingSink(next)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return sink, closeFn, nil
}

// newDownloader wires the media ledger and, when a bucket is configured,
// the S3 mirror into a downloader.
func newDownloader(ctx context.Context, a *app, client *httputil.Clients, site *config.SiteConfig) *scraper.Downloader {
	d := scraper.NewDownloader(client.Download, a.cfg.Scraper.UserAgent, site.MinImageBytes)
	if a.history != nil {
		d.WithLedger(a.history)
	}
	if a.cfg.S3.Enabled() {
		up, err := storage.NewS3Uploader(ctx, a.cfg.S3)
		if err != nil {
			slog.Warn("s3 mirror disabled", "bucket", a.cfg.S3.Bucket, "error", err)
		} else {
			d.WithUploader(up)
			slog.Info("mirroring images", "bucket", a.cfg.S3.Bucket, "url", up.PublicURL(up.Key("", "")))
		}
	}
	return d
}

// startRun opens a history row for a scrape; the returned func closes it.
func (a *app) startRun(kind models.RunKind, source string) func(found, errs int) {
	if a.history == nil {
		return func(int, int) {}
	}
	run := models.NewRun(kind, source)
	if err := a.history.CreateRun(run); err != nil {
		slog.Warn("history unavailable", "error", err)
		return func(int, int) {}
	}
	return func(found, errs int) {
		now := time.Now()
		run.FinishedAt = &now
		run.Status = models.RunStatusCompleted
		run.RowsSeen = found
		run.ErrorsCount = errs
		if err := a.history.FinishRun(run); err != nil {
			slog.Warn("failed to finish run", "run", run.ID, "error", err)
		}
	}
}

func scrapeImagesCmd(a *app) *cobra.Command {
	var siteID string
	var opts scraper.PageOptions

	cmd := &cobra.Command{
		Use:   "scrape-images",
		Short: "Download photos from each property's listing page",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			site, err := a.cfg.Site(siteID)
			if err != nil {
				return err
			}

			propsPath := filepath.Join(a.cfg.DataDir, importer.PropertiesFile)
			props, err := storage.ReadProperties(propsPath)
			if os.IsNotExist(err) {
				return fmt.Errorf("%s not found, run import first", propsPath)
			}
			if err != nil {
				return err
			}

			clients, err := httputil.NewClients(&a.cfg.Scraper)
			if err != nil {
				return err
			}

			imagesDir := filepath.Join(a.cfg.ImagesDir, "properties")
			finish := a.startRun(models.RunKindScrapeImages, site.ID)

			s := scraper.NewPageScraper(site, clients.Page, newDownloader(ctx, a, clients, site), imagesDir, out)
			report := s.Run(ctx, props, opts)
			finish(report.ImagesFound, len(report.Errors))

			resultsPath := filepath.Join(a.cfg.DataDir, "scraped_images.json")
			if err := storage.WriteJSON(resultsPath, report); err != nil {
				return fmt.Errorf("write results: %w", err)
			}
			scraper.PrintPageSummary(out, report, resultsPath, imagesDir, opts.DryRun)
			return nil
		},
	}

	cmd.Flags().StringVar(&siteID, "site", config.DefaultSiteID, "Site config id")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Limit number of properties to scrape")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Only find images, do not download")
	return cmd
}

func scrapeSiteCmd(a *app) *cobra.Command {
	var siteID string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scrape-site",
		Short: "Download every full-size upload linked from the accommodation index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			site, err := a.cfg.Site(siteID)
			if err != nil {
				return err
			}

			clients, err := httputil.NewClients(&a.cfg.Scraper)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Scraping %s for property images...\n\n", site.Domain)

			outDir := filepath.Join(a.cfg.ImagesDir, "scraped")
			finish := a.startRun(models.RunKindScrapeSite, site.IndexURL)

			s := scraper.NewSiteScraper(site, clients.Page, newDownloader(ctx, a, clients, site), outDir, out)
			manifest := s.Run(ctx, dryRun)
			finish(manifest.TotalFound, manifest.Failed)

			manifestPath := filepath.Join(a.cfg.DataDir, "scraped_images_manifest.json")
			if err := storage.WriteJSON(manifestPath, manifest); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}
			if dryRun {
				fmt.Fprintf(out, "\nManifest saved to: %s\n", manifestPath)
				return nil
			}
			scraper.PrintSiteSummary(out, manifest, manifestPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&siteID, "site", config.DefaultSiteID, "Site config id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only list images, do not download")
	return cmd
}

func historyCmd(a *app) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the local history",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.history == nil {
				return fmt.Errorf("run history is disabled")
			}

			if runID != "" {
				id, err := uuid.Parse(runID)
				if err != nil {
					return fmt.Errorf("invalid run id: %w", err)
				}
				run, err := a.history.GetRun(id)
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", id)
				}
				fmt.Fprintf(out, "Run %s (%s, %s)\n", run.ID, run.Kind, run.Status)
				fmt.Fprintf(out, "Source: %s\n", run.Source)
				fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
				if run.FinishedAt != nil {
					fmt.Fprintf(out, "Finished: %s\n", run.FinishedAt.Format("2006-01-02 15:04:05"))
				}
				fmt.Fprintf(out, "Rows: %d, properties: %d, pricing rules: %d, errors: %d\n",
					run.RowsSeen, run.Properties, run.PricingRules, run.ErrorsCount)
				if run.RemoteStatus != "" {
					fmt.Fprintf(out, "Remote: %s\n", run.RemoteStatus)
				}
				fmt.Fprintln(out)

				logs, err := a.history.GetRunLogs(id)
				if err != nil {
					return err
				}
				for _, l := range logs {
					fmt.Fprintf(out, "%s [%s] %s\n", l.Timestamp.Format("2006-01-02 15:04:05"), l.Level, l.Message)
				}
				return nil
			}

			runs, err := a.history.RecentRuns(limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-13s %-9s %s  rows=%d properties=%d pricing=%d errors=%d %s\n",
					r.ID, r.Kind, r.Status, r.StartedAt.Format("2006-01-02 15:04"),
					r.RowsSeen, r.Properties, r.PricingRules, r.ErrorsCount, r.RemoteStatus)
			}

			media, err := a.history.MediaCount()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nImages in media ledger: %d\n", media)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the log lines of one run")
	return cmd
}
