package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"davos_stays/config"
	"davos_stays/logging"
	"davos_stays/storage"
)

// app carries what every subcommand needs once the root has loaded it.
type app struct {
	cfg       *config.Config
	noHistory bool
	history   *storage.SQLiteStore
	logFile   *logging.RotatingWriter
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The caller closes the returned app
// once the command has finished, whether it failed or not.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:           "davos-stays",
		Short:         "Migrate the Davos listing spreadsheet and scrape property photos",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().BoolVar(&a.noHistory, "no-history", false, "Do not record the run in the local SQLite history")

	root.AddCommand(
		importCmd(a),
		scrapeImagesCmd(a),
		scrapeSiteCmd(a),
		historyCmd(a),
	)
	return root, a
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	logFile, err := logging.Setup(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		logging.Setup("", cfg.LogLevel)
		slog.Warn("could not set up file logging", "path", cfg.LogFile, "error", err)
	}
	a.logFile = logFile

	slog.Debug("config loaded", "sites", len(cfg.Sites), "data_dir", cfg.DataDir, "images_dir", cfg.ImagesDir)

	if a.noHistory {
		return nil
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		slog.Warn("run history disabled", "db", cfg.DBPath, "error", err)
		return nil
	}
	a.history = store
	slog.Debug("run history", "db", cfg.DBPath)
	return nil
}

func (a *app) close() {
	if a.history != nil {
		a.history.Close()
		a.history = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
}

// maskConnectionString hides the password of a postgres URL for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
