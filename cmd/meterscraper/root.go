package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/jgoulah/meterscraper/internal/config"
	"github.com/jgoulah/meterscraper/internal/database"
	"github.com/jgoulah/meterscraper/internal/scraper"
	"github.com/jgoulah/meterscraper/pkg/models"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "meterscraper",
	Short: "Scrape energy usage data from TEPCO and Tokyo Gas",
	Long: `MeterScraper is a CLI tool to collect energy usage data from utility member portals.
It logs in with a headless browser, reads monthly and half-hour usage, and stores it in a local SQLite database.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./data.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log each page transition")
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "data.db"
}

func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// settlerFor picks how long to wait after each page change
func settlerFor(cfg *config.Config) scraper.Settler {
	if cfg.WaitReady {
		return scraper.WaitReady{
			Timeout:  cfg.GetCommandTimeout(),
			Fallback: cfg.GetSettleDelay(),
		}
	}
	return scraper.FixedDelay{Delay: cfg.GetSettleDelay()}
}

// openSession launches a browser and logs in to the named portal. The
// caller must Close the returned session.
func openSession(ctx context.Context, cfg *config.Config, name string, visible bool) (*scraper.Session, error) {
	portal, err := scraper.PortalByName(name)
	if err != nil {
		return nil, err
	}

	creds, err := cfg.GetCredentials(portal.Name)
	if err != nil {
		return nil, fmt.Errorf("%w. Add username/password under portals in %s", err, getConfigPath())
	}

	browser, err := scraper.NewChromeBrowser(scraper.BrowserOptions{
		Visible:        visible || cfg.Browser.Visible,
		CommandTimeout: cfg.GetCommandTimeout(),
		UserAgent:      cfg.Browser.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	session, err := scraper.Open(ctx, browser, portal,
		models.Credentials{Username: creds.Username, Password: creds.Password},
		scraper.WithSettler(settlerFor(cfg)))
	if err != nil {
		session.Close(ctx)
		return nil, err
	}

	return session, nil
}
