package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/meterscraper/internal/database"
	"github.com/jgoulah/meterscraper/internal/scraper"
	"github.com/jgoulah/meterscraper/pkg/models"
)

var (
	fetchVisible  bool
	fetchJSON     bool
	fetchNoStore  bool
	fetchPrevious int
	fetchDays     int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [portal] [monthly|halfhour]",
	Short: "Fetch usage data from a portal",
	Long: `Logs in to the portal and reads usage data.
Data will be stored in the local SQLite database.

  monthly   billable days, kWh and payment for the months the portal shows
  halfhour  48 half-hour readings for one or more days

Available portals: tepco, tokyogas`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchVisible, "visible", false, "Show browser window (for debugging)")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "Print fetched data as JSON")
	fetchCmd.Flags().BoolVar(&fetchNoStore, "no-store", false, "Do not write to the database")
	fetchCmd.Flags().IntVar(&fetchPrevious, "previous", 0, "Start this many days before today (halfhour)")
	fetchCmd.Flags().IntVar(&fetchDays, "days", 0, "Number of days to read, going back from the start day (halfhour, default from config)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(os.Stderr, "=== Fetch started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	name, kind := args[0], args[1]
	if kind != "monthly" && kind != "halfhour" {
		return fmt.Errorf("unknown data kind: %s (available: monthly, halfhour)", kind)
	}
	if fetchPrevious < 0 {
		return fmt.Errorf("--previous must not be negative")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var db *database.DB
	if !fetchNoStore {
		db, err = openDB()
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
	}

	ctx := context.Background()
	session, err := openSession(ctx, cfg, name, fetchVisible)
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	portal := session.Portal().Name
	if kind == "monthly" {
		return fetchMonthly(ctx, session, db, portal)
	}

	days := fetchDays
	if days <= 0 {
		days = cfg.GetHalfHourDays()
	}
	return fetchHalfHour(ctx, session, db, portal, days)
}

func fetchMonthly(ctx context.Context, session *scraper.Session, db *database.DB, portal string) error {
	fmt.Fprintf(os.Stderr, "Fetching monthly usage from %s...\n", portal)
	report, err := session.FetchMonthly(ctx)
	if err != nil {
		return fmt.Errorf("fetching monthly usage: %w", err)
	}

	if db != nil {
		if err := db.UpsertMonthly(portal, report.Monthly); err != nil {
			return fmt.Errorf("storing monthly usage: %w", err)
		}
	}
	fmt.Fprintf(os.Stderr, "✓ Read %d months\n", len(report.Monthly))

	if fetchJSON {
		return writeJSON(os.Stdout, report)
	}
	return nil
}

func fetchHalfHour(ctx context.Context, session *scraper.Session, db *database.DB, portal string, days int) error {
	fmt.Fprintf(os.Stderr, "Fetching half-hour usage from %s (%d days)...\n", portal, days)

	var results []*models.HalfHourUsage
	stored := 0
	for i := 0; i < days; i++ {
		// The first read positions the graph; later reads step back one day from there
		step := 1
		if i == 0 {
			step = fetchPrevious
		}

		usage, err := session.FetchHalfHour(ctx, step)
		if err != nil {
			return fmt.Errorf("fetching half-hour usage (%d days back): %w", session.DayOffset(), err)
		}
		if !usage.Complete() {
			slog.Warn("partial day", "portal", portal, "day", usage.Day, "slots", len(usage.Intervals))
		}
		results = append(results, usage)

		if db != nil {
			readings, err := usage.Readings(portal)
			if err != nil {
				return fmt.Errorf("converting %s: %w", usage.Day, err)
			}
			if err := db.UpsertReadings(readings); err != nil {
				return fmt.Errorf("storing %s: %w", usage.Day, err)
			}
			stored += len(readings)
		}
		fmt.Fprintf(os.Stderr, "✓ %s: %d readings\n", usage.Day, len(usage.Intervals))
	}

	if db != nil {
		fmt.Fprintf(os.Stderr, "Stored %d readings in %s\n", stored, getDBPath())
	}

	if fetchJSON {
		if len(results) == 1 {
			return writeJSON(os.Stdout, results[0])
		}
		return writeJSON(os.Stdout, results)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
