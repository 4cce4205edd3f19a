package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/meterscraper/internal/publisher"
	"github.com/jgoulah/meterscraper/pkg/models"
)

var (
	publishPortal  string
	publishSince   string
	publishUntil   string
	publishAll     bool
	publishLimit   int
	publishMonthly bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish usage data to Home Assistant and MQTT",
	Long: `Reads stored half-hour readings from the database and backfills them into Home Assistant via HTTP API.
With --monthly, publishes stored monthly usage to the MQTT broker as retained messages instead.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishPortal, "portal", "", "Portal to publish (tepco or tokyogas, default: all portals)")
	publishCmd.Flags().StringVar(&publishSince, "since", "", "Only publish data since this date (YYYY-MM-DD or relative like 7d)")
	publishCmd.Flags().StringVar(&publishUntil, "until", "", "Only publish data until this date (YYYY-MM-DD)")
	publishCmd.Flags().BoolVar(&publishAll, "all", false, "Force republish all records (ignore published flag)")
	publishCmd.Flags().IntVar(&publishLimit, "limit", 0, "Limit number of records to publish (0 = no limit)")
	publishCmd.Flags().BoolVar(&publishMonthly, "monthly", false, "Publish monthly usage over MQTT")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if publishMonthly && !cfg.MQTT.Enabled {
		return fmt.Errorf("MQTT is not enabled in config")
	}
	if !publishMonthly && !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("Home Assistant is not enabled in config")
	}

	pub, err := publisher.New(cfg)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	portals := selectedPortals(publishPortal)

	if publishMonthly {
		for _, portal := range portals {
			records, err := db.ListMonthly(portal)
			if err != nil {
				return fmt.Errorf("listing data for %s: %w", portal, err)
			}
			if len(records) == 0 {
				fmt.Printf("No monthly data found for %s\n", portal)
				continue
			}
			if err := pub.PublishMonthly(portal, records); err != nil {
				return fmt.Errorf("publishing %s: %w", portal, err)
			}
			fmt.Printf("✓ Published %d months for %s\n", len(records), portal)
		}
		return nil
	}

	var sinceDate, untilDate *time.Time
	if publishSince != "" {
		since, err := parseDate(publishSince)
		if err != nil {
			return fmt.Errorf("parsing --since date: %w", err)
		}
		sinceDate = &since
	}
	if publishUntil != "" {
		until, err := parseDate(publishUntil)
		if err != nil {
			return fmt.Errorf("parsing --until date: %w", err)
		}
		// Include the whole final day
		until = until.AddDate(0, 0, 1)
		untilDate = &until
	}

	ctx := context.Background()
	totalPublished := 0
	for _, portal := range portals {
		entityID := cfg.GetEntityID(portal)
		if entityID == "" {
			fmt.Printf("No Home Assistant entity_id configured for %s, skipping\n", portal)
			continue
		}

		var data []models.IntervalReading
		if publishAll {
			data, err = db.ListReadings(portal)
		} else {
			data, err = db.ListUnpublishedReadings(portal)
		}
		if err != nil {
			return fmt.Errorf("listing data for %s: %w", portal, err)
		}

		data = filterReadings(data, sinceDate, untilDate)
		if len(data) == 0 {
			fmt.Printf("No data to publish for %s\n", portal)
			continue
		}

		if publishLimit > 0 && len(data) > publishLimit {
			data = data[:publishLimit]
			fmt.Printf("Limiting to %d records (--limit flag)\n", publishLimit)
		}

		fmt.Printf("Publishing %d records for %s...\n", len(data), portal)
		published := 0
		for i, record := range data {
			fmt.Printf("[%d/%d] Publishing %s (%.2f kWh)... ", i+1, len(data), record.StartTime.Format("2006-01-02 15:04"), record.KWh)
			if err := pub.PublishReading(ctx, entityID, record); err != nil {
				fmt.Printf("FAILED: %v\n", err)
				continue
			}

			if err := db.MarkPublished(record.ID); err != nil {
				fmt.Printf("✓ (warning: failed to mark as published: %v)\n", err)
			} else {
				fmt.Printf("✓\n")
			}
			published++
		}

		fmt.Printf("Successfully published %d/%d records for %s\n", published, len(data), portal)
		totalPublished += published
	}

	fmt.Printf("\nTotal records published: %d\n", totalPublished)
	return nil
}

// filterReadings keeps readings starting in [since, until)
func filterReadings(data []models.IntervalReading, since, until *time.Time) []models.IntervalReading {
	if since == nil && until == nil {
		return data
	}
	var out []models.IntervalReading
	for _, r := range data {
		if since != nil && r.StartTime.Before(*since) {
			continue
		}
		if until != nil && !r.StartTime.Before(*until) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// parseDate parses a date string in either YYYY-MM-DD format or relative format (e.g., "7d")
func parseDate(dateStr string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", dateStr, models.Tokyo)
	if err == nil {
		return t, nil
	}

	// Relative format, e.g. "7d" for 7 days ago
	if len(dateStr) > 1 && dateStr[len(dateStr)-1] == 'd' {
		daysStr := dateStr[:len(dateStr)-1]
		var days int
		if _, err := fmt.Sscanf(daysStr, "%d", &days); err == nil {
			return time.Now().In(models.Tokyo).AddDate(0, 0, -days), nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date format: %s (use YYYY-MM-DD or Nd for N days ago)", dateStr)
}
