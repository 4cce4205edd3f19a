package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/meterscraper/internal/publisher"
)

var generateStatsPortal string

var generateStatsCmd = &cobra.Command{
	Use:   "generate-stats",
	Short: "Generate statistics in Home Assistant from backfilled states",
	Long:  `Calls AppDaemon endpoint to compile statistics from individual half-hour consumption states. Run this after publishing to populate the Energy dashboard.`,
	RunE:  runGenerateStats,
}

func init() {
	generateStatsCmd.Flags().StringVar(&generateStatsPortal, "portal", "", "Portal to generate statistics for (default: all with an entity_id)")
	rootCmd.AddCommand(generateStatsCmd)
}

func runGenerateStats(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Generate Statistics started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.HomeAssistant.Enabled {
		return fmt.Errorf("Home Assistant is not enabled in config")
	}

	// MQTT is not needed here
	cfg.MQTT.Enabled = false
	pub, err := publisher.New(cfg)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}

	ctx := context.Background()
	for _, portal := range selectedPortals(generateStatsPortal) {
		entityID := cfg.GetEntityID(portal)
		if entityID == "" {
			continue
		}

		fmt.Printf("Generating statistics for %s...\n", entityID)
		result, err := pub.GenerateStatistics(ctx, entityID)
		if err != nil {
			return fmt.Errorf("generating statistics for %s: %w", entityID, err)
		}

		fmt.Printf("✓ Statistics generated successfully\n")
		fmt.Printf("  - Inserted: %d new statistics records\n", result.Inserted)
		fmt.Printf("  - Updated: %d existing statistics records\n", result.Updated)
		fmt.Printf("  - Total hours: %d\n", result.TotalHours)
	}

	return nil
}
