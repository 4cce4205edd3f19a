package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/meterscraper/internal/scraper"
	"github.com/jgoulah/meterscraper/pkg/models"
)

var (
	listPortal   string
	listHalfHour bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored usage data",
	Long:  `Displays stored monthly usage (or half-hour readings with --halfhour) from the database.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listPortal, "portal", "", "Filter by portal (tepco or tokyogas)")
	listCmd.Flags().BoolVar(&listHalfHour, "halfhour", false, "List half-hour readings instead of monthly usage")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	for _, portal := range selectedPortals(listPortal) {
		if listHalfHour {
			readings, err := db.ListReadings(portal)
			if err != nil {
				return fmt.Errorf("listing readings for %s: %w", portal, err)
			}
			printReadings(portal, readings)
			continue
		}

		monthly, err := db.ListMonthly(portal)
		if err != nil {
			return fmt.Errorf("listing data for %s: %w", portal, err)
		}
		printMonthly(portal, monthly)
	}

	return nil
}

func printMonthly(portal string, records []models.MonthlyUsage) {
	if len(records) == 0 {
		fmt.Printf("No monthly data found for %s\n", portal)
		return
	}

	fmt.Printf("\n%s Monthly Usage:\n", portal)
	fmt.Println("------------------------------------------------")
	fmt.Printf("%-12s  %5s  %12s  %12s\n", "Month", "Days", "Usage", "Payment")
	fmt.Println("------------------------------------------------")

	for _, r := range records {
		fmt.Printf("%-12s  %5s  %12s  %12s\n", r.Period, formatDays(r.BillableDays), formatAmount(r.KWh, ""), formatAmount(r.Payment, "¥"))
	}
	fmt.Printf("(%d months)\n", len(records))
}

func printReadings(portal string, readings []models.IntervalReading) {
	if len(readings) == 0 {
		fmt.Printf("No half-hour data found for %s\n", portal)
		return
	}

	fmt.Printf("\n%s Half-Hour Readings:\n", portal)
	fmt.Println("----------------------------------------")
	fmt.Printf("%-18s  %10s\n", "Start", "kWh")
	fmt.Println("----------------------------------------")

	var total float64
	for _, r := range readings {
		fmt.Printf("%-18s  %10.2f\n", r.StartTime.Format("2006-01-02 15:04"), r.KWh)
		total += r.KWh
	}

	fmt.Println("----------------------------------------")
	fmt.Printf("Total: %s kWh (%s readings)\n", formatDecimal(total), humanize.Comma(int64(len(readings))))
}

func formatDays(days *int) string {
	if days == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *days)
}

func formatAmount(v *float64, prefix string) string {
	if v == nil {
		return "-"
	}
	return prefix + formatDecimal(*v)
}

// formatDecimal rounds to two places; CommafWithDigits alone truncates
func formatDecimal(v float64) string {
	return humanize.CommafWithDigits(math.Round(v*100)/100, 2)
}

// selectedPortals returns the portal named by a --portal flag, or all of them
func selectedPortals(filter string) []string {
	if filter == "" {
		return scraper.PortalNames()
	}
	return []string{strings.ToLower(filter)}
}
