package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/meterscraper/internal/scraper"
)

var (
	snapshotVisible bool
	snapshotOutput  string
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [portal] [page]",
	Short: "Save the rendered HTML of a portal page",
	Long: `Logs in, navigates to a page and saves its HTML, to help debug extraction when a portal changes its layout.

Pages: authenticated, monthly, half-hour

Flags:
  --visible    Show the browser while navigating
  --output     Save HTML to this file instead of printing it`,
	Args: cobra.ExactArgs(2),
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotVisible, "visible", false, "Show browser window")
	snapshotCmd.Flags().StringVar(&snapshotOutput, "output", "", "Save HTML to this file")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	target, err := scraper.ParsePageState(args[1])
	if err != nil {
		return err
	}
	if target == scraper.LoggedOut {
		return fmt.Errorf("nothing to capture while logged out")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	session, err := openSession(ctx, cfg, args[0], snapshotVisible)
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	html, err := session.Snapshot(ctx, target)
	if err != nil {
		return fmt.Errorf("capturing %s page: %w", target, err)
	}

	if snapshotOutput == "" {
		fmt.Println(html)
		return nil
	}

	if err := os.WriteFile(snapshotOutput, []byte(html), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", snapshotOutput, err)
	}
	fmt.Printf("✓ Saved %s page (%d bytes) to %s\n", target, len(html), snapshotOutput)
	return nil
}
