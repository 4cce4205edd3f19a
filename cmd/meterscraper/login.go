package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jgoulah/meterscraper/internal/scraper"
)

var loginVisible bool

var loginCmd = &cobra.Command{
	Use:   "login [portal]",
	Short: "Check that the configured credentials are accepted",
	Long: `Logs in to the portal with the username and password from the config file,
then logs out again. Use --visible to watch the browser.

Available portals: tepco, tokyogas`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginVisible, "visible", false, "Show browser window (for debugging)")
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := context.Background()
	fmt.Printf("Logging in to %s...\n", args[0])
	session, err := openSession(ctx, cfg, args[0], loginVisible)
	if errors.Is(err, scraper.ErrLoginRejected) {
		return fmt.Errorf("%s did not accept the configured username/password", args[0])
	}
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	fmt.Printf("✓ Logged in to %s\n", session.Portal().Name)
	return nil
}
