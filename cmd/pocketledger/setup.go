package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ArionMiles/pocketledger/pkg/client"
)

// runSetup handles the OAuth setup flow for writers that export to Google.
func runSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	var cf configFlags
	cf.register(fs)
	force := fs.Bool("force", false, "re-authenticate even if a token exists")
	port := fs.Int("port", client.DefaultCallbackPort, "local port for the OAuth callback")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	fmt.Println("=== pocketledger Setup ===")
	fmt.Println()

	secretsPath := cfg.GoogleClientSecretFile
	tokenPath := cfg.GoogleTokenFile

	if _, err := os.Stat(secretsPath); os.IsNotExist(err) {
		return fmt.Errorf("credentials file not found: %s\n\nTo get your credentials:\n"+
			"1. Go to https://console.cloud.google.com/apis/credentials\n"+
			"2. Create an OAuth 2.0 Client ID (Desktop application)\n"+
			"3. Download the JSON file and save it as '%s'", secretsPath, secretsPath)
	}

	if !*force {
		if _, err := os.Stat(tokenPath); err == nil {
			fmt.Printf("Already authenticated! Token file exists: %s\n", tokenPath)
			fmt.Println()
			fmt.Println("To re-authenticate, run: pocketledger setup -force")
			return nil
		}
	}

	if *force {
		if err := os.Remove(tokenPath); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove existing token", "error", err)
		}
		fmt.Println("Forcing re-authentication...")
		fmt.Println()
	}

	fmt.Println("This will set up OAuth authentication with Google.")
	fmt.Println()
	fmt.Println("Required permissions:")
	fmt.Println("  - Sheets: Read and write spreadsheets (to export transactions)")
	fmt.Println()
	fmt.Println("Starting authentication...")
	fmt.Println()

	ctx, cancel := signalContext(logger)
	defer cancel()

	if err := client.Authorize(ctx, client.Config{
		SecretFile:   secretsPath,
		TokenFile:    tokenPath,
		Scopes:       []string{client.SheetsScope},
		CallbackPort: *port,
	}, logger); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Setup Complete ===")
	fmt.Println()
	fmt.Printf("Token saved to: %s\n", tokenPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Set EXPORT_WRITER=sheets and EXPORT_WRITER_CONFIG (see README for format)")
	fmt.Println("  2. Run 'pocketledger export' to mirror your transactions")
	fmt.Println()

	return nil
}
