package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ArionMiles/pocketledger/pkg/client"
	"github.com/ArionMiles/pocketledger/pkg/config"
	"github.com/ArionMiles/pocketledger/pkg/logging"
	"github.com/ArionMiles/pocketledger/pkg/session"
)

// runStatus checks the configuration, credentials and storage.
func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	var cf configFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Println("=== pocketledger Status ===")
	fmt.Println()

	allGood := true

	fmt.Printf("Config (%s, %s): ", cf.envFile, cf.configFile)
	cfg, err := cf.load()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		printFinalStatus(false)
		return nil
	}
	fmt.Println("✓ Loaded")

	checkSession(cfg, &allGood)
	checkRules(cfg, &allGood)
	checkStore(cfg, &allGood)
	checkExport(cfg, &allGood)

	printFinalStatus(allGood)
	return nil
}

func checkSession(cfg config.Config, allGood *bool) {
	fmt.Print("Session secret: ")
	if _, err := session.NewVerifier(cfg.SessionSecret, cfg.SessionAudience); err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Println("✓ Set")
}

func checkRules(cfg config.Config, allGood *bool) {
	label := "built-in"
	if cfg.KeywordRulesFile != "" {
		label = cfg.KeywordRulesFile
	}
	fmt.Printf("Keyword rules (%s): ", label)
	rules, err := loadRules(cfg)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	keywords := 0
	for _, b := range rules.Buckets {
		keywords += len(b.Keywords)
	}
	fmt.Printf("✓ %d categories, %d keywords\n", len(rules.Buckets), keywords)
}

func checkStore(cfg config.Config, allGood *bool) {
	fmt.Printf("Store (%s): ", cfg.Store)
	if cfg.Store == config.StoreMemory {
		fmt.Println("⚠ In-memory (data is lost on exit)")
		return
	}
	_, closeStore, err := openStore(cfg, logging.Discard())
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	closeStore()
	fmt.Printf("✓ Connected (database %q)\n", cfg.Postgres.Database)
}

func checkExport(cfg config.Config, allGood *bool) {
	fmt.Printf("Export writer (%s): ", cfg.ExportWriter)
	registry, err := newRegistry()
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	scopes, err := registry.Scopes(cfg.ExportWriter)
	if err != nil {
		fmt.Printf("✗ %v\n", err)
		*allGood = false
		return
	}
	fmt.Println("✓ Available")
	if len(scopes) == 0 {
		return
	}

	fmt.Printf("Credentials file (%s): ", cfg.GoogleClientSecretFile)
	if _, err := os.Stat(cfg.GoogleClientSecretFile); os.IsNotExist(err) {
		fmt.Println("✗ Not found")
		*allGood = false
	} else {
		fmt.Println("✓ Found")
	}

	fmt.Printf("OAuth token (%s): ", cfg.GoogleTokenFile)
	token, err := client.TokenFromFile(cfg.GoogleTokenFile)
	switch {
	case os.IsNotExist(err):
		fmt.Println("✗ Not found (run 'pocketledger setup')")
		*allGood = false
	case err != nil:
		fmt.Printf("✗ Invalid: %v\n", err)
		*allGood = false
	case token.Expiry.IsZero():
		fmt.Println("✓ Valid (no expiry)")
	case token.Expiry.Before(time.Now()):
		fmt.Println("⚠ Expired (will refresh on next run)")
	default:
		fmt.Printf("✓ Valid (expires: %s)\n", token.Expiry.Format(time.RFC3339))
	}
}

func printFinalStatus(allGood bool) {
	fmt.Println()
	if allGood {
		fmt.Println("Status: ✓ Ready to run")
		fmt.Println()
		fmt.Println("Run 'pocketledger serve' to start the API.")
	} else {
		fmt.Println("Status: ✗ Configuration issues detected")
		fmt.Println()
		fmt.Println("Fix the issues above, then run 'pocketledger status' again.")
	}
}
