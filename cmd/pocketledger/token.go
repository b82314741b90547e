package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/session"
)

// runToken prints a session token signed with SESSION_SECRET. Production
// tokens come from the identity provider.
func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	var cf configFlags
	cf.register(fs)
	user := fs.String("user", "", "user id to issue the token for (default: a new random id)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := cf.load()
	if err != nil {
		return err
	}

	owner := uuid.New()
	if *user != "" {
		if owner, err = uuid.Parse(*user); err != nil {
			return fmt.Errorf("invalid -user: %w", err)
		}
	}
	if *ttl <= 0 {
		return fmt.Errorf("-ttl must be positive, got %s", *ttl)
	}

	verifier, err := session.NewVerifier(cfg.SessionSecret, cfg.SessionAudience)
	if err != nil {
		return fmt.Errorf("SESSION_SECRET: %w", err)
	}
	token, err := verifier.Issue(owner, *ttl)
	if err != nil {
		return err
	}

	fmt.Printf("User:    %s\n", owner)
	fmt.Printf("Expires: %s\n", time.Now().Add(*ttl).Format(time.RFC3339))
	fmt.Println()
	fmt.Println(token)
	return nil
}
