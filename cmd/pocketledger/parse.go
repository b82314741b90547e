package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/config"
	"github.com/ArionMiles/pocketledger/pkg/draft"
	"github.com/ArionMiles/pocketledger/pkg/parser"
)

type parseOutput struct {
	Parser   string          `json:"parser"`
	Draft    draft.Draft     `json:"draft"`
	Valid    bool            `json:"valid"`
	Problems []draft.Problem `json:"problems,omitempty"`
}

// runParse parses text offline and prints the resulting draft as JSON.
func runParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	var cf configFlags
	cf.register(fs)
	name := fs.String("parser", parser.MarkerName, "parser to use: "+strings.Join(parser.Names(), ", "))
	accounts := fs.String("accounts", "", "comma-separated account names to resolve #markers against")
	categories := fs.String("categories", "", "comma-separated categories in addition to the defaults")
	date := fs.String("date", "", "today's date as YYYY-MM-DD (default: the current date)")
	rulesFile := fs.String("rules", "", "keyword rules file (default: KEYWORD_RULES_FILE or the built-in rules)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: pocketledger parse [flags] <text>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(text) == "" {
		fs.Usage()
		return errors.New("no text to parse")
	}

	today := civil.DateOf(time.Now())
	if *date != "" {
		d, err := civil.ParseDate(*date)
		if err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
		today = d
	}

	p, err := parser.ByName(*name)
	if err != nil {
		return err
	}
	if p.Name() == parser.KeywordName {
		cfg := config.Config{KeywordRulesFile: *rulesFile}
		if cfg.KeywordRulesFile == "" {
			if cfg, err = cf.load(); err != nil {
				return err
			}
		}
		rules, err := loadRules(cfg)
		if err != nil {
			return err
		}
		p = parser.NewKeyword(rules)
	}

	pc := parser.Context{
		Accounts:   offlineAccounts(splitList(*accounts)),
		Categories: append(append([]string{}, api.DefaultCategories...), splitList(*categories)...),
		Today:      today,
	}
	d := p.Parse(text, pc)

	out := parseOutput{Parser: p.Name(), Draft: d, Valid: true}
	if err := draft.Validate(d); err != nil {
		var verr *draft.ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		out.Valid = false
		out.Problems = verr.Problems
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// offlineAccounts gives each name a stable id so repeated runs print the
// same draft.
func offlineAccounts(names []string) []api.Account {
	accounts := make([]api.Account, 0, len(names))
	for _, name := range names {
		accounts = append(accounts, api.Account{
			ID:     uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(name))),
			Name:   name,
			Kind:   "checking",
			Active: true,
		})
	}
	return accounts
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
