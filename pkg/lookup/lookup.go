// Package lookup caches the per-user reference lists that the parsers
// resolve markers against.
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/ArionMiles/pocketledger/pkg/api"
	"github.com/ArionMiles/pocketledger/pkg/parser"
)

// DefaultTTL is used when New is given a non-positive ttl.
const DefaultTTL = 5 * time.Minute

// Cache wraps an api.Lookup with a per-owner TTL cache. It implements
// api.Lookup itself. Returned slices are shared and must not be modified.
type Cache struct {
	source api.Lookup
	cache  *cache.Cache
	logger *slog.Logger
}

// New returns a cache in front of source.
func New(source api.Lookup, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger.With("component", "lookup"),
	}
}

func accountsKey(owner uuid.UUID) string   { return "accounts:" + owner.String() }
func categoriesKey(owner uuid.UUID) string { return "categories:" + owner.String() }

// Accounts returns the owner's active accounts.
func (c *Cache) Accounts(ctx context.Context, owner uuid.UUID) ([]api.Account, error) {
	if v, ok := c.cache.Get(accountsKey(owner)); ok {
		return v.([]api.Account), nil
	}

	accounts, err := c.source.Accounts(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("fetching accounts: %w", err)
	}
	c.cache.SetDefault(accountsKey(owner), accounts)
	c.logger.Debug("cached accounts", "owner_id", owner, "count", len(accounts))
	return accounts, nil
}

// Categories returns the default categories followed by the owner's own,
// without case-insensitive duplicates.
func (c *Cache) Categories(ctx context.Context, owner uuid.UUID) ([]string, error) {
	if v, ok := c.cache.Get(categoriesKey(owner)); ok {
		return v.([]string), nil
	}

	custom, err := c.source.Categories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("fetching categories: %w", err)
	}
	categories := mergeCategories(api.DefaultCategories, custom)
	c.cache.SetDefault(categoriesKey(owner), categories)
	c.logger.Debug("cached categories", "owner_id", owner, "count", len(categories))
	return categories, nil
}

// Context builds the parser context for owner, dated today.
func (c *Cache) Context(ctx context.Context, owner uuid.UUID, today civil.Date) (parser.Context, error) {
	accounts, err := c.Accounts(ctx, owner)
	if err != nil {
		return parser.Context{}, err
	}
	categories, err := c.Categories(ctx, owner)
	if err != nil {
		return parser.Context{}, err
	}
	return parser.Context{
		Accounts:   accounts,
		Categories: categories,
		Today:      today,
	}, nil
}

// Invalidate drops the cached lists of owner.
func (c *Cache) Invalidate(owner uuid.UUID) {
	c.cache.Delete(accountsKey(owner))
	c.cache.Delete(categoriesKey(owner))
}

func mergeCategories(defaults, custom []string) []string {
	out := make([]string, 0, len(defaults)+len(custom))
	seen := make(map[string]bool, len(defaults)+len(custom))
	for _, list := range [][]string{defaults, custom} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, name)
		}
	}
	return out
}
