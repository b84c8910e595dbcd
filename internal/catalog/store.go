package catalog

import (
	"context"
	"fmt"
	"sync"

	"pack-store/internal/model"

	"github.com/rs/zerolog"
)

// store implements Catalog over shards merged at start-up.
type store struct {
	products *mapProductSet
	logger   zerolog.Logger
	// No mutex needed - the merged set is read-only after initialisation
}

// Config holds configuration for the in-memory catalogue.
type Config struct {
	// Paths is the list of shard paths to load, in merge order.
	// A product appearing in a later shard replaces the earlier definition.
	Paths []string
}

// DefaultConfig returns the default catalogue configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: []string{
			"data/catalog/products-1.jsonl.gz",
			"data/catalog/products-2.jsonl.gz",
		},
	}
}

// New loads every configured shard concurrently and merges them into one catalogue.
func New(ctx context.Context, config *Config, loader Loader, logger zerolog.Logger) (Catalog, error) {
	if config == nil {
		config = DefaultConfig()
	}

	logger = logger.With().Str("component", "catalog").Logger()

	logger.Info().
		Int("shard_count", len(config.Paths)).
		Msg("initialising product catalogue")

	type loadResult struct {
		index int
		set   ProductSet
		err   error
	}

	resultChan := make(chan loadResult, len(config.Paths))
	var wg sync.WaitGroup

	for i, path := range config.Paths {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()

			set, err := loader.Load(ctx, path)
			resultChan <- loadResult{
				index: index,
				set:   set,
				err:   err,
			}
		}(i, path)
	}

	wg.Wait()
	close(resultChan)

	// Merge in configured order regardless of completion order
	results := make([]loadResult, len(config.Paths))
	for result := range resultChan {
		results[result.index] = result
	}

	merged := NewMapProductSet(1024).(*mapProductSet)
	for i, result := range results {
		if result.err != nil {
			logger.Error().
				Err(result.err).
				Str("shard", config.Paths[i]).
				Msg("failed to load catalogue shard")
			return nil, fmt.Errorf("failed to load catalogue shard %s: %w", config.Paths[i], result.err)
		}

		for _, p := range result.set.Products() {
			if _, exists := merged.Get(p.ID); exists {
				logger.Warn().
					Str("shard", config.Paths[i]).
					Str("product_id", p.ID).
					Msg("product redefined by later shard")
			}
			merged.Add(p)
		}

		logger.Info().
			Str("shard", config.Paths[i]).
			Int("size", result.set.Size()).
			Msg("catalogue shard merged")
	}

	logger.Info().
		Int("total_products", merged.Size()).
		Msg("product catalogue initialised successfully")

	return &store{products: merged, logger: logger}, nil
}

// NewStatic builds a catalogue from products already in memory.
func NewStatic(products []model.Product) Catalog {
	set := NewMapProductSet(len(products)).(*mapProductSet)
	for _, p := range products {
		set.Add(p)
	}
	return &store{products: set, logger: zerolog.Nop()}
}

// Get returns the product with the given ID.
func (s *store) Get(id string) (*model.Product, bool) {
	return s.products.Get(id)
}

// List returns every product in merge order.
func (s *store) List() []model.Product {
	return s.products.Products()
}
