package catalog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"pack-store/internal/model"
	"pack-store/internal/pricing"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for reading gzipped catalogue shards from disk.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based catalogue loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "catalog-loader").Logger(),
	}
}

// Load reads a gzipped shard with one JSON product per line.
func (l *fileLoader) Load(ctx context.Context, path string) (ProductSet, error) {
	l.logger.Info().Str("file", path).Msg("loading catalogue shard")

	file, err := os.Open(path)
	if err != nil {
		l.logger.Error().Err(err).Str("file", path).Msg("failed to open catalogue shard")
		return nil, fmt.Errorf("failed to open catalogue shard %s: %w", path, err)
	}
	defer file.Close()

	set, err := decodeShard(ctx, file, path, l.logger)
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("file", path).
		Int("products_loaded", set.Size()).
		Msg("catalogue shard loaded successfully")

	return set, nil
}

// decodeShard reads gzipped JSON lines from r. Lines that do not describe a
// usable product are skipped; tier bands that overlap are dropped so the
// product sells at its base price rather than at an ambiguous discount.
func decodeShard(ctx context.Context, r io.Reader, source string, logger zerolog.Logger) (ProductSet, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		logger.Error().Err(err).Str("source", source).Msg("failed to create gzip reader")
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", source, err)
	}
	defer gzipReader.Close()

	set := NewMapProductSet(1024).(*mapProductSet)

	scanner := bufio.NewScanner(gzipReader)
	// Product lines carry variant and tier arrays and can exceed the default token size.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			select {
			case <-ctx.Done():
				logger.Warn().Str("source", source).Msg("catalogue loading cancelled")
				return nil, ctx.Err()
			default:
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var p model.Product
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			logger.Warn().Err(err).Str("source", source).Int("line", lineNo).Msg("skipping malformed product")
			continue
		}
		if p.ID == "" || p.BasePrice.IsNegative() {
			logger.Warn().Str("source", source).Int("line", lineNo).Str("product_id", p.ID).Msg("skipping invalid product")
			continue
		}

		tiers, err := pricing.NormalizeTiers(p.PricingTiers)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("source", source).
				Str("product_id", p.ID).
				Msg("dropping pricing tiers for product")
			tiers = nil
		}
		p.PricingTiers = tiers

		set.Add(p)
	}

	if err := scanner.Err(); err != nil {
		logger.Error().Err(err).Str("source", source).Msg("error reading catalogue shard")
		return nil, fmt.Errorf("error reading catalogue shard %s: %w", source, err)
	}

	return set, nil
}
