// Command catalog-gen writes sample gzipped catalogue shards for local development.
package main

import (
	"compress/gzip"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"pack-store/internal/config"
	"pack-store/internal/model"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

// standardTiers is the volume ladder most box lines sell on.
var standardTiers = []model.PricingTier{
	{MinQuantity: 1, MaxQuantity: intPtr(99), Discount: decimal.Zero},
	{MinQuantity: 100, MaxQuantity: intPtr(499), Discount: decimal.NewFromInt(5)},
	{MinQuantity: 500, MaxQuantity: intPtr(999), Discount: decimal.NewFromInt(10)},
	{MinQuantity: 1000, Discount: decimal.NewFromInt(15)},
}

// Shard 2 re-declares box-sw-small with a new price to exercise merge order.
var shards = map[string][]model.Product{
	"products-1.jsonl.gz": {
		{
			ID:        "box-sw-small",
			Name:      "Single Wall Box (Small)",
			Slug:      "single-wall-box-small",
			Category:  "boxes",
			BasePrice: decimal.RequireFromString("0.85"),
			Variants: []model.Variant{
				{ID: "brown", Name: "Brown", PriceAdjustment: decimal.Zero},
				{ID: "white", Name: "White", PriceAdjustment: decimal.RequireFromString("0.12")},
			},
			PricingTiers: standardTiers,
		},
		{
			ID:           "box-dw-large",
			Name:         "Double Wall Box (Large)",
			Slug:         "double-wall-box-large",
			Category:     "boxes",
			BasePrice:    decimal.RequireFromString("2.40"),
			PricingTiers: standardTiers,
		},
		{
			ID:        "tape-48mm",
			Name:      "Packing Tape 48mm x 66m",
			Slug:      "packing-tape-48mm",
			Category:  "tape",
			BasePrice: decimal.RequireFromString("1.20"),
			Variants: []model.Variant{
				{ID: "clear", Name: "Clear", PriceAdjustment: decimal.Zero},
				{ID: "printed", Name: "Printed 'Fragile'", PriceAdjustment: decimal.RequireFromString("0.35")},
			},
		},
	},
	"products-2.jsonl.gz": {
		{
			ID:           "box-sw-small",
			Name:         "Single Wall Box (Small)",
			Slug:         "single-wall-box-small",
			Category:     "boxes",
			BasePrice:    decimal.RequireFromString("0.79"),
			PricingTiers: standardTiers,
		},
		{
			ID:        "label-a6",
			Name:      "A6 Shipping Labels",
			Slug:      "a6-shipping-labels",
			Category:  "labels",
			BasePrice: decimal.RequireFromString("0.123"),
		},
		{
			ID:        "mailer-bag-l",
			Name:      "Poly Mailer Bag (Large)",
			Slug:      "poly-mailer-bag-large",
			Category:  "mailers",
			BasePrice: decimal.RequireFromString("0.18"),
			PricingTiers: []model.PricingTier{
				{MinQuantity: 1, MaxQuantity: intPtr(249), Discount: decimal.Zero},
				{MinQuantity: 250, Discount: decimal.RequireFromString("12.5")},
			},
		},
	},
}

func main() {
	dataDir := flag.String("dir", "data/catalog", "output directory for catalogue shards")
	flag.Parse()

	logger := config.NewLogger(config.LoggerConfig{Level: "info", Format: "console"})

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", *dataDir).Msg("failed to create directory")
	}

	for filename, products := range shards {
		path := filepath.Join(*dataDir, filename)
		if err := writeShard(path, products); err != nil {
			logger.Fatal().Err(err).Str("file", path).Msg("failed to write catalogue shard")
		}
		logger.Info().Str("file", path).Int("products", len(products)).Msg("catalogue shard written")
	}
}

func writeShard(path string, products []model.Product) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	enc := json.NewEncoder(gzipWriter)
	for _, p := range products {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to encode product %s: %w", p.ID, err)
		}
	}

	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to flush shard: %w", err)
	}
	return file.Close()
}
