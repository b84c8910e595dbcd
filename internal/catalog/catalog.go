// Package catalog serves product, variant and pricing-tier data to the
// checkout core. Products are published by the CMS as gzipped JSON-lines
// shards, either on local disk or in S3, and held in memory once loaded.
package catalog

import (
	"context"

	"pack-store/internal/model"
)

// Catalog is the read-only product lookup used by pricing and checkout.
type Catalog interface {
	// Get returns the product with the given ID.
	Get(id string) (*model.Product, bool)

	// List returns every product in load order.
	List() []model.Product
}

// ProductSet is the contents of one catalogue shard.
type ProductSet interface {
	// Get returns the product with the given ID.
	Get(id string) (*model.Product, bool)

	// Products returns the shard's products in file order.
	Products() []model.Product

	// Size returns the number of products in the set.
	Size() int
}

// Loader defines the interface for loading catalogue shards.
type Loader interface {
	// Load reads a gzipped JSON-lines shard and returns its products.
	Load(ctx context.Context, path string) (ProductSet, error)
}
