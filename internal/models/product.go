// internal/models/product.go
package models

import (
	"sort"
	"strings"
)

// Product is one active catalog row. Optional numeric columns are pointers so
// that a blank cell stays distinguishable from zero.
type Product struct {
	ID                string   `json:"id"`
	Brand             string   `json:"brand"`
	Name              string   `json:"name"`
	Price             *float64 `json:"price,omitempty"`
	PricePerKg        *float64 `json:"pricePerKg,omitempty"`
	WeightKg          *float64 `json:"weightKg,omitempty"`
	ProteinPerServing *float64 `json:"proteinPerServing,omitempty"`
	ServingSize       *float64 `json:"servingSize,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	ImageURL          string   `json:"imageUrl,omitempty"`
	ExternalURL       string   `json:"externalUrl,omitempty"`

	// Purity is derived once per snapshot; nil when serving size is missing or zero.
	Purity *float64 `json:"purity,omitempty"`
}

// HasTag reports whether any tag contains the given needle (case-sensitive).
func (p *Product) HasTag(needle string) bool {
	if needle == "" {
		return false
	}
	for _, t := range p.Tags {
		if strings.Contains(t, needle) {
			return true
		}
	}
	return false
}

// Catalog is a read-only snapshot shared by every session.
type Catalog struct {
	Products []Product `json:"products"`
	LoadedAt int64     `json:"loadedAt"`
	Source   string    `json:"source"`

	index map[string]int
}

// NewCatalog builds a snapshot preserving the natural row order.
func NewCatalog(products []Product, source string, loadedAt int64) *Catalog {
	c := &Catalog{Products: products, Source: source, LoadedAt: loadedAt}
	c.reindex()
	return c
}

func (c *Catalog) reindex() {
	c.index = make(map[string]int, len(c.Products))
	for i, p := range c.Products {
		if _, exists := c.index[p.ID]; !exists {
			c.index[p.ID] = i
		}
	}
}

// Len is nil-safe.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Products)
}

// ByID returns the product with the given identifier.
func (c *Catalog) ByID(id string) (*Product, bool) {
	if c == nil || id == "" {
		return nil, false
	}
	if c.index == nil {
		for i := range c.Products {
			if c.Products[i].ID == id {
				return &c.Products[i], true
			}
		}
		return nil, false
	}
	i, ok := c.index[id]
	if !ok {
		return nil, false
	}
	return &c.Products[i], true
}

// HasBrand reports whether at least one row carries the brand.
func (c *Catalog) HasBrand(brand string) bool {
	return len(c.ProductsByBrand(brand)) > 0
}

// ProductsByBrand returns the brand's rows in catalog order.
func (c *Catalog) ProductsByBrand(brand string) []Product {
	if c == nil || brand == "" {
		return nil
	}
	var out []Product
	for _, p := range c.Products {
		if p.Brand == brand {
			out = append(out, p)
		}
	}
	return out
}

// Brands returns the distinct brands, sorted.
func (c *Catalog) Brands() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range c.Products {
		if p.Brand == "" || seen[p.Brand] {
			continue
		}
		seen[p.Brand] = true
		out = append(out, p.Brand)
	}
	sort.Strings(out)
	return out
}
