// Package catalog holds the static product catalog the recommender draws from.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/travel-wardrobe-service/internal/models"
)

//go:embed data/catalog.yaml
var catalogYAML []byte

// ErrProductNotFound is returned by callers that need an error for a missing id.
var ErrProductNotFound = errors.New("product not found")

// climateVocabulary and culturalVocabulary decide which tags land in
// Product.ClimateTags and Product.CulturalTags.
var climateVocabulary = map[string]bool{
	"hot": true, "cold": true, "mild": true, "summer": true, "winter": true,
	"tropical": true, "desert": true, "humid": true, "thermal": true,
	"mountain": true, "mountains": true, "waterproof": true, "sun-protection": true,
}

var culturalVocabulary = map[string]bool{
	"modest": true, "conservative": true, "traditional": true, "cultural": true,
	"religious": true, "respectful": true, "islamic": true, "formal": true,
	"business": true, "full-coverage": true, "revealing": true, "alcohol": true,
	"inappropriate-conservative": true, "inappropriate-islamic": true,
}

// Catalog is an immutable, ordered product table.
type Catalog struct {
	products []models.Product
	byID     map[string]int
}

type catalogFile struct {
	Products []models.Product `yaml:"products"`
}

// Load returns the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse builds a catalog from YAML. Ids must be unique and non-empty.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	c := &Catalog{
		products: make([]models.Product, 0, len(f.Products)),
		byID:     make(map[string]int, len(f.Products)),
	}
	for _, p := range f.Products {
		if p.ID == "" {
			return nil, fmt.Errorf("parse catalog: product %q has no id", p.Name)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate id %q", p.ID)
		}
		for i, t := range p.Tags {
			p.Tags[i] = strings.ToLower(strings.TrimSpace(t))
		}
		if p.Category == "" && len(p.Tags) > 0 {
			p.Category = p.Tags[0]
		}
		p.ClimateTags = pickTags(p.Tags, climateVocabulary)
		p.CulturalTags = pickTags(p.Tags, culturalVocabulary)
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

func pickTags(tags []string, vocab map[string]bool) []string {
	var out []string
	for _, t := range tags {
		if vocab[t] {
			out = append(out, t)
		}
	}
	return out
}

// All returns a copy of every product in catalog order.
func (c *Catalog) All() []models.Product {
	out := make([]models.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len is the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// ByID looks up a product by its exact id.
func (c *Catalog) ByID(id string) (models.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Product{}, false
	}
	return c.products[i], true
}

// IsInappropriate reports whether a product is flagged for conservative filtering.
func IsInappropriate(p models.Product) bool {
	for _, t := range p.Tags {
		if strings.Contains(t, "inappropriate") {
			return true
		}
	}
	return false
}
