package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk shape of a catalog seed:
//
//	products:
//	  - id: p-espresso
//	    name: Espresso
//	    category: coffee
//	    sale_price: 2.50
//	    cost_price: 0.80
//	    vat_rate: 0.10
//	    stock: 120
//	    critical_stock: 10
type seedFile struct {
	Products []seedProduct `yaml:"products"`
}

type seedProduct struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	Category      string  `yaml:"category"`
	SalePrice     float64 `yaml:"sale_price"`
	CostPrice     float64 `yaml:"cost_price"`
	VatRate       float64 `yaml:"vat_rate"`
	Stock         int     `yaml:"stock"`
	CriticalStock int     `yaml:"critical_stock"`
	Inactive      bool    `yaml:"inactive"`
}

// LoadSeed parses a YAML product list.
func LoadSeed(r io.Reader) ([]Product, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode catalog seed: %w", err)
	}

	products := make([]Product, 0, len(f.Products))
	for i, sp := range f.Products {
		p := Product{
			ID:            ProductID(sp.ID),
			Name:          sp.Name,
			Category:      sp.Category,
			SalePrice:     decimal.NewFromFloat(sp.SalePrice),
			CostPrice:     decimal.NewFromFloat(sp.CostPrice),
			VatRate:       decimal.NewFromFloat(sp.VatRate),
			StockOnHand:   sp.Stock,
			CriticalStock: sp.CriticalStock,
			IsActive:      !sp.Inactive,
		}
		if err := Validate(p); err != nil {
			return nil, fmt.Errorf("seed product #%d: %w", i, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// SeedFromFile loads path and upserts every product into c.
// Returns the number of products written.
func SeedFromFile(ctx context.Context, c Catalog, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open catalog seed: %w", err)
	}
	defer f.Close()

	products, err := LoadSeed(f)
	if err != nil {
		return 0, err
	}
	for _, p := range products {
		if err := c.Upsert(ctx, p); err != nil {
			return 0, fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}
	}
	return len(products), nil
}
