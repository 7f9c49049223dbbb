package models

import "fmt"

// Money mirrors the Online Boutique price shape (whole units plus nanos).
type Money struct {
	CurrencyCode string `json:"currencyCode" yaml:"currency_code"`
	Units        int64  `json:"units" yaml:"units"`
	Nanos        int32  `json:"nanos" yaml:"nanos"`
}

// Amount returns the price as a float for range filtering.
func (m Money) Amount() float64 {
	return float64(m.Units) + float64(m.Nanos)/1e9
}

func (m Money) String() string {
	if m.CurrencyCode == "" && m.Units == 0 && m.Nanos == 0 {
		return "Price unavailable"
	}
	symbol := "$"
	if m.CurrencyCode != "" && m.CurrencyCode != "USD" {
		symbol = m.CurrencyCode + " "
	}
	return fmt.Sprintf("%s%.2f", symbol, m.Amount())
}

// Product is a catalog item. Tags carry every label; ClimateTags and
// CulturalTags are the subsets the filters care about.
type Product struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Description  string   `json:"description" yaml:"description"`
	Picture      string   `json:"picture" yaml:"picture"`
	Price        Money    `json:"priceUsd" yaml:"price"`
	Category     string   `json:"category" yaml:"category"`
	Tags         []string `json:"tags" yaml:"tags"`
	ClimateTags  []string `json:"climateTags,omitempty" yaml:"-"`
	CulturalTags []string `json:"culturalTags,omitempty" yaml:"-"`
}

// HasTag reports whether the product carries tag exactly.
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
