package models

import "github.com/shopspring/decimal"

// Stock is one catalog entry as returned by search and detail calls.
// CurrentPrice is only valid once a detail lookup has filled it in.
type Stock struct {
	Symbol       string              `json:"symbol"`
	CompanyName  string              `json:"companyName"`
	CurrentPrice decimal.NullDecimal `json:"currentPrice"`
}

// HasPrice reports whether the price has been resolved.
func (s Stock) HasPrice() bool {
	return s.CurrentPrice.Valid
}

// PriceOf builds a resolved price value.
func PriceOf(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Symbols returns the symbols of stocks in order.
func Symbols(stocks []Stock) []string {
	out := make([]string, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, s.Symbol)
	}
	return out
}
