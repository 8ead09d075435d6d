// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"github.com/shopspring/decimal"
)

// ErrorResponse is the body rendered for AppErrors.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Money converts a decimal amount to a JSON number. Amounts are display
// values here; arithmetic stays in decimal inside the domain.
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
