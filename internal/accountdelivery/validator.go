package accountdelivery

import (
	"github.com/go-petr/ledger-engine/pkg/currencypkg"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidCurrency validates whether the currency is supported.
var ValidCurrency validator.Func = func(fl validator.FieldLevel) bool {
	if c, ok := fl.Field().Interface().(string); ok {
		return currencypkg.IsSupportedCurrency(c)
	}
	return false
}

// ValidBalance validates that the balance is a non-negative decimal string.
var ValidBalance validator.Func = func(fl validator.FieldLevel) bool {
	b, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	balance, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}

	return !balance.IsNegative()
}
