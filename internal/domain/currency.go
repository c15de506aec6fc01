package domain

import "github.com/Rhymond/go-money"

// BaseCurrencies is the set of currencies imported ledgers are known to use.
// Validation accepts any ISO 4217 code the go-money registry knows; this list
// exists for reference data seeding and documentation.
var BaseCurrencies = []string{"USD", "EUR", "GBP", "JPY", "CHF", "AUD", "CAD"}

// IsRecognizedCurrency reports whether code is a known ISO 4217 currency.
func IsRecognizedCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}
