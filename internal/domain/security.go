package domain

// Instrument type constants.
const (
	InstrumentStock = "STOCK"
	InstrumentETF   = "ETF"
	InstrumentFund  = "FUND"
)

// Security is a tradable instrument. Reference data, read-only to the engine.
type Security struct {
	ID             string
	Symbol         string
	Name           string
	InstrumentType string
	Currency       string
}
