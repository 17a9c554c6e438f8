package scanning

import "context"

// ReceiptData contains extracted information from a receipt
type ReceiptData struct {
	ParsedText string
	Vendor     string
	Amount     float64
	Currency   string
	Category   string
	Items      []LineItem
	Warranty   *WarrantyTerm // nil when the receipt mentions no warranty
	EcoScore   float64
}

// LineItem is one purchased item found on a receipt
type LineItem struct {
	Name      string
	Quantity  int
	Price     float64
	Category  string
	EcoImpact float64
}

// WarrantyTerm is the warranty length printed on a receipt
type WarrantyTerm struct {
	Period string // as displayed, e.g. "2 years"
	Months int
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts its content
	ScanReceipt(ctx context.Context, data []byte, contentType string) (*ReceiptData, error)
	// Close closes the scanner and releases resources
	Close() error
}
