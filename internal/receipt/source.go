package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/zombor/eco-receipts/internal/latency"
)

// Source provides the initial receipt collection
type Source interface {
	Receipts(ctx context.Context) ([]Receipt, error)
}

// SeedSource serves a fixed set of receipts after an artificial delay
type SeedSource struct {
	Delay    time.Duration
	receipts []Receipt
}

// NewSeedSource creates a SeedSource with the demo receipts
func NewSeedSource(delay time.Duration) *SeedSource {
	return &SeedSource{Delay: delay, receipts: demoReceipts()}
}

// NewStaticSource creates a SeedSource serving the given receipts without delay
func NewStaticSource(receipts []Receipt) *SeedSource {
	return &SeedSource{receipts: receipts}
}

// Receipts returns a copy of the seed
func (s *SeedSource) Receipts(ctx context.Context) ([]Receipt, error) {
	if err := latency.Sleep(ctx, s.Delay); err != nil {
		return nil, err
	}
	out := make([]Receipt, len(s.receipts))
	for i, r := range s.receipts {
		out[i] = r.clone()
	}
	return out, nil
}

// FileSource reads receipts from a JSON export
type FileSource struct {
	Path string
}

// Receipts reads and decodes the file
func (f FileSource) Receipts(ctx context.Context) ([]Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	var receipts []Receipt
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, fmt.Errorf("decoding seed file %s: %w", f.Path, err)
	}
	return receipts, nil
}

func demoReceipts() []Receipt {
	return []Receipt{
		{
			ID:           "1",
			UserID:       "1",
			Filename:     "receipt1.jpg",
			OriginalName: "grocery-receipt-2024.jpg",
			UploadDate:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			ParsedText:   "WHOLE FOODS MARKET\nBANANAS ORGANIC 2.5 LB $4.99\nALMOND MILK UNSWEETENED $3.49\nTOTAL: $8.48",
			Amount:       8.48,
			Currency:     "USD",
			Vendor:       "Whole Foods Market",
			Category:     "Groceries",
			Items: []Item{
				{Name: "Bananas Organic", Quantity: 1, Price: 4.99, Category: "Produce", EcoImpact: 9},
				{Name: "Almond Milk Unsweetened", Quantity: 1, Price: 3.49, Category: "Dairy Alternative", EcoImpact: 7},
			},
			Warranty: NoWarranty(),
			EcoScore: 8.0,
		},
		{
			ID:           "2",
			UserID:       "1",
			Filename:     "receipt2.jpg",
			OriginalName: "electronics-store.jpg",
			UploadDate:   time.Date(2024, 1, 10, 14, 20, 0, 0, time.UTC),
			ParsedText:   "BEST BUY\nWIRELESS HEADPHONES $99.99\nWARRANTY: 2 YEARS\nTOTAL: $99.99",
			Amount:       99.99,
			Currency:     "USD",
			Vendor:       "Best Buy",
			Category:     "Electronics",
			Items: []Item{
				{Name: "Wireless Headphones", Quantity: 1, Price: 99.99, Category: "Electronics", EcoImpact: 3},
			},
			Warranty: Covered(Coverage{
				Period: "2 years",
				Expiry: time.Date(2026, 1, 10, 14, 20, 0, 0, time.UTC),
			}),
			EcoScore: 3.0,
		},
		{
			ID:           "3",
			UserID:       "1",
			Filename:     "receipt3.jpg",
			OriginalName: "restaurant-bill.jpg",
			UploadDate:   time.Date(2024, 1, 12, 19, 45, 0, 0, time.UTC),
			ParsedText:   "GREEN LEAF CAFE\nQUINOA SALAD $12.99\nKOMBUCHA $4.99\nTOTAL: $17.98",
			Amount:       17.98,
			Currency:     "USD",
			Vendor:       "Green Leaf Cafe",
			Category:     "Restaurant",
			Items: []Item{
				{Name: "Quinoa Salad", Quantity: 1, Price: 12.99, Category: "Food", EcoImpact: 8},
				{Name: "Kombucha", Quantity: 1, Price: 4.99, Category: "Beverage", EcoImpact: 7},
			},
			Warranty: NoWarranty(),
			EcoScore: 7.5,
		},
	}
}
