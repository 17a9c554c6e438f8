package receipt

import (
	"encoding/json"
	"fmt"
	"time"
)

// ExpiringWindow is how close to its expiry a warranty must be to count as expiring
const ExpiringWindow = 30 * 24 * time.Hour

// Receipt represents an uploaded receipt with its parsed content
type Receipt struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	UploadDate   time.Time `json:"uploadDate"`
	ParsedText   string    `json:"parsedText"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Vendor       string    `json:"vendor"`
	Category     string    `json:"category"`
	Items        []Item    `json:"items"`
	Warranty     Warranty  `json:"warrantyInfo"`
	EcoScore     float64   `json:"ecoScore"`
}

// Item is a single line item on a receipt
type Item struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Category  string  `json:"category"`
	EcoImpact float64 `json:"ecoImpact"`
}

// ItemTotal returns the sum of price times quantity over all items
func (r Receipt) ItemTotal() float64 {
	var total float64
	for _, item := range r.Items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// clone returns a copy that shares no memory with r
func (r Receipt) clone() Receipt {
	if r.Items != nil {
		items := make([]Item, len(r.Items))
		copy(items, r.Items)
		r.Items = items
	}
	if c, ok := r.Warranty.Coverage(); ok {
		r.Warranty = Covered(c)
	}
	return r
}

// Coverage describes an active warranty
type Coverage struct {
	Period     string
	Expiry     time.Time
	IsExpiring bool
}

// Warranty is either no warranty (the zero value) or a Coverage
type Warranty struct {
	coverage *Coverage
}

// NoWarranty returns a Warranty without coverage
func NoWarranty() Warranty {
	return Warranty{}
}

// Covered returns a Warranty with the given coverage
func Covered(c Coverage) Warranty {
	return Warranty{coverage: &c}
}

// Coverage returns the coverage and whether there is one
func (w Warranty) Coverage() (Coverage, bool) {
	if w.coverage == nil {
		return Coverage{}, false
	}
	return *w.coverage, true
}

// HasWarranty reports whether the receipt carries a warranty
func (w Warranty) HasWarranty() bool {
	return w.coverage != nil
}

// withExpiring returns a copy with IsExpiring evaluated at now
func (w Warranty) withExpiring(now time.Time) Warranty {
	c, ok := w.Coverage()
	if !ok {
		return w
	}
	left := c.Expiry.Sub(now)
	c.IsExpiring = !c.Expiry.IsZero() && left > 0 && left <= ExpiringWindow
	return Covered(c)
}

type warrantyJSON struct {
	HasWarranty    bool       `json:"hasWarranty"`
	WarrantyPeriod string     `json:"warrantyPeriod,omitempty"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
	IsExpiring     *bool      `json:"isExpiring,omitempty"`
}

// MarshalJSON encodes the warranty as {"hasWarranty": ...} plus coverage fields
func (w Warranty) MarshalJSON() ([]byte, error) {
	c, ok := w.Coverage()
	if !ok {
		return json.Marshal(warrantyJSON{})
	}
	out := warrantyJSON{
		HasWarranty:    true,
		WarrantyPeriod: c.Period,
		IsExpiring:     &c.IsExpiring,
	}
	if !c.Expiry.IsZero() {
		expiry := c.Expiry
		out.ExpiryDate = &expiry
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON
func (w *Warranty) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*w = NoWarranty()
		return nil
	}
	var in warrantyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("unmarshaling warranty: %w", err)
	}
	if !in.HasWarranty {
		*w = NoWarranty()
		return nil
	}
	c := Coverage{Period: in.WarrantyPeriod}
	if in.ExpiryDate != nil {
		c.Expiry = *in.ExpiryDate
	}
	if in.IsExpiring != nil {
		c.IsExpiring = *in.IsExpiring
	}
	*w = Covered(c)
	return nil
}
