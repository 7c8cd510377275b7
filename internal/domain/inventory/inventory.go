package inventory

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrSizeNotFound      = errors.New("inventory: size not stocked")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// StockEntry is the counter for one size of a product. StockCount never goes below zero.
type StockEntry struct {
	Size       string `json:"size"`
	StockCount int    `json:"stockCount"`
}

type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Stock     []StockEntry
	UpdatedAt time.Time
}

// StockFor returns the counter for size. Sizes compare case-insensitively.
func (p *Product) StockFor(size string) (int, bool) {
	for _, e := range p.Stock {
		if strings.EqualFold(e.Size, size) {
			return e.StockCount, true
		}
	}
	return 0, false
}

// Deduct applies a conditional decrement in memory and returns the remaining count.
func (p *Product) Deduct(size string, quantity int, now time.Time) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}
	for i := range p.Stock {
		if !strings.EqualFold(p.Stock[i].Size, size) {
			continue
		}
		if quantity > p.Stock[i].StockCount {
			return p.Stock[i].StockCount, ErrInsufficientStock
		}
		p.Stock[i].StockCount -= quantity
		p.UpdatedAt = now
		return p.Stock[i].StockCount, nil
	}
	return 0, ErrSizeNotFound
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Stock = append([]StockEntry(nil), p.Stock...)
	return &clone
}

// Demand is one cart line as seen by the ledger.
type Demand struct {
	ProductID string
	Size      string
	Quantity  int
}

func (d Demand) Validate() error {
	if strings.TrimSpace(d.ProductID) == "" {
		return ErrNotFound
	}
	if d.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Availability reports whether one demand can be met right now.
type Availability struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	OK        bool   `json:"ok"`
	Reason    string `json:"reason,omitempty"`
	// Combined is the total asked for this product and size across the order, set when it
	// is what made the line short.
	Combined  int             `json:"combined,omitempty"`
	UnitPrice decimal.Decimal `json:"-"`
}

const (
	ReasonUnknownProduct = "unknown_product"
	ReasonUnknownSize    = "unknown_size"
	ReasonShort          = "insufficient_stock"
)

// Check compares a demand against a product snapshot. A nil product is unknown.
func Check(p *Product, d Demand) Availability {
	a := Availability{ProductID: d.ProductID, Size: d.Size, Requested: d.Quantity}
	if p == nil {
		a.Reason = ReasonUnknownProduct
		return a
	}
	a.UnitPrice = p.UnitPrice
	count, ok := p.StockFor(d.Size)
	if !ok {
		a.Reason = ReasonUnknownSize
		return a
	}
	a.Available = count
	a.OK = count >= d.Quantity
	if !a.OK {
		a.Reason = ReasonShort
	}
	return a
}

// CheckCombined re-checks lines that share a product and size, since they draw on one stock
// count. When their summed quantity exceeds the count every line in the group is marked short.
// report and demands must be index-aligned.
func CheckCombined(report []Availability, demands []Demand) {
	type key struct{ product, size string }
	sums := make(map[key]int, len(demands))
	for _, d := range demands {
		sums[key{d.ProductID, strings.ToLower(d.Size)}] += d.Quantity
	}
	for i, d := range demands {
		a := &report[i]
		if !a.OK {
			continue
		}
		if sum := sums[key{d.ProductID, strings.ToLower(d.Size)}]; sum > a.Available {
			a.OK = false
			a.Reason = ReasonShort
			a.Combined = sum
		}
	}
}
