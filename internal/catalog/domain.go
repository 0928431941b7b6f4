package catalog

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProductType discriminates the product variants sold by the shop.
type ProductType string

const (
	// ProductTypeLenses represents prescription lenses.
	ProductTypeLenses ProductType = "lenses"
	// ProductTypeCleanLenses represents lens cleaning products.
	ProductTypeCleanLenses ProductType = "clean_lenses"
	// ProductTypePrescriptionFrame represents frames for prescription glasses.
	ProductTypePrescriptionFrame ProductType = "prescription_frame"
	// ProductTypeSunglassesFrame represents sunglasses frames.
	ProductTypeSunglassesFrame ProductType = "sunglasses_frame"
)

// HasStock reports whether the variant carries physical stock.
// Only the two frame variants are stock-tracked; lens variants are stock-less.
func (t ProductType) HasStock() bool {
	return t == ProductTypePrescriptionFrame || t == ProductTypeSunglassesFrame
}

// Valid reports whether t is one of the known variants.
func (t ProductType) Valid() bool {
	switch t {
	case ProductTypeLenses, ProductTypeCleanLenses, ProductTypePrescriptionFrame, ProductTypeSunglassesFrame:
		return true
	}
	return false
}

// StockMode selects how UpdateStock applies the amount.
type StockMode string

const (
	StockModeAdd      StockMode = "add"
	StockModeSubtract StockMode = "subtract"
	StockModeSet      StockMode = "set"
)

// Product models a catalog entry. Frame-only fields are pointers and stay
// nil for lens variants.
type Product struct {
	ID          uuid.UUID   `json:"id"`
	Type        ProductType `json:"product_type"`
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	SellPrice   float64     `json:"sell_price"`
	CostPrice   *float64    `json:"cost_price,omitempty"`

	Color     *string `json:"color,omitempty"`
	Shape     *string `json:"shape,omitempty"`
	Reference *string `json:"reference,omitempty"`
	FrameType *string `json:"frame_type,omitempty"`
	Stock     *int    `json:"stock,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasStock reports whether this product is stock-tracked.
func (p *Product) HasStock() bool {
	return p != nil && p.Type.HasStock()
}

// StockOrZero returns the current stock, treating an absent value as zero.
func (p *Product) StockOrZero() int {
	if p == nil || p.Stock == nil {
		return 0
	}
	return *p.Stock
}

var (
	// ErrNotFound indicates the product does not exist.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrInvalidType indicates an unknown product variant.
	ErrInvalidType = errors.New("catalog: invalid product type")
)
