package catalog

import "time"

// Product represents a sellable product. PackageConversion is the number of
// base units in one package unit; 0 or 1 means the product has no package
// unit.
type Product struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	BaseUnit          string    `json:"base_unit"`
	PackageUnit       *string   `json:"package_unit,omitempty"`
	PackageConversion int64     `json:"package_conversion"`
	Price             float64   `json:"price"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// LocationKind distinguishes the central warehouse from retail stores.
type LocationKind string

const (
	LocationWarehouse LocationKind = "warehouse"
	LocationStore     LocationKind = "store"
)

// Location is a stock-keeping site: the warehouse or one of the stores.
type Location struct {
	ID        int64        `json:"id"`
	Code      string       `json:"code"`
	Name      string       `json:"name"`
	Kind      LocationKind `json:"kind"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}
