// Package ledger holds the authoritative per (product, location) stock
// records. All quantities are base units; package-unit arithmetic lives in
// package uom.
package ledger

import (
	"errors"
	"time"
)

// Level is one ledger row: stock on hand and advisory reservation for a
// product at a location.
type Level struct {
	ProductID     int64     `json:"product_id"`
	LocationID    int64     `json:"location_id"`
	Stock         int64     `json:"stock"`
	Reserved      int64     `json:"reserved_quantity"`
	MinStockLevel int64     `json:"min_stock_level"`
	ReorderPoint  int64     `json:"reorder_point"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Available returns stock not yet claimed by a reservation.
func (l Level) Available() int64 {
	free := l.Stock - l.Reserved
	if free < 0 {
		return 0
	}
	return free
}

// MovementKind enumerates ledger mutations.
type MovementKind string

const (
	// MovementIn is an inbound stock increase (receipt, release-back).
	MovementIn MovementKind = "in"
	// MovementOut is a durable stock decrease (shipment).
	MovementOut MovementKind = "out"
	// MovementReserve marks stock as claimed without reducing it.
	MovementReserve MovementKind = "reserve"
	// MovementRelease returns a reservation to the free pool.
	MovementRelease MovementKind = "release"
	// MovementAdjust is a manual correction, positive or negative.
	MovementAdjust MovementKind = "adjust"
)

// Movement journals a single ledger mutation. Every change to a Level row
// writes one Movement in the same transaction.
type Movement struct {
	ID         int64        `json:"id"`
	ProductID  int64        `json:"product_id"`
	LocationID int64        `json:"location_id"`
	Kind       MovementKind `json:"kind"`
	Qty        int64        `json:"qty"`
	RefModule  string       `json:"ref_module,omitempty"`
	RefID      string       `json:"ref_id,omitempty"`
	Note       string       `json:"note,omitempty"`
	ActorID    int64        `json:"actor_id,omitempty"`
	PostedAt   time.Time    `json:"posted_at"`
}

// MovementFilter filters the movements journal.
type MovementFilter struct {
	ProductID  int64
	LocationID int64
	From       time.Time
	To         time.Time
	Limit      int
}

// ErrInsufficientStock is returned when a reserve or decrement asks for
// more than the row holds. During order confirmation it is non-fatal (the
// engine caps instead); during shipment it aborts the transition.
var ErrInsufficientStock = errors.New("ledger: insufficient stock")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrLevelNotFound indicates a missing ledger row.
var ErrLevelNotFound = errors.New("ledger: level not found")
