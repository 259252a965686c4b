// Package orders implements the warehouse-to-store transfer order
// lifecycle: reservation on confirm, stock decrement on ship, store-side
// receipt on deliver.
package orders

import (
	"time"
)

// Status represents the lifecycle of a transfer order.
type Status string

const (
	StatusPending   Status = "pending"   // created by the store, awaiting warehouse action
	StatusConfirmed Status = "confirmed" // warehouse confirmed, quantities capped and reserved
	StatusShipped   Status = "shipped"   // stock decremented, goods in transit
	StatusDelivered Status = "delivered" // store confirmed receipt
	StatusCancelled Status = "cancelled" // withdrawn by the warehouse
	StatusRejected  Status = "rejected"  // withdrawn by the store
)

// IsValid checks if the status is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRejected
}

// CanTransitionTo checks the adjacency list. Transitions are
// one-directional; the terminal set admits nothing.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusRejected || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusShipped || next == StatusCancelled
	case StatusShipped:
		return next == StatusDelivered
	default:
		return false
	}
}

// CanEditItems reports whether package quantities may still change.
func (s Status) CanEditItems() bool {
	return s == StatusConfirmed
}

// CanEditDate reports whether the expected delivery date may still change.
func (s Status) CanEditDate() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Order is a transfer order from the warehouse to one store. All item
// quantities are package units; the ledger is only ever touched in base
// units via each product's conversion factor.
type Order struct {
	ID               int64      `json:"id"`
	Code             string     `json:"code"`
	SourceLocationID int64      `json:"source_location_id"`
	TargetLocationID int64      `json:"target_location_id"`
	Status           Status     `json:"status"`
	ExpectedDelivery *time.Time `json:"expected_delivery,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	RejectionReason  *string    `json:"rejection_reason,omitempty"`
	StoreReceiveNote *string    `json:"store_receive_note,omitempty"`
	CreatedBy        int64      `json:"created_by"`
	ConfirmedBy      *int64     `json:"confirmed_by,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	ShippedAt        *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	Items            []Item     `json:"items,omitempty"`
}

// TotalAmount sums persisted item subtotals.
func (o Order) TotalAmount() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.Subtotal
	}
	return total
}

// Item is one product line on an order. Quantity is what the store asked
// for; PackageQuantity is what the warehouse will actually ship, capped
// against live stock on confirm. ReceivedQuantity is set exactly once by
// the store at receipt.
type Item struct {
	ID                int64      `json:"id"`
	OrderID           int64      `json:"order_id"`
	ProductID         int64      `json:"product_id"`
	Quantity          int64      `json:"quantity"`
	UnitPrice         float64    `json:"unit_price"`
	PackageQuantity   int64      `json:"package_quantity"`
	AutoAdjusted      bool       `json:"auto_adjusted"`
	ReceivedQuantity  *int64     `json:"received_quantity,omitempty"`
	DiscrepancyReason *string    `json:"discrepancy_reason,omitempty"`
	Subtotal          float64    `json:"subtotal"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Joined product fields used for conversions and display.
	ProductCode       string  `json:"product_code,omitempty"`
	ProductName       string  `json:"product_name,omitempty"`
	PackageConversion int64   `json:"package_conversion,omitempty"`
	BaseUnit          string  `json:"base_unit,omitempty"`
	PackageUnit       *string `json:"package_unit,omitempty"`
}
