// Package discrepancy reconciles shipped-vs-received quantities into audit
// records after a store confirms receipt.
package discrepancy

import (
	"errors"
	"time"
)

// Classification labels the shipped/received difference.
type Classification string

const (
	// ClassShortage means the store received less than was shipped.
	ClassShortage Classification = "shortage"
	// ClassExcess means the store received more than was shipped.
	ClassExcess Classification = "excess"
	// ClassNormal means quantities match; no report is filed.
	ClassNormal Classification = "normal"
)

// Classify compares shipped and received package quantities.
func Classify(shipped, received int64) Classification {
	switch {
	case received < shipped:
		return ClassShortage
	case received > shipped:
		return ClassExcess
	default:
		return ClassNormal
	}
}

// Report is one audit record, keyed unique by order item. Reports are
// append-only; a later reason edit updates the existing record.
type Report struct {
	ID             int64          `json:"id"`
	OrderID        int64          `json:"order_id"`
	OrderItemID    int64          `json:"order_item_id"`
	ProductID      int64          `json:"product_id"`
	ShippedQty     int64          `json:"shipped_qty"`
	ReceivedQty    int64          `json:"received_qty"`
	Difference     int64          `json:"difference"` // received - shipped, signed
	Classification Classification `json:"classification"`
	Reason         *string        `json:"reason,omitempty"`
	ReportedBy     int64          `json:"reported_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Filter narrows report listings.
type Filter struct {
	OrderID        int64
	Classification Classification
	From           time.Time
	To             time.Time
	Limit          int
}

var (
	// ErrEmptyReason indicates a reason upsert without text.
	ErrEmptyReason = errors.New("discrepancy: reason must not be empty")
	// ErrReportNotFound indicates no report exists for the order item.
	ErrReportNotFound = errors.New("discrepancy: report not found")
)
