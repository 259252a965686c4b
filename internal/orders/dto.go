package orders

import "time"

// CreateRequest creates a transfer order. Quantities are package units.
type CreateRequest struct {
	TargetLocationID int64           `json:"target_location_id" validate:"required,gt=0"`
	ExpectedDelivery *time.Time      `json:"expected_delivery,omitempty"`
	Notes            *string         `json:"notes,omitempty"`
	Items            []CreateItemReq `json:"items" validate:"required,min=1,dive"`
}

// CreateItemReq is one line in a create request.
type CreateItemReq struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64 `json:"unit_price" validate:"gte=0"`
}

// ConfirmRequest confirms a pending order. ExpectedDelivery may be set
// here if the store left it empty; it must end up strictly in the future.
type ConfirmRequest struct {
	ExpectedDelivery *time.Time `json:"expected_delivery,omitempty"`
}

// ItemAdjustment reports an auto-capped line to the caller.
type ItemAdjustment struct {
	ItemID    int64 `json:"item_id"`
	ProductID int64 `json:"product_id"`
	Requested int64 `json:"requested"`
	Allowed   int64 `json:"allowed"`
}

// ConfirmResult is returned from Confirm. Adjustments are surfaced, not
// merely logged.
type ConfirmResult struct {
	Order       *Order           `json:"order"`
	Adjustments []ItemAdjustment `json:"adjustments,omitempty"`
}

// DeliverItemReq carries the store-counted quantity for one item.
type DeliverItemReq struct {
	ItemID           int64 `json:"item_id" validate:"required,gt=0"`
	ReceivedQuantity int64 `json:"received_quantity" validate:"gte=0"`
}

// DeliverRequest confirms receipt at the store.
type DeliverRequest struct {
	Items       []DeliverItemReq `json:"items" validate:"required,min=1,dive"`
	ReceiveNote *string          `json:"receive_note,omitempty"`
}

// DeliveredDiscrepancy summarises one mismatched line for the caller.
type DeliveredDiscrepancy struct {
	ItemID         int64  `json:"item_id"`
	ProductID      int64  `json:"product_id"`
	ShippedQty     int64  `json:"shipped_qty"`
	ReceivedQty    int64  `json:"received_qty"`
	Classification string `json:"classification"`
}

// DeliverResult is returned from Deliver.
type DeliverResult struct {
	Order         *Order                 `json:"order"`
	Discrepancies []DeliveredDiscrepancy `json:"discrepancies,omitempty"`
}

// ReasonRequest carries the reject/cancel reason.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// ItemQuantityRequest overrides package_quantity while confirmed. Zero
// removes the line.
type ItemQuantityRequest struct {
	PackageQuantity int64 `json:"package_quantity" validate:"gte=0"`
}

// ExpectedDeliveryRequest moves the expected delivery date.
type ExpectedDeliveryRequest struct {
	ExpectedDelivery time.Time `json:"expected_delivery" validate:"required"`
}

// ListRequest filters order listings.
type ListRequest struct {
	TargetLocationID int64
	Status           Status
	DateFrom         time.Time
	DateTo           time.Time
	Limit            int
	Offset           int
}
