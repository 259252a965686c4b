package orders

import "errors"

// Business errors surfaced by the fulfillment engine. Each reflects a
// caller precondition violation, not a transient fault; only
// ErrInvalidTransition from a concurrent race is worth a client retry
// after reloading current state.
var (
	// ErrNotFound indicates the order or item was not found.
	ErrNotFound = errors.New("orders: not found")

	// ErrInvalidTransition indicates the attempted transition is not in
	// the adjacency list, or the order's status changed underneath the
	// caller.
	ErrInvalidTransition = errors.New("orders: invalid status transition")

	// ErrMissingDeliveryDate indicates confirm without an expected
	// delivery date.
	ErrMissingDeliveryDate = errors.New("orders: expected delivery date required")

	// ErrPastDeliveryDate indicates an expected delivery date not in the
	// future.
	ErrPastDeliveryDate = errors.New("orders: expected delivery date must be in the future")

	// ErrImmutableAfterShipment indicates a quantity or date edit on an
	// order that is not editable in its current status.
	ErrImmutableAfterShipment = errors.New("orders: order is no longer editable")

	// ErrEmptyReason indicates reject/cancel without a reason.
	ErrEmptyReason = errors.New("orders: a reason is required")

	// ErrEmptyItems indicates order creation with no items.
	ErrEmptyItems = errors.New("orders: at least one item is required")

	// ErrInvalidQuantity indicates a non-positive or out-of-bounds
	// quantity.
	ErrInvalidQuantity = errors.New("orders: invalid quantity")

	// ErrWrongLocation indicates a store actor touching another store's
	// order.
	ErrWrongLocation = errors.New("orders: order belongs to a different store")

	// ErrReceiptMissing indicates a deliver call that does not account
	// for every shipped item.
	ErrReceiptMissing = errors.New("orders: received quantity required for every shipped item")
)
