package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/meridian-retail/backoffice/internal/catalog"
	"github.com/meridian-retail/backoffice/internal/discrepancy"
	"github.com/meridian-retail/backoffice/internal/ledger"
	"github.com/meridian-retail/backoffice/internal/shared"
	"github.com/meridian-retail/backoffice/internal/uom"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, req ListRequest) ([]Order, int, error)
}

// CatalogPort supplies the product and location lookups the engine needs.
type CatalogPort interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
	GetLocation(ctx context.Context, id int64) (catalog.Location, error)
	Warehouse(ctx context.Context) (catalog.Location, error)
}

// DiscrepancyPort files reconciliation records after delivery.
type DiscrepancyPort interface {
	File(ctx context.Context, inputs []discrepancy.Input) ([]discrepancy.Report, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SnapshotPort invalidates cached per-location stock views after a write.
type SnapshotPort interface {
	Invalidate(ctx context.Context, locationID int64)
}

// Service drives the transfer order lifecycle. Every stock-touching
// transition runs the order update and the ledger mutation in one
// database transaction.
type Service struct {
	logger        *slog.Logger
	repo          RepositoryPort
	catalog       CatalogPort
	keeper        *ledger.Keeper
	discrepancies DiscrepancyPort
	audit         AuditPort
	idempotency   *shared.IdempotencyStore
	snapshots     SnapshotPort
	clock         func() time.Time
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, cat CatalogPort, keeper *ledger.Keeper,
	disc DiscrepancyPort, audit AuditPort, idem *shared.IdempotencyStore, snapshots SnapshotPort) *Service {
	return &Service{
		logger:        logger,
		repo:          repo,
		catalog:       cat,
		keeper:        keeper,
		discrepancies: disc,
		audit:         audit,
		idempotency:   idem,
		snapshots:     snapshots,
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) now() time.Time { return s.clock() }

func (s *Service) auditRecord(ctx context.Context, actor shared.Actor, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "order",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", "action", action, "order_id", orderID, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, locationID int64) {
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, locationID)
	}
}

// guardStore rejects store actors touching another store's order. Warehouse
// and admin actors see everything.
func guardStore(actor shared.Actor, order *Order) error {
	if actor.Role == shared.RoleStore && actor.LocationID != order.TargetLocationID {
		return ErrWrongLocation
	}
	return nil
}

func orderRef(order *Order, note string, actorID int64) ledger.Ref {
	return ledger.Ref{Module: "orders", ID: order.Code, Note: note, ActorID: actorID}
}

// Create registers a pending transfer order for the actor's store. Stock is
// not touched until confirmation. requestKey, when non-empty, makes the call
// idempotent.
func (s *Service) Create(ctx context.Context, req CreateRequest, requestKey string) (*Order, error) {
	actor, _ := shared.ActorFromContext(ctx)
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if actor.Role == shared.RoleStore && actor.LocationID != req.TargetLocationID {
		return nil, ErrWrongLocation
	}

	target, err := s.catalog.GetLocation(ctx, req.TargetLocationID)
	if err != nil {
		return nil, fmt.Errorf("orders: target location: %w", err)
	}
	if target.Kind != catalog.LocationStore {
		return nil, fmt.Errorf("orders: %w: target must be a store", ErrWrongLocation)
	}
	warehouse, err := s.catalog.Warehouse(ctx)
	if err != nil {
		return nil, fmt.Errorf("orders: warehouse lookup: %w", err)
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("orders: load products: %w", err)
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, fmt.Errorf("orders: product %d: %w", id, shared.ErrNotFound)
		}
	}

	if s.idempotency != nil && requestKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, requestKey, "orders"); err != nil {
			return nil, err
		}
	}

	var orderID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		code, err := tx.NextCode(ctx)
		if err != nil {
			return err
		}
		order := Order{
			Code:             code,
			SourceLocationID: warehouse.ID,
			TargetLocationID: target.ID,
			Status:           StatusPending,
			ExpectedDelivery: req.ExpectedDelivery,
			Notes:            req.Notes,
			CreatedBy:        actor.ID,
		}
		orderID, err = tx.InsertOrder(ctx, order)
		if err != nil {
			return fmt.Errorf("orders: insert order: %w", err)
		}
		for _, line := range req.Items {
			product := products[line.ProductID]
			price := line.UnitPrice
			if price == 0 {
				price = product.Price
			}
			item := Item{
				OrderID:         orderID,
				ProductID:       line.ProductID,
				Quantity:        line.Quantity,
				UnitPrice:       price,
				PackageQuantity: line.Quantity,
				Subtotal:        price * float64(line.Quantity),
			}
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("orders: insert item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if s.idempotency != nil && requestKey != "" {
			_ = s.idempotency.Delete(ctx, requestKey)
		}
		return nil, err
	}

	s.auditRecord(ctx, actor, "orders.create", orderID, map[string]any{"target": target.ID, "items": len(req.Items)})
	return s.repo.GetByID(ctx, orderID)
}

// Confirm moves a pending order to confirmed. Each line is capped to the
// whole packages the warehouse can actually cover, capped lines are flagged
// and surfaced, and the shippable quantities are reserved against warehouse
// stock. The expected delivery date must be set and strictly in the future.
func (s *Service) Confirm(ctx context.Context, orderID int64, req ConfirmRequest) (*ConfirmResult, error) {
	actor, _ := shared.ActorFromContext(ctx)

	var (
		adjustments []ItemAdjustment
		sourceID    int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(StatusConfirmed) {
			return fmt.Errorf("%w: %s -> confirmed", ErrInvalidTransition, order.Status)
		}

		expected := order.ExpectedDelivery
		if req.ExpectedDelivery != nil {
			expected = req.ExpectedDelivery
		}
		if expected == nil {
			return ErrMissingDeliveryDate
		}
		if !expected.After(s.now()) {
			return ErrPastDeliveryDate
		}

		sourceID = order.SourceLocationID
		now := s.now()
		for _, item := range order.Items {
			factor := uom.Normalize(item.PackageConversion)
			allowed, err := s.keeper.Cap(ctx, tx.Ledger(), item.PackageQuantity, item.ProductID, order.SourceLocationID, factor)
			if err != nil {
				return err
			}
			if allowed != item.PackageQuantity {
				adjustments = append(adjustments, ItemAdjustment{
					ItemID:    item.ID,
					ProductID: item.ProductID,
					Requested: item.PackageQuantity,
					Allowed:   allowed,
				})
				subtotal := item.UnitPrice * float64(allowed)
				if err := tx.UpdateItemPackageQty(ctx, item.ID, allowed, true, subtotal); err != nil {
					return fmt.Errorf("orders: cap item %d: %w", item.ID, err)
				}
			}
			if allowed > 0 {
				ref := orderRef(order, "confirm reservation", actor.ID)
				if err := s.keeper.Reserve(ctx, tx.Ledger(), item.ProductID, order.SourceLocationID, uom.ToBase(allowed, factor), ref); err != nil {
					return err
				}
			}
		}

		return tx.UpdateStatus(ctx, orderID, StatusPending, StatusConfirmed, map[string]any{
			"expected_delivery": *expected,
			"confirmed_by":      actor.ID,
			"confirmed_at":      now,
		})
	})
	if err != nil {
		return nil, err
	}

	for _, adj := range adjustments {
		s.logger.Info("order line capped", "order_id", orderID, "adjustment", AdjustmentSummary(adj))
	}
	s.auditRecord(ctx, actor, "orders.confirm", orderID, map[string]any{"adjusted_items": len(adjustments)})
	s.invalidate(ctx, sourceID)

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Order: order, Adjustments: adjustments}, nil
}

// Ship moves a confirmed order to shipped and durably deducts warehouse
// stock for every non-zero line, all or nothing. Lines capped to zero at
// confirmation are skipped.
func (s *Service) Ship(ctx context.Context, orderID int64) (*Order, error) {
	actor, _ := shared.ActorFromContext(ctx)

	var sourceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(StatusShipped) {
			return fmt.Errorf("%w: %s -> shipped", ErrInvalidTransition, order.Status)
		}

		sourceID = order.SourceLocationID
		for _, item := range order.Items {
			if item.PackageQuantity == 0 {
				continue
			}
			factor := uom.Normalize(item.PackageConversion)
			ref := orderRef(order, "shipment", actor.ID)
			if err := s.keeper.Decrement(ctx, tx.Ledger(), item.ProductID, order.SourceLocationID, uom.ToBase(item.PackageQuantity, factor), ref); err != nil {
				return err
			}
		}

		return tx.UpdateStatus(ctx, orderID, StatusConfirmed, StatusShipped, map[string]any{
			"shipped_at": s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.auditRecord(ctx, actor, "orders.ship", orderID, nil)
	s.invalidate(ctx, sourceID)
	return s.repo.GetByID(ctx, orderID)
}

// Deliver records the store's counted quantities, moves the order to
// delivered, and adds the received stock to the store's ledger. Every
// shipped line must be counted; received quantities are write-once.
// Discrepancy reports are filed after the transaction commits.
func (s *Service) Deliver(ctx context.Context, orderID int64, req DeliverRequest) (*DeliverResult, error) {
	actor, _ := shared.ActorFromContext(ctx)

	counted := make(map[int64]int64, len(req.Items))
	for _, line := range req.Items {
		if line.ReceivedQuantity < 0 {
			return nil, ErrInvalidQuantity
		}
		counted[line.ItemID] = line.ReceivedQuantity
	}

	var (
		inputs   []discrepancy.Input
		targetID int64
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := guardStore(actor, order); err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(StatusDelivered) {
			return fmt.Errorf("%w: %s -> delivered", ErrInvalidTransition, order.Status)
		}

		targetID = order.TargetLocationID
		inputs = inputs[:0]
		for _, item := range order.Items {
			if item.PackageQuantity == 0 {
				continue
			}
			received, ok := counted[item.ID]
			if !ok {
				return fmt.Errorf("%w: item %d", ErrReceiptMissing, item.ID)
			}
			set, err := tx.SetItemReceived(ctx, item.ID, received)
			if err != nil {
				return fmt.Errorf("orders: record receipt for item %d: %w", item.ID, err)
			}
			if !set {
				return fmt.Errorf("%w: item %d already counted", ErrInvalidTransition, item.ID)
			}
			if received > 0 {
				factor := uom.Normalize(item.PackageConversion)
				ref := orderRef(order, "store receipt", actor.ID)
				if err := s.keeper.Increment(ctx, tx.Ledger(), item.ProductID, order.TargetLocationID, uom.ToBase(received, factor), ref); err != nil {
					return err
				}
			}
			inputs = append(inputs, discrepancy.Input{
				OrderID:     order.ID,
				OrderItemID: item.ID,
				ProductID:   item.ProductID,
				ShippedQty:  item.PackageQuantity,
				ReceivedQty: received,
				ReportedBy:  actor.ID,
			})
		}

		fields := map[string]any{"delivered_at": s.now()}
		if req.ReceiveNote != nil {
			fields["store_receive_note"] = *req.ReceiveNote
		}
		return tx.UpdateStatus(ctx, orderID, StatusShipped, StatusDelivered, fields)
	})
	if err != nil {
		return nil, err
	}

	var discrepancies []DeliveredDiscrepancy
	if s.discrepancies != nil {
		filed, err := s.discrepancies.File(ctx, inputs)
		if err != nil {
			// The delivery itself is committed; reconciliation can be
			// replayed from the order items.
			s.logger.Error("filing discrepancy reports failed", "order_id", orderID, "error", err)
		}
		for _, rep := range filed {
			discrepancies = append(discrepancies, DeliveredDiscrepancy{
				ItemID:         rep.OrderItemID,
				ProductID:      rep.ProductID,
				ShippedQty:     rep.ShippedQty,
				ReceivedQty:    rep.ReceivedQty,
				Classification: string(rep.Classification),
			})
		}
	}

	s.auditRecord(ctx, actor, "orders.deliver", orderID, map[string]any{"discrepancies": len(discrepancies)})
	s.invalidate(ctx, targetID)

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &DeliverResult{Order: order, Discrepancies: discrepancies}, nil
}

// Reject lets the store withdraw its own pending order. A reason is
// mandatory. Nothing is reserved yet, so the ledger is untouched.
func (s *Service) Reject(ctx context.Context, orderID int64, req ReasonRequest) (*Order, error) {
	actor, _ := shared.ActorFromContext(ctx)
	if req.Reason == "" {
		return nil, ErrEmptyReason
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := guardStore(actor, order); err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(StatusRejected) {
			return fmt.Errorf("%w: %s -> rejected", ErrInvalidTransition, order.Status)
		}
		return tx.UpdateStatus(ctx, orderID, order.Status, StatusRejected, map[string]any{
			"rejection_reason": req.Reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.auditRecord(ctx, actor, "orders.reject", orderID, map[string]any{"reason": req.Reason})
	return s.repo.GetByID(ctx, orderID)
}

// Cancel lets the warehouse withdraw a pending or confirmed order. A reason
// is mandatory and is appended to the order notes. Reservations taken at
// confirmation are released.
func (s *Service) Cancel(ctx context.Context, orderID int64, req ReasonRequest) (*Order, error) {
	actor, _ := shared.ActorFromContext(ctx)
	if req.Reason == "" {
		return nil, ErrEmptyReason
	}

	var sourceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(StatusCancelled) {
			return fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, order.Status)
		}

		if order.Status == StatusConfirmed {
			sourceID = order.SourceLocationID
			for _, item := range order.Items {
				if item.PackageQuantity == 0 {
					continue
				}
				factor := uom.Normalize(item.PackageConversion)
				ref := orderRef(order, "cancellation release", actor.ID)
				if err := s.keeper.Release(ctx, tx.Ledger(), item.ProductID, order.SourceLocationID, uom.ToBase(item.PackageQuantity, factor), ref); err != nil {
					return err
				}
			}
		}

		notes := "cancelled: " + req.Reason
		if order.Notes != nil && *order.Notes != "" {
			notes = *order.Notes + "\n" + notes
		}
		return tx.UpdateStatus(ctx, orderID, order.Status, StatusCancelled, map[string]any{
			"notes": notes,
		})
	})
	if err != nil {
		return nil, err
	}

	s.auditRecord(ctx, actor, "orders.cancel", orderID, map[string]any{"reason": req.Reason})
	if sourceID != 0 {
		s.invalidate(ctx, sourceID)
	}
	return s.repo.GetByID(ctx, orderID)
}

// UpdateItemQuantity changes a confirmed line's package quantity and moves
// the reservation by the difference. Zero removes the line and releases its
// reservation in full. An increase is accepted only when the new total is
// deliverable from current stock; it fails rather than silently capping,
// since the explicit edit is a human decision.
func (s *Service) UpdateItemQuantity(ctx context.Context, orderID, itemID int64, req ItemQuantityRequest) (*Order, error) {
	actor, _ := shared.ActorFromContext(ctx)
	if req.PackageQuantity < 0 {
		return nil, ErrInvalidQuantity
	}

	var sourceID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanEditItems() {
			return ErrImmutableAfterShipment
		}

		var item *Item
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				item = &order.Items[i]
				break
			}
		}
		if item == nil {
			return fmt.Errorf("orders: item %d: %w", itemID, ErrNotFound)
		}
		if req.PackageQuantity > item.Quantity {
			return fmt.Errorf("%w: more than the %d packages ordered", ErrInvalidQuantity, item.Quantity)
		}

		sourceID = order.SourceLocationID
		factor := uom.Normalize(item.PackageConversion)
		delta := req.PackageQuantity - item.PackageQuantity
		ref := orderRef(order, "quantity edit", actor.ID)
		switch {
		case delta > 0:
			allowed, err := s.keeper.Cap(ctx, tx.Ledger(), req.PackageQuantity, item.ProductID, order.SourceLocationID, factor)
			if err != nil {
				return err
			}
			if allowed < req.PackageQuantity {
				return fmt.Errorf("%w: only %d of %d packages deliverable", ledger.ErrInsufficientStock, allowed, req.PackageQuantity)
			}
			if err := s.keeper.Reserve(ctx, tx.Ledger(), item.ProductID, order.SourceLocationID, uom.ToBase(delta, factor), ref); err != nil {
				return err
			}
		case delta < 0:
			if err := s.keeper.Release(ctx, tx.Ledger(), item.ProductID, order.SourceLocationID, uom.ToBase(-delta, factor), ref); err != nil {
				return err
			}
		}

		if req.PackageQuantity == 0 {
			return tx.DeleteItem(ctx, itemID)
		}
		subtotal := item.UnitPrice * float64(req.PackageQuantity)
		return tx.UpdateItemPackageQty(ctx, itemID, req.PackageQuantity, false, subtotal)
	})
	if err != nil {
		return nil, err
	}

	s.auditRecord(ctx, actor, "orders.edit_item", orderID, map[string]any{"item_id": itemID, "package_quantity": req.PackageQuantity})
	s.invalidate(ctx, sourceID)
	return s.repo.GetByID(ctx, orderID)
}

// UpdateExpectedDelivery moves the expected delivery date on a pending or
// confirmed order. The new date must be strictly in the future.
func (s *Service) UpdateExpectedDelivery(ctx context.Context, orderID int64, req ExpectedDeliveryRequest) (*Order, error) {
	actor, _ := shared.ActorFromContext(ctx)
	if !req.ExpectedDelivery.After(s.now()) {
		return nil, ErrPastDeliveryDate
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanEditDate() {
			return ErrImmutableAfterShipment
		}
		return tx.UpdateOrderFields(ctx, orderID, map[string]any{
			"expected_delivery": req.ExpectedDelivery,
		})
	})
	if err != nil {
		return nil, err
	}

	s.auditRecord(ctx, actor, "orders.edit_date", orderID, map[string]any{"expected_delivery": req.ExpectedDelivery})
	return s.repo.GetByID(ctx, orderID)
}

// Delete removes a pending order outright. Confirmed and later orders can
// only be cancelled, never deleted.
func (s *Service) Delete(ctx context.Context, orderID int64) error {
	actor, _ := shared.ActorFromContext(ctx)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := guardStore(actor, order); err != nil {
			return err
		}
		if order.Status != StatusPending {
			return fmt.Errorf("%w: only pending orders can be deleted", ErrInvalidTransition)
		}
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		return err
	}

	s.auditRecord(ctx, actor, "orders.delete", orderID, nil)
	return nil
}

// Get fetches one order with items. Store actors only see their own.
func (s *Service) Get(ctx context.Context, orderID int64) (*Order, error) {
	actor, _ := shared.ActorFromContext(ctx)
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := guardStore(actor, order); err != nil {
		return nil, err
	}
	return order, nil
}

// List returns orders matching the filter. Store actors are pinned to their
// own location regardless of the requested filter.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	actor, _ := shared.ActorFromContext(ctx)
	if actor.Role == shared.RoleStore {
		req.TargetLocationID = actor.LocationID
	}
	return s.repo.List(ctx, req)
}
