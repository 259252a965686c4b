package orders

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-retail/backoffice/internal/catalog"
	"github.com/meridian-retail/backoffice/internal/discrepancy"
	"github.com/meridian-retail/backoffice/internal/ledger"
	"github.com/meridian-retail/backoffice/internal/shared"
)

type memoryLedger struct {
	levels    map[string]ledger.Level
	movements []ledger.Movement
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{levels: make(map[string]ledger.Level)}
}

func levelKey(productID, locationID int64) string {
	return fmt.Sprintf("%d:%d", productID, locationID)
}

func (m *memoryLedger) GetLevelForUpdate(ctx context.Context, productID, locationID int64) (ledger.Level, error) {
	if l, ok := m.levels[levelKey(productID, locationID)]; ok {
		return l, nil
	}
	return ledger.Level{ProductID: productID, LocationID: locationID}, ledger.ErrLevelNotFound
}

func (m *memoryLedger) UpsertLevel(ctx context.Context, level ledger.Level) error {
	m.levels[levelKey(level.ProductID, level.LocationID)] = level
	return nil
}

func (m *memoryLedger) InsertMovement(ctx context.Context, mv ledger.Movement) error {
	m.movements = append(m.movements, mv)
	return nil
}

func (m *memoryLedger) level(productID, locationID int64) ledger.Level {
	return m.levels[levelKey(productID, locationID)]
}

type memoryStore struct {
	seq      int64
	orders   map[int64]*Order
	items    map[int64]*Item
	products map[int64]catalog.Product
	stock    *memoryLedger
}

func newMemoryStore(products map[int64]catalog.Product, stock *memoryLedger) *memoryStore {
	return &memoryStore{
		orders:   make(map[int64]*Order),
		items:    make(map[int64]*Item),
		products: products,
		stock:    stock,
	}
}

func (s *memoryStore) next() int64 {
	s.seq++
	return s.seq
}

func (s *memoryStore) orderCopy(id int64) (*Order, error) {
	src, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *src
	out.Items = nil
	for _, item := range s.items {
		if item.OrderID != id {
			continue
		}
		it := *item
		if p, ok := s.products[it.ProductID]; ok {
			it.ProductCode = p.Code
			it.ProductName = p.Name
			it.PackageConversion = p.PackageConversion
			it.BaseUnit = p.BaseUnit
			it.PackageUnit = p.PackageUnit
		}
		out.Items = append(out.Items, it)
	}
	sort.Slice(out.Items, func(i, j int) bool { return out.Items[i].ProductID < out.Items[j].ProductID })
	return &out, nil
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryOrdersTx{store: s})
}

func (s *memoryStore) GetByID(ctx context.Context, id int64) (*Order, error) {
	return s.orderCopy(id)
}

func (s *memoryStore) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	var out []Order
	for id, o := range s.orders {
		if req.TargetLocationID != 0 && o.TargetLocationID != req.TargetLocationID {
			continue
		}
		if req.Status != "" && o.Status != req.Status {
			continue
		}
		cp, _ := s.orderCopy(id)
		out = append(out, *cp)
	}
	return out, len(out), nil
}

type memoryOrdersTx struct {
	store *memoryStore
}

func (t *memoryOrdersTx) Ledger() ledger.TxPort { return t.store.stock }

func (t *memoryOrdersTx) NextCode(ctx context.Context) (string, error) {
	return fmt.Sprintf("TO-%04d", t.store.seq+1), nil
}

func (t *memoryOrdersTx) InsertOrder(ctx context.Context, order Order) (int64, error) {
	id := t.store.next()
	order.ID = id
	t.store.orders[id] = &order
	return id, nil
}

func (t *memoryOrdersTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	id := t.store.next()
	item.ID = id
	t.store.items[id] = &item
	return id, nil
}

func (t *memoryOrdersTx) GetOrderForUpdate(ctx context.Context, id int64) (*Order, error) {
	return t.store.orderCopy(id)
}

func applyFields(order *Order, fields map[string]any) {
	for col, val := range fields {
		switch col {
		case "expected_delivery":
			switch v := val.(type) {
			case time.Time:
				order.ExpectedDelivery = &v
			case *time.Time:
				order.ExpectedDelivery = v
			}
		case "confirmed_by":
			v := val.(int64)
			order.ConfirmedBy = &v
		case "confirmed_at":
			v := val.(time.Time)
			order.ConfirmedAt = &v
		case "shipped_at":
			v := val.(time.Time)
			order.ShippedAt = &v
		case "delivered_at":
			v := val.(time.Time)
			order.DeliveredAt = &v
		case "rejection_reason":
			v := val.(string)
			order.RejectionReason = &v
		case "store_receive_note":
			v := val.(string)
			order.StoreReceiveNote = &v
		case "notes":
			v := val.(string)
			order.Notes = &v
		}
	}
}

func (t *memoryOrdersTx) UpdateStatus(ctx context.Context, id int64, from, to Status, fields map[string]any) error {
	order, ok := t.store.orders[id]
	if !ok {
		return ErrNotFound
	}
	if order.Status != from {
		return ErrInvalidTransition
	}
	order.Status = to
	applyFields(order, fields)
	return nil
}

func (t *memoryOrdersTx) UpdateOrderFields(ctx context.Context, id int64, fields map[string]any) error {
	order, ok := t.store.orders[id]
	if !ok {
		return ErrNotFound
	}
	applyFields(order, fields)
	return nil
}

func (t *memoryOrdersTx) UpdateItemPackageQty(ctx context.Context, itemID, qty int64, autoAdjusted bool, subtotal float64) error {
	item, ok := t.store.items[itemID]
	if !ok {
		return ErrNotFound
	}
	item.PackageQuantity = qty
	item.AutoAdjusted = autoAdjusted
	item.Subtotal = subtotal
	return nil
}

func (t *memoryOrdersTx) DeleteItem(ctx context.Context, itemID int64) error {
	delete(t.store.items, itemID)
	return nil
}

func (t *memoryOrdersTx) SetItemReceived(ctx context.Context, itemID, qty int64) (bool, error) {
	item, ok := t.store.items[itemID]
	if !ok {
		return false, ErrNotFound
	}
	if item.ReceivedQuantity != nil {
		return false, nil
	}
	item.ReceivedQuantity = &qty
	return true, nil
}

func (t *memoryOrdersTx) DeleteOrder(ctx context.Context, id int64) error {
	for itemID, item := range t.store.items {
		if item.OrderID == id {
			delete(t.store.items, itemID)
		}
	}
	delete(t.store.orders, id)
	return nil
}

type catalogStub struct {
	products map[int64]catalog.Product
}

func (c *catalogStub) GetProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product)
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (c *catalogStub) GetLocation(ctx context.Context, id int64) (catalog.Location, error) {
	if id == 1 {
		return catalog.Location{ID: 1, Code: "WH", Kind: catalog.LocationWarehouse}, nil
	}
	return catalog.Location{ID: id, Code: fmt.Sprintf("ST-%d", id), Kind: catalog.LocationStore}, nil
}

func (c *catalogStub) Warehouse(ctx context.Context) (catalog.Location, error) {
	return catalog.Location{ID: 1, Code: "WH", Kind: catalog.LocationWarehouse}, nil
}

type discStub struct {
	filed []discrepancy.Input
}

func (d *discStub) File(ctx context.Context, inputs []discrepancy.Input) ([]discrepancy.Report, error) {
	var out []discrepancy.Report
	for _, in := range inputs {
		class := discrepancy.Classify(in.ShippedQty, in.ReceivedQty)
		if class == discrepancy.ClassNormal {
			continue
		}
		d.filed = append(d.filed, in)
		out = append(out, discrepancy.Report{
			OrderID:        in.OrderID,
			OrderItemID:    in.OrderItemID,
			ProductID:      in.ProductID,
			ShippedQty:     in.ShippedQty,
			ReceivedQty:    in.ReceivedQty,
			Difference:     in.ReceivedQty - in.ShippedQty,
			Classification: class,
		})
	}
	return out, nil
}

type auditStub struct {
	actions []string
}

func (a *auditStub) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type snapStub struct {
	invalidated []int64
}

func (s *snapStub) Invalidate(ctx context.Context, locationID int64) {
	s.invalidated = append(s.invalidated, locationID)
}

type fixture struct {
	service *Service
	stock   *memoryLedger
	store   *memoryStore
	disc    *discStub
	audit   *auditStub
	snaps   *snapStub
}

func boxed(s string) *string { return &s }

func testProducts() map[int64]catalog.Product {
	return map[int64]catalog.Product{
		1: {ID: 1, Code: "P-001", Name: "Cola 330ml", BaseUnit: "pcs", PackageUnit: boxed("box"), PackageConversion: 12, Price: 10},
		2: {ID: 2, Code: "P-002", Name: "Rice 5kg", BaseUnit: "bag", PackageConversion: 1, Price: 2.5},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stock := newMemoryLedger()
	products := testProducts()
	store := newMemoryStore(products, stock)
	disc := &discStub{}
	audit := &auditStub{}
	snaps := &snapStub{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, store, &catalogStub{products: products}, ledger.NewKeeper(), disc, audit, nil, snaps)
	return &fixture{service: svc, stock: stock, store: store, disc: disc, audit: audit, snaps: snaps}
}

func (f *fixture) seedStock(productID, locationID, stock int64) {
	f.stock.levels[levelKey(productID, locationID)] = ledger.Level{
		ProductID: productID, LocationID: locationID, Stock: stock,
	}
}

func storeCtx(locationID int64) context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{ID: 7, Name: "store clerk", Role: shared.RoleStore, LocationID: locationID})
}

func warehouseCtx() context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{ID: 3, Name: "wh manager", Role: shared.RoleWarehouse, LocationID: 1})
}

func future() *time.Time {
	t := time.Now().UTC().Add(72 * time.Hour)
	return &t
}

func (f *fixture) createOrder(t *testing.T, items ...CreateItemReq) *Order {
	t.Helper()
	order, err := f.service.Create(storeCtx(2), CreateRequest{
		TargetLocationID: 2,
		ExpectedDelivery: future(),
		Items:            items,
	}, "")
	require.NoError(t, err)
	return order
}

func TestCreatePendingOrder(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t,
		CreateItemReq{ProductID: 1, Quantity: 5},
		CreateItemReq{ProductID: 2, Quantity: 3, UnitPrice: 2},
	)

	require.Equal(t, StatusPending, order.Status)
	require.EqualValues(t, 1, order.SourceLocationID)
	require.EqualValues(t, 2, order.TargetLocationID)
	require.NotEmpty(t, order.Code)
	require.Len(t, order.Items, 2)
	// unit price falls back to the catalog price when omitted
	require.InDelta(t, 10.0, order.Items[0].UnitPrice, 0.001)
	require.InDelta(t, 5*10.0+3*2.0, order.TotalAmount(), 0.001)

	// nothing reserved before confirmation
	require.Empty(t, f.stock.movements)
}

func TestCreateRequiresItems(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(storeCtx(2), CreateRequest{TargetLocationID: 2}, "")
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestCreateForOtherStoreForbidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(storeCtx(3), CreateRequest{
		TargetLocationID: 2,
		Items:            []CreateItemReq{{ProductID: 1, Quantity: 1}},
	}, "")
	require.ErrorIs(t, err, ErrWrongLocation)
}

func TestConfirmReservesStock(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 120)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 5})

	result, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, result.Order.Status)
	require.Empty(t, result.Adjustments)
	require.NotNil(t, result.Order.ConfirmedAt)

	level := f.stock.level(1, 1)
	require.EqualValues(t, 120, level.Stock)
	require.EqualValues(t, 60, level.Reserved) // 5 boxes of 12
}

func TestConfirmCapsToDeliverableWholePackages(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 100) // 8 whole boxes of 12
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 10})

	result, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)
	require.Len(t, result.Adjustments, 1)
	require.EqualValues(t, 10, result.Adjustments[0].Requested)
	require.EqualValues(t, 8, result.Adjustments[0].Allowed)

	item := result.Order.Items[0]
	require.EqualValues(t, 8, item.PackageQuantity)
	require.True(t, item.AutoAdjusted)
	require.InDelta(t, 80.0, item.Subtotal, 0.001)

	level := f.stock.level(1, 1)
	require.EqualValues(t, 96, level.Reserved)
}

func TestConfirmCapsToZeroKeepsLine(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 5) // less than one box
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 2})

	result, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)
	require.Len(t, result.Adjustments, 1)
	require.EqualValues(t, 0, result.Adjustments[0].Allowed)
	require.Len(t, result.Order.Items, 1)
	require.EqualValues(t, 0, result.Order.Items[0].PackageQuantity)
	require.EqualValues(t, 0, f.stock.level(1, 1).Reserved)
}

func TestConfirmRequiresFutureDeliveryDate(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 120)

	order, err := f.service.Create(storeCtx(2), CreateRequest{
		TargetLocationID: 2,
		Items:            []CreateItemReq{{ProductID: 1, Quantity: 1}},
	}, "")
	require.NoError(t, err)

	_, err = f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.ErrorIs(t, err, ErrMissingDeliveryDate)

	past := time.Now().UTC().Add(-time.Hour)
	_, err = f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{ExpectedDelivery: &past})
	require.ErrorIs(t, err, ErrPastDeliveryDate)

	_, err = f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{ExpectedDelivery: future()})
	require.NoError(t, err)
}

func TestConfirmTwiceLosesRace(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 120)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 2})

	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)

	_, err = f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.ErrorIs(t, err, ErrInvalidTransition)

	// the second attempt must not have doubled the reservation
	require.EqualValues(t, 24, f.stock.level(1, 1).Reserved)
}

func TestShipDecrementsStock(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 120)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 5})
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)

	shipped, err := f.service.Ship(warehouseCtx(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, shipped.Status)
	require.NotNil(t, shipped.ShippedAt)

	level := f.stock.level(1, 1)
	require.EqualValues(t, 60, level.Stock)
	require.EqualValues(t, 0, level.Reserved)
}

func TestShipTwiceLosesRace(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 120)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 5})
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)

	_, err = f.service.Ship(warehouseCtx(), order.ID)
	require.NoError(t, err)

	_, err = f.service.Ship(warehouseCtx(), order.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// the warehouse must have been debited exactly once
	require.EqualValues(t, 60, f.stock.level(1, 1).Stock)
}

func TestShipSkipsZeroCappedLines(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 5)
	f.seedStock(2, 1, 50)
	order := f.createOrder(t,
		CreateItemReq{ProductID: 1, Quantity: 2}, // capped to 0
		CreateItemReq{ProductID: 2, Quantity: 10},
	)
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)

	_, err = f.service.Ship(warehouseCtx(), order.ID)
	require.NoError(t, err)

	require.EqualValues(t, 5, f.stock.level(1, 1).Stock)
	require.EqualValues(t, 40, f.stock.level(2, 1).Stock)
}

func TestShipRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 1})
	_, err := f.service.Ship(warehouseCtx(), order.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func (f *fixture) shippedOrder(t *testing.T, qty int64) *Order {
	t.Helper()
	f.seedStock(1, 1, 200)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: qty})
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)
	shipped, err := f.service.Ship(warehouseCtx(), order.ID)
	require.NoError(t, err)
	return shipped
}

func TestDeliverAddsStoreStock(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 5)

	result, err := f.service.Deliver(storeCtx(2), order.ID, DeliverRequest{
		Items: []DeliverItemReq{{ItemID: order.Items[0].ID, ReceivedQuantity: 5}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, result.Order.Status)
	require.NotNil(t, result.Order.DeliveredAt)
	require.Empty(t, result.Discrepancies)

	require.EqualValues(t, 60, f.stock.level(1, 2).Stock)
	require.NotNil(t, result.Order.Items[0].ReceivedQuantity)
	require.EqualValues(t, 5, *result.Order.Items[0].ReceivedQuantity)
}

func TestDeliverShortageFilesDiscrepancy(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 5)
	note := "two boxes water damaged"

	result, err := f.service.Deliver(storeCtx(2), order.ID, DeliverRequest{
		Items:       []DeliverItemReq{{ItemID: order.Items[0].ID, ReceivedQuantity: 3}},
		ReceiveNote: &note,
	})
	require.NoError(t, err)
	require.Len(t, result.Discrepancies, 1)
	require.Equal(t, "shortage", result.Discrepancies[0].Classification)
	require.EqualValues(t, 5, result.Discrepancies[0].ShippedQty)
	require.EqualValues(t, 3, result.Discrepancies[0].ReceivedQty)
	require.Len(t, f.disc.filed, 1)

	// store stock reflects what was actually counted, not what was shipped
	require.EqualValues(t, 36, f.stock.level(1, 2).Stock)
	require.NotNil(t, result.Order.StoreReceiveNote)
}

func TestDeliverExcessAddsFullReceived(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 5)

	result, err := f.service.Deliver(storeCtx(2), order.ID, DeliverRequest{
		Items: []DeliverItemReq{{ItemID: order.Items[0].ID, ReceivedQuantity: 6}},
	})
	require.NoError(t, err)
	require.Len(t, result.Discrepancies, 1)
	require.Equal(t, "excess", result.Discrepancies[0].Classification)
	require.EqualValues(t, 72, f.stock.level(1, 2).Stock)
}

func TestDeliverRequiresEveryShippedItem(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 5)

	_, err := f.service.Deliver(storeCtx(2), order.ID, DeliverRequest{
		Items: []DeliverItemReq{{ItemID: 999, ReceivedQuantity: 5}},
	})
	require.ErrorIs(t, err, ErrReceiptMissing)
}

func TestDeliverTwiceLosesRace(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 5)
	req := DeliverRequest{Items: []DeliverItemReq{{ItemID: order.Items[0].ID, ReceivedQuantity: 5}}}

	_, err := f.service.Deliver(storeCtx(2), order.ID, req)
	require.NoError(t, err)

	_, err = f.service.Deliver(storeCtx(2), order.ID, req)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.EqualValues(t, 60, f.stock.level(1, 2).Stock)
}

func TestDeliverByWrongStoreForbidden(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 5)

	_, err := f.service.Deliver(storeCtx(3), order.ID, DeliverRequest{
		Items: []DeliverItemReq{{ItemID: order.Items[0].ID, ReceivedQuantity: 5}},
	})
	require.ErrorIs(t, err, ErrWrongLocation)
}

func TestRejectPendingOrder(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 1})

	rejected, err := f.service.Reject(storeCtx(2), order.ID, ReasonRequest{Reason: "ordered by mistake"})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	require.Equal(t, "ordered by mistake", *rejected.RejectionReason)
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 1})
	_, err := f.service.Reject(storeCtx(2), order.ID, ReasonRequest{})
	require.ErrorIs(t, err, ErrEmptyReason)
}

func TestCancelConfirmedReleasesReservation(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 120)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 5})
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 60, f.stock.level(1, 1).Reserved)

	cancelled, err := f.service.Cancel(warehouseCtx(), order.ID, ReasonRequest{Reason: "truck broke down"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.EqualValues(t, 0, f.stock.level(1, 1).Reserved)
	require.EqualValues(t, 120, f.stock.level(1, 1).Stock)
	require.Contains(t, *cancelled.Notes, "truck broke down")
}

func TestCancelShippedRejected(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 5)
	_, err := f.service.Cancel(warehouseCtx(), order.ID, ReasonRequest{Reason: "too late"})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateItemQuantityMovesReservation(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 240)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 10})
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)
	itemID := order.Items[0].ID

	updated, err := f.service.UpdateItemQuantity(warehouseCtx(), order.ID, itemID, ItemQuantityRequest{PackageQuantity: 8})
	require.NoError(t, err)
	require.EqualValues(t, 8, updated.Items[0].PackageQuantity)
	require.False(t, updated.Items[0].AutoAdjusted)
	require.InDelta(t, 80.0, updated.Items[0].Subtotal, 0.001)
	require.EqualValues(t, 96, f.stock.level(1, 1).Reserved)

	updated, err = f.service.UpdateItemQuantity(warehouseCtx(), order.ID, itemID, ItemQuantityRequest{PackageQuantity: 2})
	require.NoError(t, err)
	require.EqualValues(t, 2, updated.Items[0].PackageQuantity)
	require.EqualValues(t, 24, f.stock.level(1, 1).Reserved)
}

func TestUpdateItemQuantityToZeroRemovesLine(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 120)
	f.seedStock(2, 1, 50)
	order := f.createOrder(t,
		CreateItemReq{ProductID: 1, Quantity: 5},
		CreateItemReq{ProductID: 2, Quantity: 10},
	)
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)

	updated, err := f.service.UpdateItemQuantity(warehouseCtx(), order.ID, order.Items[0].ID, ItemQuantityRequest{PackageQuantity: 0})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.EqualValues(t, 2, updated.Items[0].ProductID)
	require.EqualValues(t, 0, f.stock.level(1, 1).Reserved)
}

func TestUpdateItemQuantityBeyondStockFails(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 120) // 10 boxes
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 30})
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err) // capped to 10

	// only 10 boxes are deliverable, 25 cannot be approved
	_, err = f.service.UpdateItemQuantity(warehouseCtx(), order.ID, order.Items[0].ID, ItemQuantityRequest{PackageQuantity: 25})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
}

func TestUpdateItemQuantityBoundedByDeliverableTotal(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 120) // 10 boxes
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 30})
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err) // capped to 10, 120 pcs reserved

	// the delta of 10 boxes fits raw stock, but the new total of 20 does
	// not: the line would be approved beyond what the warehouse can ship
	_, err = f.service.UpdateItemQuantity(warehouseCtx(), order.ID, order.Items[0].ID, ItemQuantityRequest{PackageQuantity: 20})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	level := f.stock.level(1, 1)
	require.EqualValues(t, 120, level.Reserved)

	kept, err := f.service.Get(warehouseCtx(), order.ID)
	require.NoError(t, err)
	require.EqualValues(t, 10, kept.Items[0].PackageQuantity)
}

func TestUpdateItemQuantityAboveOrderedRejected(t *testing.T) {
	f := newFixture(t)
	f.seedStock(1, 1, 240)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 5})
	_, err := f.service.Confirm(warehouseCtx(), order.ID, ConfirmRequest{})
	require.NoError(t, err)

	_, err = f.service.UpdateItemQuantity(warehouseCtx(), order.ID, order.Items[0].ID, ItemQuantityRequest{PackageQuantity: 6})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateItemQuantityAfterShipmentRejected(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 5)
	_, err := f.service.UpdateItemQuantity(warehouseCtx(), order.ID, order.Items[0].ID, ItemQuantityRequest{PackageQuantity: 3})
	require.ErrorIs(t, err, ErrImmutableAfterShipment)
}

func TestUpdateExpectedDelivery(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 1})

	next := time.Now().UTC().Add(7 * 24 * time.Hour)
	updated, err := f.service.UpdateExpectedDelivery(warehouseCtx(), order.ID, ExpectedDeliveryRequest{ExpectedDelivery: next})
	require.NoError(t, err)
	require.WithinDuration(t, next, *updated.ExpectedDelivery, time.Second)

	past := time.Now().UTC().Add(-time.Hour)
	_, err = f.service.UpdateExpectedDelivery(warehouseCtx(), order.ID, ExpectedDeliveryRequest{ExpectedDelivery: past})
	require.ErrorIs(t, err, ErrPastDeliveryDate)
}

func TestUpdateExpectedDeliveryAfterShipmentRejected(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 2)
	_, err := f.service.UpdateExpectedDelivery(warehouseCtx(), order.ID, ExpectedDeliveryRequest{ExpectedDelivery: *future()})
	require.ErrorIs(t, err, ErrImmutableAfterShipment)
}

func TestDeletePendingOnly(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 1})

	require.NoError(t, f.service.Delete(storeCtx(2), order.ID))
	_, err := f.service.Get(storeCtx(2), order.ID)
	require.ErrorIs(t, err, ErrNotFound)

	shipped := f.shippedOrder(t, 2)
	err = f.service.Delete(storeCtx(2), shipped.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestGetGuardsStoreLocation(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 1})

	_, err := f.service.Get(storeCtx(3), order.ID)
	require.ErrorIs(t, err, ErrWrongLocation)

	got, err := f.service.Get(warehouseCtx(), order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
}

func TestListPinsStoreToOwnLocation(t *testing.T) {
	f := newFixture(t)
	f.createOrder(t, CreateItemReq{ProductID: 1, Quantity: 1})

	_, err := f.service.Create(storeCtx(3), CreateRequest{
		TargetLocationID: 3,
		Items:            []CreateItemReq{{ProductID: 2, Quantity: 1}},
	}, "")
	require.NoError(t, err)

	list, total, err := f.service.List(storeCtx(2), ListRequest{TargetLocationID: 3})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.EqualValues(t, 2, list[0].TargetLocationID)
}

func TestLedgerJournalPerTransition(t *testing.T) {
	f := newFixture(t)
	order := f.shippedOrder(t, 5)
	_, err := f.service.Deliver(storeCtx(2), order.ID, DeliverRequest{
		Items: []DeliverItemReq{{ItemID: order.Items[0].ID, ReceivedQuantity: 5}},
	})
	require.NoError(t, err)

	var kinds []ledger.MovementKind
	for _, m := range f.stock.movements {
		kinds = append(kinds, m.Kind)
	}
	require.Equal(t, []ledger.MovementKind{ledger.MovementReserve, ledger.MovementOut, ledger.MovementIn}, kinds)
	for _, m := range f.stock.movements {
		require.Equal(t, "orders", m.RefModule)
		require.Equal(t, order.Code, m.RefID)
	}
}
