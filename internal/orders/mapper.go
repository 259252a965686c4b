package orders

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-retail/backoffice/internal/uom"
)

var printer = message.NewPrinter(language.English)

// FormatMoney renders an amount with thousand separators, e.g. "1,250.50".
func FormatMoney(amount float64) string {
	return printer.Sprintf("%.2f", amount)
}

// FormatQuantity renders a package quantity with its base-unit equivalent,
// e.g. "5 box (60 pcs)". Products without a package unit fall back to the
// base unit alone.
func FormatQuantity(qty int64, item Item) string {
	factor := uom.Normalize(item.PackageConversion)
	if !uom.HasPackageUnit(factor) || item.PackageUnit == nil {
		return printer.Sprintf("%d %s", qty, item.BaseUnit)
	}
	return printer.Sprintf("%d %s (%d %s)", qty, *item.PackageUnit, uom.ToBase(qty, factor), item.BaseUnit)
}

// ItemView is an Item plus display strings for listing screens.
type ItemView struct {
	Item
	QuantityDisplay string `json:"quantity_display"`
	ReceivedDisplay string `json:"received_display,omitempty"`
	UnitPriceText   string `json:"unit_price_display"`
	SubtotalText    string `json:"subtotal_display"`
}

// OrderView is an Order plus aggregate display fields.
type OrderView struct {
	Order
	TotalAmount     float64    `json:"total_amount"`
	TotalAmountText string     `json:"total_amount_display"`
	ItemViews       []ItemView `json:"item_views,omitempty"`
}

// NewOrderView maps an order into its API representation.
func NewOrderView(order *Order) OrderView {
	view := OrderView{
		Order:           *order,
		TotalAmount:     order.TotalAmount(),
		TotalAmountText: FormatMoney(order.TotalAmount()),
	}
	for _, item := range order.Items {
		iv := ItemView{
			Item:            item,
			QuantityDisplay: FormatQuantity(item.PackageQuantity, item),
			UnitPriceText:   FormatMoney(item.UnitPrice),
			SubtotalText:    FormatMoney(item.Subtotal),
		}
		if item.ReceivedQuantity != nil {
			iv.ReceivedDisplay = FormatQuantity(*item.ReceivedQuantity, item)
		}
		view.ItemViews = append(view.ItemViews, iv)
	}
	return view
}

// NewOrderViews maps a listing page.
func NewOrderViews(list []Order) []OrderView {
	views := make([]OrderView, 0, len(list))
	for i := range list {
		views = append(views, NewOrderView(&list[i]))
	}
	return views
}

// AdjustmentSummary renders one capped line for log output.
func AdjustmentSummary(adj ItemAdjustment) string {
	return fmt.Sprintf("item %d: requested %d, allowed %d", adj.ItemID, adj.Requested, adj.Allowed)
}
