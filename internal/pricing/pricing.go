// Package pricing computes order totals and delivery cost.
package pricing

import (
	"sort"

	"online-shop/internal/model"

	"github.com/shopspring/decimal"
)

// Line is a product and quantity to be priced.
type Line struct {
	ProductID int64
	Count     int
}

// Quote is a priced order.
type Quote struct {
	Items        []model.OrderItem
	Subtotal     decimal.Decimal
	DeliveryCost decimal.Decimal
	Total        decimal.Decimal
	// Skipped holds product ids that had no price and were left out.
	Skipped []int64
}

// DeliveryCost returns the shipping charge for an order subtotal. A subtotal
// at or above the free-delivery threshold ships free for every delivery type.
func DeliveryCost(subtotal decimal.Decimal, deliveryType string, settings model.DeliverySettings) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(settings.FreeFrom) {
		return decimal.Zero
	}
	if deliveryType == model.DeliveryTypeExpress {
		return settings.ExpressCost
	}
	return settings.RegularCost
}

// Subtotal sums price × count over the items.
func Subtotal(items []model.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Count))))
	}
	return total
}

// QuoteOrder prices lines against the supplied product prices. Lines for the
// same product are merged, lines for unknown products or with a non-positive
// count are skipped, and items come back ordered by product id. A quote with
// no items costs nothing, delivery included.
func QuoteOrder(lines []Line, prices map[int64]decimal.Decimal, deliveryType string, settings model.DeliverySettings) Quote {
	counts := make(map[int64]int, len(lines))
	var quote Quote

	for _, line := range lines {
		if line.Count <= 0 {
			continue
		}
		if _, ok := prices[line.ProductID]; !ok {
			quote.Skipped = append(quote.Skipped, line.ProductID)
			continue
		}
		counts[line.ProductID] += line.Count
	}

	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	quote.Items = make([]model.OrderItem, 0, len(ids))
	for _, id := range ids {
		quote.Items = append(quote.Items, model.OrderItem{
			ProductID: id,
			Count:     counts[id],
			Price:     prices[id],
		})
	}

	quote.Subtotal = Subtotal(quote.Items)
	quote.DeliveryCost = itemsDeliveryCost(quote.Items, quote.Subtotal, deliveryType, settings)
	quote.Total = quote.Subtotal.Add(quote.DeliveryCost)
	return quote
}

// Reprice recomputes delivery and total for an order from its frozen line prices.
func Reprice(order *model.Order, settings model.DeliverySettings) {
	subtotal := Subtotal(order.Items)
	order.DeliveryCost = itemsDeliveryCost(order.Items, subtotal, order.DeliveryType, settings)
	order.TotalCost = subtotal.Add(order.DeliveryCost)
}

// itemsDeliveryCost is DeliveryCost, except that nothing ships for an order
// without items.
func itemsDeliveryCost(items []model.OrderItem, subtotal decimal.Decimal, deliveryType string, settings model.DeliverySettings) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	return DeliveryCost(subtotal, deliveryType, settings)
}
