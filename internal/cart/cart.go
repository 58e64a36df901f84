// Package cart keeps the line items a visitor intends to buy.
//
// The transition functions in this file are pure: they take the current
// items and return the next ones. Store applies them and hands the committed
// state to its observers, one of which persists it.
package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when an add is requested with a quantity below one
var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// LineItem is one product in the cart. Name, UnitPrice and ImageRef are
// snapshots taken when the product was first added.
type LineItem struct {
	ProductID  string  `json:"product_id"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unit_price"`
	ImageRef   string  `json:"image_ref"`
	Quantity   int     `json:"quantity"`
	StockLimit int     `json:"stock_limit"`
}

// Product is the product data a caller supplies when adding to the cart
type Product struct {
	ID     string
	Name   string
	Price  float64
	Images []string
	Stock  int
}

// Outcome reports what a transition did to one line item. Requested is the
// quantity the caller asked the line to end up with; Quantity is what it
// actually holds after stock clamping.
type Outcome struct {
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Quantity  int    `json:"quantity"`
	Clamped   bool   `json:"clamped"`
	Removed   bool   `json:"removed"`
	Present   bool   `json:"present"`
}

// Add merges qty of product into items. The resulting quantity is capped at
// the product stock; a line clamped to zero is dropped.
func Add(items []LineItem, product Product, qty int) ([]LineItem, Outcome, error) {
	if qty <= 0 {
		return items, Outcome{ProductID: product.ID, Requested: qty}, ErrInvalidQuantity
	}

	next := clone(items)
	i := indexOf(next, product.ID)

	requested := qty
	if i >= 0 {
		requested = next[i].Quantity + qty
	}
	quantity := min(requested, product.Stock)

	out := Outcome{
		ProductID: product.ID,
		Requested: requested,
		Quantity:  max(quantity, 0),
		Clamped:   quantity < requested,
	}

	if quantity <= 0 {
		if i >= 0 {
			next = append(next[:i], next[i+1:]...)
			out.Removed = true
		}
		return next, out, nil
	}

	if i >= 0 {
		next[i].Quantity = quantity
		next[i].StockLimit = product.Stock
	} else {
		image := ""
		if len(product.Images) > 0 {
			image = product.Images[0]
		}
		next = append(next, LineItem{
			ProductID:  product.ID,
			Name:       product.Name,
			UnitPrice:  product.Price,
			ImageRef:   image,
			Quantity:   quantity,
			StockLimit: product.Stock,
		})
	}
	out.Present = true
	return next, out, nil
}

// Remove drops the line for productID if there is one
func Remove(items []LineItem, productID string) ([]LineItem, Outcome) {
	next := clone(items)
	out := Outcome{ProductID: productID}
	if i := indexOf(next, productID); i >= 0 {
		next = append(next[:i], next[i+1:]...)
		out.Removed = true
	}
	return next, out
}

// UpdateQuantity sets the line quantity, capped at its recorded stock
// limit. A quantity of zero or less removes the line; an unknown product is
// left alone.
func UpdateQuantity(items []LineItem, productID string, qty int) ([]LineItem, Outcome) {
	if qty <= 0 {
		next, out := Remove(items, productID)
		out.Requested = qty
		return next, out
	}

	next := clone(items)
	i := indexOf(next, productID)
	if i < 0 {
		return next, Outcome{ProductID: productID, Requested: qty}
	}

	quantity := min(qty, next[i].StockLimit)
	out := Outcome{
		ProductID: productID,
		Requested: qty,
		Quantity:  max(quantity, 0),
		Clamped:   quantity < qty,
	}
	if quantity <= 0 {
		next = append(next[:i], next[i+1:]...)
		out.Removed = true
		return next, out
	}

	next[i].Quantity = quantity
	out.Present = true
	return next, out
}

// ItemCount is the sum of all quantities
func ItemCount(items []LineItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// Total is the sum of unit price times quantity, rounded to cents
func Total(items []LineItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.UnitPrice).Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total.Round(2).InexactFloat64()
}

func indexOf(items []LineItem, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func clone(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
