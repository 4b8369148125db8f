// Package cart holds the sale being built at a single terminal. A Cart does
// no I/O and is not safe for concurrent use; each terminal owns one.
package cart

import (
	"vivero/backend/internal/domain"
)

type Cart struct {
	items    []domain.CartItem
	discount int64
}

func New() *Cart {
	return &Cart{}
}

// AddItem appends product to the cart, or merges quantity into the existing
// line for it. The merged quantity is checked against the product's stock at
// the time of the call, which also becomes the line's new ceiling.
func (c *Cart) AddItem(product domain.Product, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	if idx := c.indexOf(product.ID); idx >= 0 {
		held := c.items[idx].Quantity
		if quantity > product.Stock-held {
			return &domain.InsufficientStockError{ProductID: product.ID, Requested: quantity, Available: max(product.Stock-held, 0)}
		}
		c.items[idx].Quantity = held + quantity
		c.items[idx].StockCeiling = product.Stock
		return nil
	}

	if quantity > product.Stock {
		return &domain.InsufficientStockError{ProductID: product.ID, Requested: quantity, Available: product.Stock}
	}
	c.items = append(c.items, domain.CartItem{
		ProductID:    product.ID,
		Name:         product.Name,
		UnitPrice:    product.UnitPrice,
		Quantity:     quantity,
		StockCeiling: product.Stock,
	})
	return nil
}

func (c *Cart) RemoveItem(productID string) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
}

// SetQuantity replaces the quantity of a line. Zero or less removes it.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return nil
	}
	if quantity <= 0 {
		c.RemoveItem(productID)
		return nil
	}
	item := c.items[idx]
	if quantity > item.StockCeiling {
		return &domain.InsufficientStockError{ProductID: productID, Requested: quantity, Available: item.StockCeiling}
	}
	c.items[idx].Quantity = quantity
	return nil
}

// SetDiscount sets the signed adjustment applied to the subtotal. Positive
// values reduce the total, negative values add a fee such as delivery.
func (c *Cart) SetDiscount(discount int64) {
	c.discount = discount
}

// Totals returns subtotal, discount and subtotal minus discount. The total
// is not floored; callers decide whether a negative total is acceptable.
func (c *Cart) Totals() (subtotal int64, discount int64, total int64) {
	for _, item := range c.items {
		subtotal += item.LineTotal()
	}
	return subtotal, c.discount, subtotal - c.discount
}

func (c *Cart) Clear() {
	c.items = nil
	c.discount = 0
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) Items() []domain.CartItem {
	out := make([]domain.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Snapshot returns an immutable copy suitable for handing to a commit.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{Items: c.Items(), Discount: c.discount}
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

type Snapshot struct {
	Items    []domain.CartItem
	Discount int64
}

func (s Snapshot) Totals() (subtotal int64, discount int64, total int64) {
	for _, item := range s.Items {
		subtotal += item.LineTotal()
	}
	return subtotal, s.Discount, subtotal - s.Discount
}

func (s Snapshot) Empty() bool {
	return len(s.Items) == 0
}
