// Package cart holds one viewer's ephemeral cart: product snapshots plus a
// quantity, reconciled against every inbound stock change so the cart never
// claims more than the most recently known stock.
package cart

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/khshop/livestore/internal/shop"
)

type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"image_url"`
	Stock     int             `json:"stock"` // last known stock for this product
	Quantity  int             `json:"quantity"`
}

type Cart struct {
	mu    sync.Mutex
	items []Item // insertion order
}

func New() *Cart { return &Cart{} }

// Add puts one more of the product in the cart, clamped to its known stock.
// At stock 0 this is a no-op (the UI disables the action).
func (c *Cart) Add(p shop.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == p.ID {
			c.items[i].Stock = p.StockQuantity
			c.items[i].Quantity = min(c.items[i].Quantity+1, p.StockQuantity)
			if c.items[i].Quantity <= 0 {
				c.removeAtLocked(i)
			}
			return
		}
	}
	if p.StockQuantity <= 0 {
		return
	}
	c.items = append(c.items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Stock:     p.StockQuantity,
		Quantity:  1,
	})
}

// SetQuantity replaces a line's quantity, clamped to the last known stock.
// Zero or less removes the line.
func (c *Cart) SetQuantity(productID string, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == productID {
			if qty <= 0 {
				c.removeAtLocked(i)
				return
			}
			c.items[i].Quantity = min(qty, c.items[i].Stock)
			if c.items[i].Quantity <= 0 {
				c.removeAtLocked(i)
			}
			return
		}
	}
}

func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.removeAtLocked(i)
			return
		}
	}
}

// OnStockChanged clamps the held quantity down to the new stock, never up.
// Concurrent buyers depleting shared inventory must not leave this cart
// claiming more than remains; stock 0 removes the line.
func (c *Cart) OnStockChanged(productID string, newStock int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.items {
		if c.items[i].ProductID == productID {
			c.items[i].Stock = newStock
			if newStock <= 0 {
				c.removeAtLocked(i)
				return
			}
			c.items[i].Quantity = min(c.items[i].Quantity, newStock)
			return
		}
	}
}

func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

func (c *Cart) removeAtLocked(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
}
