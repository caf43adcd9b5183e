package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khshop/livestore/internal/shop"
)

func product(id, name, price string, stock int) shop.Product {
	return shop.Product{
		ID:            id,
		Name:          name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
	}
}

func TestTotals(t *testing.T) {
	c := New()
	c.Add(product("p1", "Mug", "10.50", 5))
	c.Add(product("p1", "Mug", "10.50", 5))
	c.Add(product("p2", "Tee", "4.50", 5))

	assert.Equal(t, 3, c.TotalItems())
	assert.True(t, c.TotalPrice().Equal(decimal.RequireFromString("25.50")),
		"got %s", c.TotalPrice())
}

func TestAddClampsToStock(t *testing.T) {
	c := New()
	p := product("p1", "Mug", "10", 1)
	c.Add(p)
	c.Add(p)

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestAddOutOfStockIsNoop(t *testing.T) {
	c := New()
	c.Add(product("p1", "Mug", "10", 0))
	assert.Empty(t, c.Items())
}

func TestSetQuantity(t *testing.T) {
	c := New()
	c.Add(product("p1", "Mug", "10", 5))

	c.SetQuantity("p1", 4)
	assert.Equal(t, 4, c.Items()[0].Quantity)

	// clamped to known stock
	c.SetQuantity("p1", 99)
	assert.Equal(t, 5, c.Items()[0].Quantity)

	// zero removes
	c.SetQuantity("p1", 0)
	assert.Empty(t, c.Items())
}

func TestStockChangeClampsDown(t *testing.T) {
	c := New()
	c.Add(product("p1", "Mug", "10", 5))
	c.SetQuantity("p1", 5)

	c.OnStockChanged("p1", 3)
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 3, items[0].Stock)

	// restock never bumps the quantity back up
	c.OnStockChanged("p1", 10)
	assert.Equal(t, 3, c.Items()[0].Quantity)
}

func TestStockZeroRemovesLine(t *testing.T) {
	c := New()
	c.Add(product("p1", "Mug", "10", 5))
	c.Add(product("p2", "Tee", "4", 5))

	c.OnStockChanged("p1", 0)
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ProductID)
}

func TestQuantityNeverExceedsStock(t *testing.T) {
	c := New()
	p := product("p1", "Mug", "10", 3)
	for i := 0; i < 10; i++ {
		c.Add(p)
	}
	assert.Equal(t, 3, c.Items()[0].Quantity)
}

func TestRemoveAndClear(t *testing.T) {
	c := New()
	c.Add(product("p1", "Mug", "10", 5))
	c.Add(product("p2", "Tee", "4", 5))

	c.Remove("p1")
	require.Len(t, c.Items(), 1)

	c.Clear()
	assert.Empty(t, c.Items())
	assert.Equal(t, 0, c.TotalItems())
	assert.True(t, c.TotalPrice().IsZero())
}
