package shop

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadValidation(t *testing.T) {
	assert.Error(t, SaleUpdatedPayload{}.Validate())
	assert.NoError(t, SaleUpdatedPayload{SaleID: "s1"}.Validate())

	assert.Error(t, StockChangedPayload{}.Validate())
	assert.Error(t, StockChangedPayload{ProductID: "p1", StockQuantity: -1}.Validate())
	assert.NoError(t, StockChangedPayload{ProductID: "p1"}.Validate())

	assert.Error(t, OrderCreatedPayload{}.Validate())
	assert.Error(t, OrderCreatedPayload{OrderID: "o1"}.Validate())
	assert.NoError(t, OrderCreatedPayload{OrderID: "o1", SaleID: "s1", TotalAmount: decimal.NewFromInt(5)}.Validate())
}

func TestSaleUpdatedAbsentVsCleared(t *testing.T) {
	// the wire format must distinguish "field not touched" from "field cleared"
	var absent SaleUpdatedPayload
	require.NoError(t, json.Unmarshal([]byte(`{"sale_id":"s1"}`), &absent))
	assert.Nil(t, absent.StreamURL)

	var cleared SaleUpdatedPayload
	require.NoError(t, json.Unmarshal([]byte(`{"sale_id":"s1","stream_url":""}`), &cleared))
	require.NotNil(t, cleared.StreamURL)
	assert.Equal(t, "", *cleared.StreamURL)
}

func TestNewEnvelope(t *testing.T) {
	env := NewEnvelope(EventStockChanged, "api", "seller1", json.RawMessage(`{}`))
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EventStockChanged, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "seller1", env.SellerID)
	assert.False(t, env.OccurredAt.IsZero())
}
