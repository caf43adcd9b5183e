package shop

const (
	TopicSaleUpdated  = "store.sale.updated"
	TopicStockChanged = "store.stock.changed"
	TopicOrderCreated = "store.order.created"
)

// Partition key = seller_id, so one store's events keep their order.
func PartitionKey(sellerID string) []byte { return []byte(sellerID) }
