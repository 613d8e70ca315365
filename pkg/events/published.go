package events

const TypeOrderIssuedForStockValidation = "OrderIssuedForStockValidationIntegrationEvent"

// OrderIssuedForStockValidation asks the inventory service to check stock for a new order.
type OrderIssuedForStockValidation struct {
	Metadata
	OrderID     string                `json:"orderId"`
	OrderNumber int                   `json:"orderNumber"`
	CustomerID  string                `json:"customerId"`
	Items       []StockValidationItem `json:"items"`
}

type StockValidationItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (*OrderIssuedForStockValidation) EventType() string {
	return TypeOrderIssuedForStockValidation
}
