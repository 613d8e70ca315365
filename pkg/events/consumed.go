package events

const (
	TypeUserCreated                       = "UserCreatedIntegrationEvent"
	TypeUserUpdated                       = "UserUpdatedIntegrationEvent"
	TypeUserDeleted                       = "UserDeletedIntegrationEvent"
	TypeProductCreated                    = "ProductCreatedIntegrationEvent"
	TypeProductUpdated                    = "ProductUpdatedIntegrationEvent"
	TypeProductDeleted                    = "ProductDeletedIntegrationEvent"
	TypeOrderCancelledByInsufficientStock = "OrderCancelledByInsufficientStockIntegrationEvent"
)

// UserCreated is published by the users service.
type UserCreated struct {
	Metadata
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	LastNames string `json:"lastNames"`
	Address   string `json:"address"`
	Email     string `json:"email"`
}

func (*UserCreated) EventType() string { return TypeUserCreated }

type UserUpdated struct {
	Metadata
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	LastNames string `json:"lastNames"`
	Address   string `json:"address"`
	Email     string `json:"email"`
}

func (*UserUpdated) EventType() string { return TypeUserUpdated }

type UserDeleted struct {
	Metadata
	UserID string `json:"userId"`
}

func (*UserDeleted) EventType() string { return TypeUserDeleted }

// ProductCreated is published by the products service. Price is in minor units.
type ProductCreated struct {
	Metadata
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int    `json:"price"`
	Stock     int    `json:"stock"`
}

func (*ProductCreated) EventType() string { return TypeProductCreated }

type ProductUpdated struct {
	Metadata
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int    `json:"price"`
	Stock     int    `json:"stock"`
}

func (*ProductUpdated) EventType() string { return TypeProductUpdated }

type ProductDeleted struct {
	Metadata
	ProductID string `json:"productId"`
}

func (*ProductDeleted) EventType() string { return TypeProductDeleted }

// OrderCancelledByInsufficientStock is published by the inventory service
// when stock validation for an issued order fails.
type OrderCancelledByInsufficientStock struct {
	Metadata
	OrderID     string `json:"orderId"`
	OrderNumber int    `json:"orderNumber"`
	Reason      string `json:"reason"`
}

func (*OrderCancelledByInsufficientStock) EventType() string {
	return TypeOrderCancelledByInsufficientStock
}
