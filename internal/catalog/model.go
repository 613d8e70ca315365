// Package catalog keeps the local projections of users and products owned by
// sibling services, together with the orders this service issues.
package catalog

import "time"

const (
	StatusPending   = "pendiente"
	StatusCancelled = "cancelado"
)

type User struct {
	ID        string
	Name      string
	LastNames string
	Address   string
	Email     string
	IsActive  bool
}

// Product prices are in minor units.
type Product struct {
	ID       string
	Name     string
	Price    int
	Stock    int
	IsActive bool
}

type Order struct {
	ID          string
	OrderNumber int
	Status      string
	TotalCharge int
	CreatedAt   time.Time
	CustomerID  string
	Items       []OrderItem
}

// OrderItem.Price is the line total: unit price times quantity.
type OrderItem struct {
	ProductID string
	Quantity  int
	Price     int
}

// Cancelled reports whether the order has already been cancelled.
func (o *Order) Cancelled() bool {
	return o.Status == StatusCancelled
}
