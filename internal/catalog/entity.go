package catalog

import (
	"time"

	"github.com/samber/lo"
)

type userEntity struct {
	ID        string `bson:"_id"`
	Name      string `bson:"name"`
	LastNames string `bson:"lastNames"`
	Address   string `bson:"address"`
	Email     string `bson:"email"`
	IsActive  bool   `bson:"isActive"`
}

type productEntity struct {
	ID       string `bson:"_id"`
	Name     string `bson:"name"`
	Price    int    `bson:"price"`
	Stock    int    `bson:"stock"`
	IsActive bool   `bson:"isActive"`
}

type orderEntity struct {
	ID          string            `bson:"_id"`
	OrderNumber int               `bson:"orderNumber"`
	Status      string            `bson:"status"`
	TotalCharge int               `bson:"totalCharge"`
	CreatedAt   time.Time         `bson:"createdAt"`
	CustomerID  string            `bson:"customerId"`
	Items       []orderItemEntity `bson:"items"`
}

type orderItemEntity struct {
	ProductID string `bson:"productId"`
	Quantity  int    `bson:"quantity"`
	Price     int    `bson:"price"`
}

type counterEntity struct {
	ID  string `bson:"_id"`
	Seq int    `bson:"seq"`
}

func toUserEntity(u *User) *userEntity {
	return &userEntity{
		ID:        u.ID,
		Name:      u.Name,
		LastNames: u.LastNames,
		Address:   u.Address,
		Email:     u.Email,
		IsActive:  u.IsActive,
	}
}

func (e *userEntity) toDomain() *User {
	return &User{
		ID:        e.ID,
		Name:      e.Name,
		LastNames: e.LastNames,
		Address:   e.Address,
		Email:     e.Email,
		IsActive:  e.IsActive,
	}
}

func toProductEntity(p *Product) *productEntity {
	return &productEntity{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Stock:    p.Stock,
		IsActive: p.IsActive,
	}
}

func (e *productEntity) toDomain() *Product {
	return &Product{
		ID:       e.ID,
		Name:     e.Name,
		Price:    e.Price,
		Stock:    e.Stock,
		IsActive: e.IsActive,
	}
}

func toOrderEntity(o *Order) *orderEntity {
	return &orderEntity{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		TotalCharge: o.TotalCharge,
		CreatedAt:   o.CreatedAt.UTC(),
		CustomerID:  o.CustomerID,
		Items: lo.Map(o.Items, func(it OrderItem, _ int) orderItemEntity {
			return orderItemEntity(it)
		}),
	}
}

func (e *orderEntity) toDomain() *Order {
	return &Order{
		ID:          e.ID,
		OrderNumber: e.OrderNumber,
		Status:      e.Status,
		TotalCharge: e.TotalCharge,
		CreatedAt:   e.CreatedAt,
		CustomerID:  e.CustomerID,
		Items: lo.Map(e.Items, func(it orderItemEntity, _ int) OrderItem {
			return OrderItem(it)
		}),
	}
}
