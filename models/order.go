package models

import (
	"fmt"
	"time"
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

func (s OrderStatus) String() string { return string(s) }

// CanTransition is the explicit transition table for order statuses.
// Any valid target is accepted, including same-state and backward moves;
// cancellation is the only transition with side effects, handled by the
// order repository.
func CanTransition(from, to OrderStatus) bool {
	_, err := ParseOrderStatus(string(to))
	return err == nil
}

// ShouldRestoreStock reports whether moving from one status to another
// must put the order's line-item quantities back into product stock.
// Re-cancelling an already cancelled order restores nothing.
func ShouldRestoreStock(from, to OrderStatus) bool {
	return to == StatusCancelled && from != StatusCancelled
}

type ShippingAddress struct {
	Street     string `json:"street" binding:"required"`
	City       string `json:"city" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

// Validate is used where the address arrives outside gin binding.
func (a ShippingAddress) Validate() error {
	if a.Street == "" || a.City == "" || a.PostalCode == "" || a.Country == "" {
		return fmt.Errorf("complete shipping address is required")
	}
	return nil
}

// OrderItem is a frozen snapshot of a product at purchase time. Later
// edits to the live product never alter it.
type OrderItem struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	ProductID   int64   `json:"product_id"`
	VendorID    int64   `json:"vendor_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`

	Vendor *UserSummary `json:"vendor,omitempty"`
}

func (it OrderItem) Subtotal() float64 {
	return it.UnitPrice * float64(it.Quantity)
}

type Order struct {
	ID              int64           `json:"id"`
	CustomerID      int64           `json:"customer_id"`
	Status          OrderStatus     `json:"status"`
	TotalPrice      float64         `json:"total_price"`
	PaymentMethod   string          `json:"payment_method"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	Items           []OrderItem     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Customer *UserSummary `json:"customer,omitempty"`
}

// OrderItemRequest is a client-side cart line: product reference plus
// quantity, nothing else is trusted.
type OrderItemRequest struct {
	ProductID int64 `json:"product" binding:"required"`
	Quantity  int   `json:"qty" binding:"required"`
}

// BuildOrderItems validates requested cart lines against the fetched
// product rows and assembles the snapshots. Name and price always come
// from the products, never from the request. The products map must hold
// only active products; a missing entry means the id was unknown or
// inactive.
func BuildOrderItems(reqs []OrderItemRequest, products map[int64]*Product) ([]OrderItem, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("order must contain at least one item")
	}

	items := make([]OrderItem, 0, len(reqs))
	for _, req := range reqs {
		p, ok := products[req.ProductID]
		if !ok {
			return nil, fmt.Errorf("one or more products are invalid or inactive")
		}
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for %s must be greater than 0", p.Name)
		}
		if req.Quantity > p.Stock {
			return nil, fmt.Errorf("insufficient stock for %s", p.Name)
		}

		items = append(items, OrderItem{
			ProductID:   p.ID,
			VendorID:    p.VendorID,
			ProductName: p.Name,
			Quantity:    req.Quantity,
			UnitPrice:   p.Price,
		})
	}
	return items, nil
}

// OrderTotal sums line-item subtotals.
func OrderTotal(items []OrderItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Subtotal()
	}
	return total
}
