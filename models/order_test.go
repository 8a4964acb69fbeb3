package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderStatus(t *testing.T) {
	for _, valid := range []string{"Pending", "Processing", "Shipped", "Delivered", "Cancelled"} {
		status, err := ParseOrderStatus(valid)
		assert.NoError(t, err)
		assert.Equal(t, valid, status.String())
	}

	for _, invalid := range []string{"", "pending", "Refunded", "PENDING", "Unknown"} {
		_, err := ParseOrderStatus(invalid)
		assert.Error(t, err, "expected %q to be rejected", invalid)
	}
}

func TestCanTransition(t *testing.T) {
	// Lenient table: every valid target is allowed, including backward
	// and same-state moves.
	all := []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.False(t, CanTransition(StatusPending, OrderStatus("Refunded")))
}

func TestShouldRestoreStock(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusCancelled, true},
		{StatusCancelled, StatusCancelled, false},
		{StatusPending, StatusProcessing, false},
		{StatusShipped, StatusDelivered, false},
		{StatusCancelled, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldRestoreStock(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestShippingAddressValidate(t *testing.T) {
	full := ShippingAddress{Street: "1 Main St", City: "Metropolis", PostalCode: "12345", Country: "US"}
	assert.NoError(t, full.Validate())

	missing := []ShippingAddress{
		{City: "Metropolis", PostalCode: "12345", Country: "US"},
		{Street: "1 Main St", PostalCode: "12345", Country: "US"},
		{Street: "1 Main St", City: "Metropolis", Country: "US"},
		{Street: "1 Main St", City: "Metropolis", PostalCode: "12345"},
	}
	for _, addr := range missing {
		assert.Error(t, addr.Validate())
	}
}

func catalog() map[int64]*Product {
	return map[int64]*Product{
		1: {ID: 1, VendorID: 10, Name: "Keyboard", Price: 49.99, Stock: 10},
		2: {ID: 2, VendorID: 11, Name: "Mouse", Price: 19.99, Stock: 3},
	}
}

func TestBuildOrderItemsSnapshots(t *testing.T) {
	items, err := BuildOrderItems([]OrderItemRequest{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 1},
	}, catalog())
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Snapshot fields come from the catalog, never the request.
	assert.Equal(t, int64(1), items[0].ProductID)
	assert.Equal(t, int64(10), items[0].VendorID)
	assert.Equal(t, "Keyboard", items[0].ProductName)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 49.99, items[0].UnitPrice)

	assert.InDelta(t, 3*49.99, items[0].Subtotal(), 1e-9)
	assert.InDelta(t, 3*49.99+19.99, OrderTotal(items), 1e-9)
}

func TestBuildOrderItemsEmptyCart(t *testing.T) {
	_, err := BuildOrderItems(nil, catalog())
	assert.Error(t, err)
}

func TestBuildOrderItemsUnknownProduct(t *testing.T) {
	_, err := BuildOrderItems([]OrderItemRequest{{ProductID: 99, Quantity: 1}}, catalog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid or inactive")
}

func TestBuildOrderItemsNonPositiveQuantity(t *testing.T) {
	for _, qty := range []int{0, -1} {
		_, err := BuildOrderItems([]OrderItemRequest{{ProductID: 1, Quantity: qty}}, catalog())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "greater than 0")
	}
}

func TestBuildOrderItemsInsufficientStockNamesProduct(t *testing.T) {
	_, err := BuildOrderItems([]OrderItemRequest{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 4}, // only 3 in stock
	}, catalog())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Mouse")
}

func TestBuildOrderItemsExactStockAllowed(t *testing.T) {
	items, err := BuildOrderItems([]OrderItemRequest{{ProductID: 2, Quantity: 3}}, catalog())
	require.NoError(t, err)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestOrderTotalEmpty(t *testing.T) {
	assert.Zero(t, OrderTotal(nil))
}
