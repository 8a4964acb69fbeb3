package controllers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace/middlewares"
	"marketplace/models"
	"marketplace/rabbitmq"
	"marketplace/repository"
)

// ProductInvalidator is implemented by the cached product repository;
// order handlers call it after stock mutations that bypass the cache.
type ProductInvalidator interface {
	InvalidateProduct(ctx context.Context, id int64)
}

type OrderController struct {
	orders      repository.OrderRepository
	events      *rabbitmq.RabbitMQ
	invalidator ProductInvalidator
}

func NewOrderController(orders repository.OrderRepository, events *rabbitmq.RabbitMQ, invalidator ProductInvalidator) *OrderController {
	return &OrderController{orders: orders, events: events, invalidator: invalidator}
}

type createOrderRequest struct {
	OrderItems      []models.OrderItemRequest `json:"orderItems" binding:"required"`
	ShippingAddress models.ShippingAddress    `json:"shippingAddress" binding:"required"`
	PaymentMethod   string                    `json:"paymentMethod"`
}

func (oc *OrderController) invalidateItems(ctx context.Context, items []models.OrderItem) {
	if oc.invalidator == nil {
		return
	}
	for _, it := range items {
		oc.invalidator.InvalidateProduct(ctx, it.ProductID)
	}
}

func (oc *OrderController) Create(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("create", ok)
	}()

	customerID, ok := middlewares.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	order, err := oc.orders.Create(c.Request.Context(), customerID, req.OrderItems,
		req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}

	oc.invalidateItems(c.Request.Context(), order.Items)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created",
		"order":   order,
	})

	if oc.events != nil {
		priority := 5
		if order.TotalPrice > 1000 {
			priority = 9
		}
		if err := oc.events.PublishOrderEvent(order.ID, priority, rabbitmq.EventOrderCreated); err != nil {
			log.Printf("Failed to publish order created event: %v", err)
		}
		if err := oc.events.PublishPaymentCheck(order.ID); err != nil {
			log.Printf("Failed to publish delayed payment check event: %v", err)
		}
	}
}

func (oc *OrderController) GetMine(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("list_mine", ok)
	}()

	customerID, ok := middlewares.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}

	orders, err := oc.orders.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (oc *OrderController) GetAll(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("list_all", ok)
	}()

	orders, err := oc.orders.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (oc *OrderController) GetVendorOrders(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("list_vendor", ok)
	}()

	vendorID, ok := middlewares.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}

	orders, err := oc.orders.ListByVendor(c.Request.Context(), vendorID)
	if err != nil {
		respondError(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// GetByID serves the order to its owner, any admin, or a vendor with at
// least one line item in it.
func (oc *OrderController) GetByID(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("details", ok)
	}()

	callerID, ok := middlewares.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}
	role, _ := middlewares.CallerRole(c)

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid order ID"})
		return
	}

	order, err := oc.orders.GetByID(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	isOwner := order.CustomerID == callerID
	isAdmin := role == models.RoleAdmin
	isVendorInOrder := false
	for _, it := range order.Items {
		if it.VendorID == callerID {
			isVendorInOrder = true
			break
		}
	}

	if !isOwner && !isAdmin && !isVendorInOrder {
		c.JSON(http.StatusForbidden, gin.H{"message": "Not authorized to view this order"})
		return
	}
	c.JSON(http.StatusOK, order)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (oc *OrderController) UpdateStatus(c *gin.Context) {
	defer func() {
		ok := c.Writer.Status() >= 200 && c.Writer.Status() < 300
		middlewares.RecordOrderOperation("update_status", ok)
	}()

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status value"})
		return
	}

	order, err := oc.orders.UpdateStatus(c.Request.Context(), orderID, status)
	if err != nil {
		respondError(c, err)
		return
	}

	if status == models.StatusCancelled {
		oc.invalidateItems(c.Request.Context(), order.Items)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated",
		"order":   order,
	})

	if oc.events != nil {
		priority := 5
		if status == models.StatusCancelled {
			priority = 8
		}
		if err := oc.events.PublishOrderEvent(orderID, priority, rabbitmq.EventStatusUpdated); err != nil {
			log.Printf("Failed to publish order updated event: %v", err)
		}
	}
}
