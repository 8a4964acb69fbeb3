package consumers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"marketplace/config"
	"marketplace/models"
	"marketplace/rabbitmq"
	"marketplace/repository"
)

// OrderConsumer processes order lifecycle events, including the delayed
// payment check that auto-cancels orders nobody paid for.
type OrderConsumer struct {
	orders repository.OrderRepository
	cfg    *config.Config
}

func NewOrderConsumer(orders repository.OrderRepository, cfg *config.Config) *OrderConsumer {
	return &OrderConsumer{orders: orders, cfg: cfg}
}

func (oc *OrderConsumer) Start(ch *amqp.Channel) {
	msgs, err := ch.Consume(
		oc.cfg.OrderQueue,
		"marketplace", // consumer tag
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,
	)
	if err != nil {
		log.Fatalf("Failed to register consumer: %v", err)
	}

	go func() {
		for msg := range msgs {
			oc.processOrderMessage(msg)
		}
	}()

	dlqMsgs, err := ch.Consume(
		oc.cfg.DeadLetterQueue,
		"marketplace-dlq", // consumer tag
		false,             // auto-ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,
	)
	if err != nil {
		log.Printf("Failed to register DLQ consumer: %v", err)
		return
	}

	go func() {
		for msg := range dlqMsgs {
			processDeadLetterMessage(msg)
		}
	}()
}

func (oc *OrderConsumer) processOrderMessage(msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in message processing: %v", r)
		}
	}()

	parts := strings.Split(string(msg.Body), "|")
	if len(parts) < 2 {
		log.Printf("Invalid message format: %s", msg.Body)
		msg.Nack(false, false)
		return
	}

	orderID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		log.Printf("Invalid order ID: %s", parts[0])
		msg.Nack(false, false)
		return
	}

	eventType := parts[1]
	log.Printf("Processing order event: ID=%d, Type=%s", orderID, eventType)

	switch eventType {
	case rabbitmq.EventOrderCreated:
		oc.handleOrderCreated(orderID)
	case rabbitmq.EventStatusUpdated:
		oc.handleStatusUpdated(orderID)
	case rabbitmq.EventPaymentCheck:
		oc.handlePaymentCheck(orderID)
	default:
		log.Printf("Unknown event type: %s", eventType)
	}

	msg.Ack(false)
}

func processDeadLetterMessage(msg amqp.Delivery) {
	log.Printf("Received dead letter: %s", msg.Body)
	msg.Ack(false)
}

func (oc *OrderConsumer) handleOrderCreated(orderID int64) {
	log.Printf("Handling order created: %d", orderID)
}

func (oc *OrderConsumer) handleStatusUpdated(orderID int64) {
	order, err := oc.orders.GetByID(context.Background(), orderID)
	if err != nil {
		log.Printf("Failed to get order %d: %v", orderID, err)
		return
	}
	log.Printf("Handling status update for order %d: %s", orderID, order.Status)
}

// handlePaymentCheck cancels orders still Pending when the payment
// window closes. Cancellation goes through the order repository so
// stock is restored like any other cancel.
func (oc *OrderConsumer) handlePaymentCheck(orderID int64) {
	order, err := oc.orders.GetByID(context.Background(), orderID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Printf("Failed to get order %d: %v", orderID, err)
		}
		return
	}

	if order.Status != models.StatusPending {
		return
	}

	if _, err := oc.orders.UpdateStatus(context.Background(), orderID, models.StatusCancelled); err != nil {
		log.Printf("Failed to auto-cancel order %d: %v", orderID, err)
		return
	}
	log.Printf("Auto-cancelled order %d due to non-payment", orderID)
}
