package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/models"
)

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepo{db: db}
}

// Create validates the cart against live stock, snapshots prices and
// persists the order. Validation, the order insert and every stock
// decrement run inside one transaction, so a concurrent order on the
// same product either sees the decremented stock or waits on the row
// locks; oversell is not possible.
func (r *orderRepo) Create(ctx context.Context, customerID int64, reqs []models.OrderItemRequest,
	address models.ShippingAddress, paymentMethod string) (*models.Order, error) {

	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer id must be positive", ErrInvalidInput)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}
	if err := address.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	if paymentMethod == "" {
		paymentMethod = "COD"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(reqs))
	seen := make(map[int64]struct{}, len(reqs))
	for _, req := range reqs {
		if _, dup := seen[req.ProductID]; dup {
			return nil, fmt.Errorf("%w: duplicate product in cart", ErrInvalidInput)
		}
		seen[req.ProductID] = struct{}{}
		ids = append(ids, req.ProductID)
	}

	products, err := lockActiveProducts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	if len(products) != len(reqs) {
		return nil, fmt.Errorf("%w: one or more products are invalid or inactive", ErrInvalidInput)
	}

	items, err := models.BuildOrderItems(reqs, products)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	order := &models.Order{
		CustomerID:      customerID,
		Status:          models.StatusPending,
		TotalPrice:      models.OrderTotal(items),
		PaymentMethod:   paymentMethod,
		ShippingAddress: address,
		Items:           items,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (customer_id, status, total_price, payment_method,
			ship_street, ship_city, ship_postal_code, ship_country, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.CustomerID, order.Status.String(), order.TotalPrice, order.PaymentMethod,
		address.Street, address.City, address.PostalCode, address.Country,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	order.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get order id: %w", err)
	}

	for i := range order.Items {
		it := &order.Items[i]
		it.OrderID = order.ID

		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, vendor_id, product_name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?)`,
			it.OrderID, it.ProductID, it.VendorID, it.ProductName, it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		it.ID, err = res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get order item id: %w", err)
		}

		// Guarded decrement: the stock >= quantity check already passed
		// under the row lock, so zero affected rows means a programming
		// error, not a race.
		res, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = stock - ?, updated_at = ?
			WHERE id = ? AND stock >= ?`,
			it.Quantity, time.Now(), it.ProductID, it.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement stock for product %d: %w", it.ProductID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to check stock decrement: %w", err)
		}
		if affected == 0 {
			return nil, fmt.Errorf("%w: insufficient stock for %s", ErrNotEnough, it.ProductName)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	return r.GetByID(ctx, order.ID)
}

// lockActiveProducts fetches the requested products with row locks held
// until the surrounding transaction ends. Inactive and unknown ids are
// simply absent from the result.
func lockActiveProducts(ctx context.Context, tx *sql.Tx, ids []int64) (map[int64]*models.Product, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, vendor_id, name, price, stock
		FROM products
		WHERE id IN (`+placeholders+`) AND is_active = TRUE
		FOR UPDATE`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]*models.Product, len(ids))
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.VendorID, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[p.ID] = &p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	return products, nil
}

// UpdateStatus moves an order to a new status. Entering Cancelled from
// any other status restores every line item's stock in the same
// transaction as the status write; cancelling an already cancelled
// order touches no stock.
func (r *orderRepo) UpdateStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	if _, err := models.ParseOrderStatus(status.String()); err != nil {
		return nil, fmt.Errorf("%w: invalid status value", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM orders WHERE id = ? FOR UPDATE`, id,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}

	from := models.OrderStatus(current)
	if !models.CanTransition(from, status) {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidInput, from, status)
	}

	if models.ShouldRestoreStock(from, status) {
		rows, err := tx.QueryContext(ctx,
			`SELECT product_id, quantity FROM order_items WHERE order_id = ?`, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get order items: %w", err)
		}

		type restore struct {
			productID int64
			quantity  int
		}
		var restores []restore
		for rows.Next() {
			var rs restore
			if err := rows.Scan(&rs.productID, &rs.quantity); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan order item: %w", err)
			}
			restores = append(restores, rs)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to complete row iteration: %w", err)
		}
		rows.Close()

		for _, rs := range restores {
			if _, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = stock + ?, updated_at = ?
				WHERE id = ?`,
				rs.quantity, time.Now(), rs.productID,
			); err != nil {
				return nil, fmt.Errorf("failed to restore stock for product %d: %w", rs.productID, err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		status.String(), time.Now(), id,
	); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status update: %w", err)
	}

	return r.GetByID(ctx, id)
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	orders, err := r.list(ctx, "WHERE o.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNotFound
	}
	return &orders[0], nil
}

func (r *orderRepo) ListAll(ctx context.Context) ([]models.Order, error) {
	return r.list(ctx, "")
}

func (r *orderRepo) ListByCustomer(ctx context.Context, customerID int64) ([]models.Order, error) {
	return r.list(ctx, "WHERE o.customer_id = ?", customerID)
}

// ListByVendor returns orders containing at least one line item owned
// by the vendor.
func (r *orderRepo) ListByVendor(ctx context.Context, vendorID int64) ([]models.Order, error) {
	return r.list(ctx, `
		WHERE o.id IN (SELECT DISTINCT order_id FROM order_items WHERE vendor_id = ?)`,
		vendorID)
}

func (r *orderRepo) list(ctx context.Context, where string, args ...interface{}) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.customer_id, o.status, o.total_price, o.payment_method,
		       o.ship_street, o.ship_city, o.ship_postal_code, o.ship_country,
		       o.created_at, o.updated_at,
		       u.id, u.name, u.email
		FROM orders o
		JOIN users u ON u.id = o.customer_id
		`+where+`
		ORDER BY o.created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	index := make(map[int64]int)
	var ids []interface{}
	for rows.Next() {
		var o models.Order
		var status string
		var customer models.UserSummary
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &status, &o.TotalPrice, &o.PaymentMethod,
			&o.ShippingAddress.Street, &o.ShippingAddress.City,
			&o.ShippingAddress.PostalCode, &o.ShippingAddress.Country,
			&o.CreatedAt, &o.UpdatedAt,
			&customer.ID, &customer.Name, &customer.Email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Status = models.OrderStatus(status)
		o.Customer = &customer
		o.Items = []models.OrderItem{}
		index[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	itemRows, err := r.db.QueryContext(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.vendor_id, oi.product_name,
		       oi.quantity, oi.unit_price,
		       u.id, u.name, u.email
		FROM order_items oi
		LEFT JOIN users u ON u.id = oi.vendor_id
		WHERE oi.order_id IN (`+placeholders+`)
		ORDER BY oi.id`, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it models.OrderItem
		var vendorID sql.NullInt64
		var vendorName, vendorEmail sql.NullString
		if err := itemRows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.VendorID, &it.ProductName,
			&it.Quantity, &it.UnitPrice,
			&vendorID, &vendorName, &vendorEmail,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		it.Vendor = vendorSummary(vendorID, vendorName, vendorEmail)
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to complete row iteration: %w", err)
	}

	return orders, nil
}
