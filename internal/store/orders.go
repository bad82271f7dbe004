package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rbpanchal/medi-match/internal/shop"
	"go.uber.org/zap"
)

// OrdersForUser returns the user's orders, newest first.
func (s *Store) OrdersForUser(ctx context.Context, userID string) ([]shop.OrderSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, order_number, total_amount::float8, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []shop.OrderSummary{}
	for rows.Next() {
		var o shop.OrderSummary
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.Total, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// OrderDetails returns one of the user's orders with its lines.
func (s *Store) OrderDetails(ctx context.Context, userID, orderID string) (*shop.Order, error) {
	var (
		o       shop.Order
		quoteID *string
	)
	err := s.db.QueryRow(ctx, `
		SELECT id::text, order_number, total_amount::float8, status, created_at, quotation_id::text
		FROM orders
		WHERE id::text = $1 AND user_id = $2`, orderID, userID,
	).Scan(&o.ID, &o.OrderNumber, &o.Total, &o.Status, &o.CreatedAt, &quoteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shop.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if quoteID != nil {
		o.QuotationID = *quoteID
	}

	rows, err := s.db.Query(ctx, `
		SELECT id::text, product_name, variant_name, price::float8, quantity
		FROM order_items
		WHERE order_id::text = $1
		ORDER BY product_name, variant_name`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	o.Items = []shop.OrderItem{}
	for rows.Next() {
		var it shop.OrderItem
		if err := rows.Scan(&it.ID, &it.ProductName, &it.VariantName, &it.Price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.LineTotal = it.Price * float64(it.Quantity)
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return &o, nil
}

// Checkout turns a quotation into an order. Stock is decremented for every
// line, the quotation is closed and the cart cleared, all in one transaction.
func (s *Store) Checkout(ctx context.Context, userID, quoteID string) (*shop.Order, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin checkout: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		snapshot shop.Snapshot
		total    float64
		status   string
	)
	err = tx.QueryRow(ctx, `
		SELECT cart_snapshot, total_amount::float8, status
		FROM quotations
		WHERE id::text = $1 AND user_id = $2
		FOR UPDATE`, quoteID, userID,
	).Scan(&snapshot, &total, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shop.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quotation: %w", err)
	}
	if status != shop.QuotationGenerated {
		return nil, shop.ErrQuotationClosed
	}
	if len(snapshot.Items) == 0 {
		return nil, shop.ErrEmptyCart
	}

	for _, line := range snapshot.Items {
		tag, err := tx.Exec(ctx, `
			UPDATE product_variants SET stock = stock - $1
			WHERE id::text = $2 AND stock >= $1`, line.Quantity, line.VariantID)
		if err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("%w: %s %s", shop.ErrInsufficientStock, line.ProductName, line.VariantName)
		}
	}

	o := shop.Order{QuotationID: quoteID}
	o.OrderNumber = documentNumber("ORD")
	o.Total = total
	o.Status = shop.OrderPending
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, quotation_id, order_number, total_amount, status)
		VALUES ($1, $2::uuid, $3, $4, $5)
		RETURNING id::text, created_at`,
		userID, quoteID, o.OrderNumber, o.Total, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, line := range snapshot.Items {
		var itemID string
		err := tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, variant_id, product_name, variant_name, quantity, price)
			VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
			RETURNING id::text`,
			o.ID, line.VariantID, line.ProductName, line.VariantName, line.Quantity, line.Price,
		).Scan(&itemID)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		o.Items = append(o.Items, shop.OrderItem{
			ID:          itemID,
			ProductName: line.ProductName,
			VariantName: line.VariantName,
			Price:       line.Price,
			Quantity:    line.Quantity,
			LineTotal:   line.LineTotal,
		})
	}

	if _, err := tx.Exec(ctx, `UPDATE quotations SET status = $1 WHERE id::text = $2`,
		shop.QuotationOrdered, quoteID); err != nil {
		return nil, fmt.Errorf("close quotation: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit checkout: %w", err)
	}
	s.logger.Info("order placed",
		zap.String("user", userID), zap.String("order", o.OrderNumber), zap.Float64("total", o.Total))
	return &o, nil
}
