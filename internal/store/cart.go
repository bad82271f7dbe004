package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rbpanchal/medi-match/internal/shop"
	"go.uber.org/zap"
)

// documentNumber builds a human-facing number such as QTN-1A2B3C4D.
func documentNumber(prefix string) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getOrCreateCart(ctx context.Context, q querier, userID string) (*shop.Cart, error) {
	var c shop.Cart
	err := q.QueryRow(ctx, `
		INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id::text, user_id, created_at`, userID,
	).Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	return &c, nil
}

// GetOrCreateCart returns the user's cart, creating it on first use.
func (s *Store) GetOrCreateCart(ctx context.Context, userID string) (*shop.Cart, error) {
	return getOrCreateCart(ctx, s.db, userID)
}

func cartItems(ctx context.Context, q querier, cartID string) ([]shop.CartItem, error) {
	rows, err := q.Query(ctx, `
		SELECT ci.id::text, v.id::text, v.variant_name, p.id::text, p.name, v.price::float8, ci.quantity,
		       (SELECT pi.image_url FROM product_images pi
		         WHERE pi.product_id = p.id
		         ORDER BY pi.is_primary DESC, pi.position, pi.id
		         LIMIT 1)
		FROM cart_items ci
		JOIN product_variants v ON v.id = ci.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE ci.cart_id::text = $1
		ORDER BY ci.added_at, ci.id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var items []shop.CartItem
	for rows.Next() {
		var it shop.CartItem
		if err := rows.Scan(&it.ID, &it.VariantID, &it.VariantName, &it.ProductID, &it.ProductName,
			&it.Price, &it.Quantity, &it.Image); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart items: %w", err)
	}
	return items, nil
}

// CartItems returns the lines of the user's cart in the order they were added.
func (s *Store) CartItems(ctx context.Context, userID string) ([]shop.CartItem, error) {
	cart, err := s.GetOrCreateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return cartItems(ctx, s.db, cart.ID)
}

// AddVariant puts qty units of a variant in the user's cart, merging with an
// existing line. The merged quantity may not exceed stock.
func (s *Store) AddVariant(ctx context.Context, userID, variantID string, qty int) error {
	if qty < 1 {
		return shop.ErrInvalidQuantity
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add to cart: %w", err)
	}
	defer tx.Rollback(ctx)

	cart, err := getOrCreateCart(ctx, tx, userID)
	if err != nil {
		return err
	}

	var stock int
	// Lock the variant so concurrent first adds see each other's lines.
	err = tx.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id::text = $1 FOR UPDATE`, variantID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load variant: %w", err)
	}

	var existing int
	err = tx.QueryRow(ctx, `
		SELECT quantity FROM cart_items
		WHERE cart_id::text = $1 AND variant_id::text = $2
		FOR UPDATE`, cart.ID, variantID).Scan(&existing)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load cart line: %w", err)
	}
	if existing+qty > stock {
		return shop.ErrInsufficientStock
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO cart_items (cart_id, variant_id, quantity)
		VALUES ($1::uuid, $2::uuid, $3)
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		cart.ID, variantID, qty)
	if err != nil {
		return fmt.Errorf("add cart line: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit add to cart: %w", err)
	}
	s.logger.Debug("cart line added",
		zap.String("user", userID), zap.String("variant", variantID), zap.Int("qty", qty))
	return nil
}

// UpdateQuantity sets the quantity of a cart line; zero or less removes it.
func (s *Store) UpdateQuantity(ctx context.Context, userID, itemID string, qty int) error {
	if qty <= 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}
	var stock int
	err := s.db.QueryRow(ctx, `
		SELECT v.stock
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		JOIN product_variants v ON v.id = ci.variant_id
		WHERE ci.id::text = $1 AND c.user_id = $2`, itemID, userID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return shop.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load cart line: %w", err)
	}
	if qty > stock {
		return shop.ErrInsufficientStock
	}

	_, err = s.db.Exec(ctx, `UPDATE cart_items SET quantity = $1 WHERE id::text = $2`, qty, itemID)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	return nil
}

// RemoveItem deletes one line from the user's cart.
func (s *Store) RemoveItem(ctx context.Context, userID, itemID string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND ci.id::text = $1 AND c.user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shop.ErrNotFound
	}
	return nil
}

// Clear empties the user's cart. Clearing an empty cart is not an error.
func (s *Store) Clear(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM cart_items ci
		USING carts c
		WHERE ci.cart_id = c.id AND c.user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// CreateQuotation freezes the current cart into a priced quotation. The cart
// itself is left untouched.
func (s *Store) CreateQuotation(ctx context.Context, userID string) (*shop.Quotation, error) {
	items, err := s.CartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, shop.ErrEmptyCart
	}

	q := shop.Quotation{
		UserID:      userID,
		QuoteNumber: documentNumber("QTN"),
		Snapshot:    shop.Snapshot{GeneratedAt: time.Now().UTC()},
		Status:      shop.QuotationGenerated,
	}
	for _, it := range items {
		line := shop.QuoteLine{
			VariantID:   it.VariantID,
			VariantName: it.VariantName,
			ProductName: it.ProductName,
			Price:       it.Price,
			Quantity:    it.Quantity,
			LineTotal:   it.Price * float64(it.Quantity),
		}
		q.Snapshot.Items = append(q.Snapshot.Items, line)
		q.Total += line.LineTotal
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO quotations (user_id, quote_number, cart_snapshot, total_amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at`,
		q.UserID, q.QuoteNumber, q.Snapshot, q.Total, q.Status,
	).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert quotation: %w", err)
	}
	s.logger.Info("quotation created",
		zap.String("user", userID), zap.String("quote", q.QuoteNumber), zap.Float64("total", q.Total))
	return &q, nil
}
