package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rbpanchal/medi-match/internal/shop"
)

const (
	searchAllLimit   = 100
	searchLimit      = 50
	keywordLimit     = 20
	keywordMaxWords  = 6
	keywordMinLength = 4
)

// productColumns selects a product row with its primary image, falling back
// to the first image by position.
const productColumns = `
	p.id::text, p.name, p.description, p.base_price::float8, p.is_active,
	(SELECT pi.image_url FROM product_images pi
	  WHERE pi.product_id = p.id
	  ORDER BY pi.is_primary DESC, pi.position, pi.id
	  LIMIT 1)`

func scanProducts(rows pgx.Rows) ([]shop.Product, error) {
	defer rows.Close()
	var products []shop.Product
	for rows.Next() {
		var p shop.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.IsActive, &p.Image); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// likePattern escapes LIKE metacharacters and wraps term for a substring match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

// FetchActive returns up to limit active products, newest first.
func (s *Store) FetchActive(ctx context.Context, limit int) ([]shop.Product, error) {
	if limit <= 0 {
		limit = searchAllLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.is_active
		ORDER BY p.created_at DESC, p.name
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch active products: %w", err)
	}
	return scanProducts(rows)
}

// SearchByName matches active products whose name contains term, ignoring
// case. An empty term or "all" lists the catalog.
func (s *Store) SearchByName(ctx context.Context, term string) ([]shop.Product, error) {
	term = strings.TrimSpace(term)
	if term == "" || strings.EqualFold(term, "all") {
		return s.FetchActive(ctx, searchAllLimit)
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.is_active AND p.name ILIKE $1 ESCAPE '\'
		ORDER BY p.name
		LIMIT $2`, likePattern(term), searchLimit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return scanProducts(rows)
}

// keywordWords keeps the significant words of a free-text keyword.
func keywordWords(keyword string) []string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(keyword)) {
		w = strings.Trim(w, ".,;:!?\"'()[]")
		if len(w) < keywordMinLength {
			continue
		}
		words = append(words, w)
		if len(words) == keywordMaxWords {
			break
		}
	}
	return words
}

// SuggestByKeyword matches each significant word against product names, then
// descriptions when the name finds nothing. Results are deduplicated by id in
// first-seen order.
func (s *Store) SuggestByKeyword(ctx context.Context, keyword string) ([]shop.Product, error) {
	words := keywordWords(keyword)
	if len(words) == 0 {
		return s.FetchActive(ctx, keywordLimit)
	}

	seen := make(map[string]bool)
	var out []shop.Product
	for _, w := range words {
		matches, err := s.matchColumn(ctx, "name", w)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			if matches, err = s.matchColumn(ctx, "description", w); err != nil {
				return nil, err
			}
		}
		for _, p := range matches {
			if !seen[p.ID] {
				seen[p.ID] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (s *Store) matchColumn(ctx context.Context, column, word string) ([]shop.Product, error) {
	var query string
	switch column {
	case "name":
		query = `SELECT ` + productColumns + ` FROM products p
			WHERE p.is_active AND p.name ILIKE $1 ESCAPE '\' ORDER BY p.name LIMIT $2`
	case "description":
		query = `SELECT ` + productColumns + ` FROM products p
			WHERE p.is_active AND p.description ILIKE $1 ESCAPE '\' ORDER BY p.name LIMIT $2`
	default:
		return nil, fmt.Errorf("match products: unsupported column %q", column)
	}
	rows, err := s.db.Query(ctx, query, likePattern(word), keywordLimit)
	if err != nil {
		return nil, fmt.Errorf("match products by %s: %w", column, err)
	}
	return scanProducts(rows)
}

// ProductsByIDs returns the active products among ids, in the order given.
func (s *Store) ProductsByIDs(ctx context.Context, ids []string) ([]shop.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.is_active AND p.id::text = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("products by ids: %w", err)
	}
	found, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]shop.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]shop.Product, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
			delete(byID, id)
		}
	}
	return out, nil
}

// FetchVariants returns all variants of a product, cheapest first.
func (s *Store) FetchVariants(ctx context.Context, productID string) ([]shop.Variant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, product_id::text, variant_name, description, price::float8, stock
		FROM product_variants
		WHERE product_id::text = $1
		ORDER BY price, variant_name`, productID)
	if err != nil {
		return nil, fmt.Errorf("fetch variants: %w", err)
	}
	return scanVariants(rows)
}

func scanVariants(rows pgx.Rows) ([]shop.Variant, error) {
	defer rows.Close()
	var variants []shop.Variant
	for rows.Next() {
		var v shop.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.VariantName, &v.Description, &v.Price, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return variants, nil
}

// ListProducts returns active products with their in-stock variants.
func (s *Store) ListProducts(ctx context.Context, limit int) ([]shop.Product, error) {
	products, err := s.FetchActive(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return products, nil
	}
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	rows, err := s.db.Query(ctx, `
		SELECT id::text, product_id::text, variant_name, description, price::float8, stock
		FROM product_variants
		WHERE product_id::text = ANY($1) AND stock > 0
		ORDER BY price, variant_name`, ids)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	variants, err := scanVariants(rows)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[string][]shop.Variant)
	for _, v := range variants {
		byProduct[v.ProductID] = append(byProduct[v.ProductID], v)
	}
	for i := range products {
		products[i].Variants = byProduct[products[i].ID]
	}
	return products, nil
}

// GetProduct returns an active product with its in-stock variants.
func (s *Store) GetProduct(ctx context.Context, id string) (*shop.Product, error) {
	var p shop.Product
	err := s.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products p
		WHERE p.is_active AND p.id::text = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.IsActive, &p.Image)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shop.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	variants, err := s.FetchVariants(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		if v.InStock() {
			p.Variants = append(p.Variants, v)
		}
	}
	return &p, nil
}
