//go:build integration

package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rbpanchal/medi-match/internal/memory"
	"github.com/rbpanchal/medi-match/internal/shop"
	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("medimatch_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pg connection string: %v", err)
	}
	s, err := New(ctx, dsn, 4, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)

	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// A second run must be harmless.
	if err := s.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("Migrate twice: %v", err)
	}
	return s
}

type seeded struct {
	bedID, bedVariant, monitorVariant string
}

func seed(t *testing.T, s *Store) seeded {
	t.Helper()
	ctx := context.Background()
	var out seeded

	err := s.db.QueryRow(ctx, `
		INSERT INTO products (name, description, base_price) VALUES
		('Fowler Bed', 'Manual ICU bed with side rails', 42000)
		RETURNING id::text`).Scan(&out.bedID)
	if err != nil {
		t.Fatalf("seed bed: %v", err)
	}
	var monitorID string
	err = s.db.QueryRow(ctx, `
		INSERT INTO products (name, description, base_price) VALUES
		('Patient Monitor', 'Five parameter bedside monitor', 65000)
		RETURNING id::text`).Scan(&monitorID)
	if err != nil {
		t.Fatalf("seed monitor: %v", err)
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO products (name, description, is_active) VALUES ('Retired Bed', 'old', FALSE)`); err != nil {
		t.Fatalf("seed inactive: %v", err)
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO product_images (product_id, image_url, is_primary, position) VALUES
		($1::uuid, 'https://img/bed-2.jpg', FALSE, 0),
		($1::uuid, 'https://img/bed-1.jpg', TRUE, 1)`, out.bedID); err != nil {
		t.Fatalf("seed images: %v", err)
	}
	if err := s.db.QueryRow(ctx, `
		INSERT INTO product_variants (product_id, variant_name, price, stock)
		VALUES ($1::uuid, 'Standard', 42000, 5) RETURNING id::text`, out.bedID).Scan(&out.bedVariant); err != nil {
		t.Fatalf("seed bed variant: %v", err)
	}
	if err := s.db.QueryRow(ctx, `
		INSERT INTO product_variants (product_id, variant_name, price, stock)
		VALUES ($1::uuid, '5 Para', 65000, 1) RETURNING id::text`, monitorID).Scan(&out.monitorVariant); err != nil {
		t.Fatalf("seed monitor variant: %v", err)
	}
	return out
}

func TestCatalogQueries(t *testing.T) {
	s := newTestStore(t)
	ids := seed(t, s)
	ctx := context.Background()

	all, err := s.SearchByName(ctx, "all")
	if err != nil {
		t.Fatalf("SearchByName all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 active products, got %d", len(all))
	}

	beds, err := s.SearchByName(ctx, "FOWLER")
	if err != nil || len(beds) != 1 {
		t.Fatalf("SearchByName fowler = %v, %v", beds, err)
	}
	if beds[0].Image == nil || *beds[0].Image != "https://img/bed-1.jpg" {
		t.Errorf("primary image not preferred: %v", beds[0].Image)
	}

	// "bedside" only appears in the monitor description.
	got, err := s.SuggestByKeyword(ctx, "bedside icu")
	if err != nil {
		t.Fatalf("SuggestByKeyword: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Patient Monitor" {
		t.Errorf("SuggestByKeyword = %+v", got)
	}

	product, err := s.GetProduct(ctx, ids.bedID)
	if err != nil || len(product.Variants) != 1 {
		t.Fatalf("GetProduct = %+v, %v", product, err)
	}
	if _, err := s.GetProduct(ctx, "not-a-uuid"); !errors.Is(err, shop.ErrNotFound) {
		t.Errorf("GetProduct unknown = %v", err)
	}

	byIDs, err := s.ProductsByIDs(ctx, []string{ids.bedID, "missing"})
	if err != nil || len(byIDs) != 1 || byIDs[0].ID != ids.bedID {
		t.Errorf("ProductsByIDs = %+v, %v", byIDs, err)
	}
}

func TestCartQuotationCheckout(t *testing.T) {
	s := newTestStore(t)
	ids := seed(t, s)
	ctx := context.Background()
	const user = "user-1"

	if err := s.AddVariant(ctx, user, ids.bedVariant, 2); err != nil {
		t.Fatalf("AddVariant: %v", err)
	}
	if err := s.AddVariant(ctx, user, ids.bedVariant, 1); err != nil {
		t.Fatalf("AddVariant merge: %v", err)
	}
	if err := s.AddVariant(ctx, user, ids.bedVariant, 3); !errors.Is(err, shop.ErrInsufficientStock) {
		t.Fatalf("AddVariant over stock = %v", err)
	}
	if err := s.AddVariant(ctx, user, ids.monitorVariant, 1); err != nil {
		t.Fatalf("AddVariant monitor: %v", err)
	}

	items, err := s.CartItems(ctx, user)
	if err != nil || len(items) != 2 {
		t.Fatalf("CartItems = %+v, %v", items, err)
	}
	if items[0].Quantity != 3 {
		t.Errorf("merged quantity = %d, want 3", items[0].Quantity)
	}

	quote, err := s.CreateQuotation(ctx, user)
	if err != nil {
		t.Fatalf("CreateQuotation: %v", err)
	}
	if quote.Total != 3*42000+65000 {
		t.Errorf("quote total = %v", quote.Total)
	}

	order, err := s.Checkout(ctx, user, quote.ID)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if len(order.Items) != 2 || order.Total != quote.Total {
		t.Errorf("order = %+v", order)
	}
	if _, err := s.Checkout(ctx, user, quote.ID); !errors.Is(err, shop.ErrQuotationClosed) {
		t.Errorf("second checkout = %v", err)
	}

	items, _ = s.CartItems(ctx, user)
	if len(items) != 0 {
		t.Errorf("cart not cleared: %+v", items)
	}
	variants, _ := s.FetchVariants(ctx, ids.bedID)
	if variants[0].Stock != 2 {
		t.Errorf("bed stock = %d, want 2", variants[0].Stock)
	}

	orders, err := s.OrdersForUser(ctx, user)
	if err != nil || len(orders) != 1 {
		t.Fatalf("OrdersForUser = %+v, %v", orders, err)
	}
	detail, err := s.OrderDetails(ctx, user, orders[0].ID)
	if err != nil || detail.QuotationID != quote.ID {
		t.Errorf("OrderDetails = %+v, %v", detail, err)
	}
	if _, err := s.OrderDetails(ctx, "someone-else", orders[0].ID); !errors.Is(err, shop.ErrNotFound) {
		t.Errorf("foreign order = %v", err)
	}

	if _, err := s.CreateQuotation(ctx, user); !errors.Is(err, shop.ErrEmptyCart) {
		t.Errorf("quotation of empty cart = %v", err)
	}
}

func TestConcurrentFirstAddsRespectStock(t *testing.T) {
	s := newTestStore(t)
	ids := seed(t, s)
	ctx := context.Background()
	const user = "user-race"

	// Stock is 5; only one of two adds of 3 can fit.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.AddVariant(ctx, user, ids.bedVariant, 3)
		}()
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shop.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("AddVariant: %v", err)
		}
	}
	if ok != 1 || short != 1 {
		t.Fatalf("results = %v", errs)
	}
	items, err := s.CartItems(ctx, user)
	if err != nil || len(items) != 1 || items[0].Quantity != 3 {
		t.Errorf("CartItems = %+v, %v", items, err)
	}
}

func TestCartEdits(t *testing.T) {
	s := newTestStore(t)
	ids := seed(t, s)
	ctx := context.Background()
	const user = "user-2"

	if err := s.AddVariant(ctx, user, ids.bedVariant, 1); err != nil {
		t.Fatalf("AddVariant: %v", err)
	}
	items, _ := s.CartItems(ctx, user)
	itemID := items[0].ID

	if err := s.UpdateQuantity(ctx, user, itemID, 4); err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if err := s.UpdateQuantity(ctx, user, itemID, 6); !errors.Is(err, shop.ErrInsufficientStock) {
		t.Errorf("UpdateQuantity over stock = %v", err)
	}
	if err := s.UpdateQuantity(ctx, "intruder", itemID, 1); !errors.Is(err, shop.ErrNotFound) {
		t.Errorf("UpdateQuantity foreign = %v", err)
	}
	if err := s.RemoveItem(ctx, user, itemID); err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if err := s.RemoveItem(ctx, user, itemID); !errors.Is(err, shop.ErrNotFound) {
		t.Errorf("RemoveItem twice = %v", err)
	}
	if err := s.Clear(ctx, user); err != nil {
		t.Errorf("Clear empty cart: %v", err)
	}
}

func TestChatTurns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sink := memory.NewSink(s, zap.NewNop())

	sink.Save(ctx, "u", memory.RoleUser, "hello")
	sink.Save(ctx, "u", memory.RoleAssistant, "hi")
	sink.Close()

	turns, err := s.RecentTurns(ctx, "u", 10)
	if err != nil || len(turns) != 2 {
		t.Fatalf("RecentTurns = %+v, %v", turns, err)
	}
	if turns[0].Role != memory.RoleUser {
		t.Errorf("turns out of order: %+v", turns)
	}
}
