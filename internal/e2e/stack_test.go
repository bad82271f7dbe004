//go:build integration

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rbpanchal/medi-match/internal/agent"
	"github.com/rbpanchal/medi-match/internal/api"
	"github.com/rbpanchal/medi-match/internal/memory"
	"github.com/rbpanchal/medi-match/internal/provider"
	"github.com/rbpanchal/medi-match/internal/shop"
	pgstore "github.com/rbpanchal/medi-match/internal/store"
	"github.com/rbpanchal/medi-match/internal/tools"
	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

const (
	fowlerVariant  = "10000000-0000-0000-0000-000000000001"
	stackTestUser  = "clinic-buyer"
	seedScriptPath = "testdata/seed.sql"
)

// startStack runs the whole service in-process against a Postgres
// testcontainer. The generative provider has no key, so every extraction
// falls back to the rules.
func startStack(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("medimatch_e2e"),
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

	store, err := pgstore.New(ctx, dsn, 4, logger)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	seedCatalog(t, dsn)

	router := provider.NewRouter(logger)
	router.Register(provider.NewGeminiProvider(provider.ProviderConfig{ID: "gemini", Name: "gemini"}, logger))

	toolbox := tools.New(store, logger)
	engine := agent.NewEngine(toolbox, toolbox, router, logger, agent.WithRecorder(memory.NewSink(store, logger)))
	handler := api.NewHandler(engine, store, nil, logger)

	ts := httptest.NewServer(handler.Router())
	t.Cleanup(ts.Close)
	return ts
}

func seedCatalog(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()
	script, err := os.ReadFile(seedScriptPath)
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, string(script)); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func call(t *testing.T, ts *httptest.Server, method, path string, body, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", stackTestUser)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func chat(t *testing.T, ts *httptest.Server, message string) agent.Response {
	t.Helper()
	var resp agent.Response
	if status := call(t, ts, http.MethodPost, "/ai/chat", map[string]string{"message": message}, &resp); status != http.StatusOK {
		t.Fatalf("chat %q: status %d", message, status)
	}
	return resp
}

func TestChatToOrder(t *testing.T) {
	ts := startStack(t)

	resp := chat(t, ts, "Show all products")
	if len(resp.Actions) != 1 || len(resp.Actions[0].Products) != 5 {
		t.Fatalf("show products = %+v", resp.Actions)
	}

	resp = chat(t, ts, "Compare Semi-Fowler vs Full-Fowler")
	if len(resp.Actions) != 1 || resp.Actions[0].Data == nil || len(resp.Actions[0].Data.Products) != 2 {
		t.Fatalf("compare = %+v", resp.Actions)
	}

	resp = chat(t, ts, "add 2 fowler beds to cart")
	if len(resp.Actions) != 1 || resp.Actions[0].Type != agent.ActionAddToCart {
		t.Fatalf("add to cart = %+v (%s)", resp.Actions, resp.Response)
	}
	line := resp.Actions[0].Variants[0]
	if line.VariantID != fowlerVariant || line.Qty != 2 {
		t.Fatalf("variant line = %+v", line)
	}

	// The assistant only proposes; the storefront performs the add.
	var cart struct {
		Items []shop.CartItem `json:"items"`
	}
	call(t, ts, http.MethodGet, "/api/cart", nil, &cart)
	if len(cart.Items) != 0 {
		t.Fatalf("cart mutated by chat: %+v", cart.Items)
	}

	if status := call(t, ts, http.MethodPost, "/api/cart/add", map[string]any{"variant_id": line.VariantID, "quantity": line.Qty}, nil); status != http.StatusOK {
		t.Fatalf("cart add status = %d", status)
	}

	var quote shop.Quotation
	if status := call(t, ts, http.MethodPost, "/api/cart/quotation", nil, &quote); status != http.StatusCreated {
		t.Fatalf("quotation status = %d", status)
	}
	if quote.Total != 84000 {
		t.Errorf("quotation total = %v", quote.Total)
	}

	var order shop.Order
	if status := call(t, ts, http.MethodPost, "/api/cart/checkout/"+quote.ID, nil, &order); status != http.StatusCreated {
		t.Fatalf("checkout status = %d", status)
	}

	resp = chat(t, ts, "show my order history")
	if len(resp.Actions) != 1 || resp.Actions[0].Orders[0].OrderNumber != order.OrderNumber {
		t.Errorf("orders = %+v", resp.Actions)
	}

	if turns := waitForHistory(t, ts, 8); len(turns) != 8 {
		t.Errorf("history has %d turns, want 8", len(turns))
	}
}

// waitForHistory polls until want turns are stored; chat turns are written
// asynchronously.
func waitForHistory(t *testing.T, ts *httptest.Server, want int) []memory.ChatTurn {
	t.Helper()
	var turns []memory.ChatTurn
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		turns = nil
		call(t, ts, http.MethodGet, "/ai/history?limit=50", nil, &turns)
		if len(turns) >= want {
			return turns
		}
		time.Sleep(50 * time.Millisecond)
	}
	return turns
}

func TestBackOrderedProduct(t *testing.T) {
	ts := startStack(t)

	resp := chat(t, ts, "add semi-fowler bed to cart")
	if len(resp.Actions) != 0 {
		t.Errorf("expected no action for an out-of-stock product, got %+v", resp.Actions)
	}
}
