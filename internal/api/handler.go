package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rbpanchal/medi-match/internal/agent"
	"github.com/rbpanchal/medi-match/internal/identity"
	"github.com/rbpanchal/medi-match/internal/memory"
	"github.com/rbpanchal/medi-match/internal/shop"
	"go.uber.org/zap"
)

const (
	safeChatReply       = "Sorry, I couldn't process that right now."
	defaultProductLimit = 100
	maxProductLimit     = 500
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// Resolver answers chat messages.
type Resolver interface {
	Resolve(ctx context.Context, userID, message string) (*agent.Response, error)
}

// Backend is the persistence behind the storefront endpoints.
type Backend interface {
	ListProducts(ctx context.Context, limit int) ([]shop.Product, error)
	GetProduct(ctx context.Context, id string) (*shop.Product, error)

	CartItems(ctx context.Context, userID string) ([]shop.CartItem, error)
	AddVariant(ctx context.Context, userID, variantID string, qty int) error
	UpdateQuantity(ctx context.Context, userID, itemID string, qty int) error
	RemoveItem(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
	CreateQuotation(ctx context.Context, userID string) (*shop.Quotation, error)
	Checkout(ctx context.Context, userID, quoteID string) (*shop.Order, error)

	OrdersForUser(ctx context.Context, userID string) ([]shop.OrderSummary, error)
	OrderDetails(ctx context.Context, userID, orderID string) (*shop.Order, error)

	RecentTurns(ctx context.Context, userID string, limit int) ([]memory.ChatTurn, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	resolver Resolver
	backend  Backend
	origins  []string
	logger   *zap.Logger
}

// NewHandler creates a new API handler. allowedOrigins defaults to "*".
func NewHandler(resolver Resolver, backend Backend, allowedOrigins []string, logger *zap.Logger) *Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return &Handler{resolver: resolver, backend: backend, origins: allowedOrigins, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", identity.HeaderName},
		AllowCredentials: true,
	}))
	r.Use(identity.Middleware)

	r.Route("/ai", func(r chi.Router) {
		r.Post("/chat", h.chat)
		r.With(identity.RequireUser).Get("/history", h.history)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(identity.RequireUser)

			r.Get("/cart", h.getCart)
			r.Post("/cart/add", h.addToCart)
			r.Put("/cart/update", h.updateCart)
			r.Delete("/cart/remove/{itemID}", h.removeFromCart)
			r.Delete("/cart/clear", h.clearCart)
			r.Post("/cart/quotation", h.createQuotation)
			r.Post("/cart/checkout/{quoteID}", h.checkout)

			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
		})
	})

	return r
}

// requestLogger logs one line per request at Info, or Warn for 5xx.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote", r.RemoteAddr),
		}
		if ww.Status() >= http.StatusInternalServerError {
			h.logger.Warn("request", fields...)
			return
		}
		h.logger.Info("request", fields...)
	})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "medi-match"})
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		userID = strings.TrimSpace(req.UserID)
	}
	if userID == "" {
		userID = uuid.New().String()
	}

	resp, err := h.resolver.Resolve(r.Context(), userID, req.Message)
	if err != nil {
		h.logger.Error("chat resolution failed", zap.String("user", userID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, agent.Response{Response: safeChatReply, Actions: []agent.Action{}})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultHistoryLimit, maxHistoryLimit)
	turns, err := h.backend.RecentTurns(r.Context(), identity.UserIDFromContext(r.Context()), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if turns == nil {
		turns = []memory.ChatTurn{}
	}
	writeJSON(w, http.StatusOK, turns)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.backend.ListProducts(r.Context(), queryLimit(r, defaultProductLimit, maxProductLimit))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if products == nil {
		products = []shop.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.backend.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type cartResponse struct {
	Items []shop.CartItem `json:"items"`
	Total float64         `json:"total"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.backend.CartItems(r.Context(), identity.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := cartResponse{Items: items}
	if resp.Items == nil {
		resp.Items = []shop.CartItem{}
	}
	for _, it := range items {
		resp.Total += it.Price * float64(it.Quantity)
	}
	writeJSON(w, http.StatusOK, resp)
}

type addToCartRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.VariantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "variant_id is required"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := h.backend.AddVariant(r.Context(), identity.UserIDFromContext(r.Context()), req.VariantID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

type updateCartRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) updateCart(w http.ResponseWriter, r *http.Request) {
	var req updateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item_id is required"})
		return
	}
	if err := h.backend.UpdateQuantity(r.Context(), identity.UserIDFromContext(r.Context()), req.ItemID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	err := h.backend.RemoveItem(r.Context(), identity.UserIDFromContext(r.Context()), chi.URLParam(r, "itemID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.Clear(r.Context(), identity.UserIDFromContext(r.Context())); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) createQuotation(w http.ResponseWriter, r *http.Request) {
	q, err := h.backend.CreateQuotation(r.Context(), identity.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	order, err := h.backend.Checkout(r.Context(), identity.UserIDFromContext(r.Context()), chi.URLParam(r, "quoteID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.backend.OrdersForUser(r.Context(), identity.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if orders == nil {
		orders = []shop.OrderSummary{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.backend.OrderDetails(r.Context(), identity.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func queryLimit(r *http.Request, fallback, ceiling int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return fallback
	}
	return min(n, ceiling)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shop.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shop.ErrInsufficientStock),
		errors.Is(err, shop.ErrEmptyCart),
		errors.Is(err, shop.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, shop.ErrQuotationClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to status codes. Internal errors are logged
// and replaced with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
