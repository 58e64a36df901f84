package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency can serve traffic
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	productService *service.ProductService
	cartService    *service.CartService
	orderService   *service.OrderService
	adminAPIKey    string
	checks         map[string]ReadinessCheck
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	productService *service.ProductService,
	cartService *service.CartService,
	orderService *service.OrderService,
	adminAPIKey string,
) *Handler {
	return &Handler{
		productService: productService,
		cartService:    cartService,
		orderService:   orderService,
		adminAPIKey:    adminAPIKey,
		checks:         make(map[string]ReadinessCheck),
		logger:         util.Named("http"),
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		cart := v1.Group("/cart", cartSession())
		{
			cart.GET("", h.getCart)
			cart.POST("/items", h.addCartItem)
			cart.PUT("/items/:product_id", h.updateCartItem)
			cart.DELETE("/items/:product_id", h.removeCartItem)
			cart.DELETE("", h.clearCart)
		}

		v1.POST("/orders", h.createOrder)

		admin := v1.Group("/admin", requireAPIKey(h.adminAPIKey))
		{
			admin.POST("/products", h.createProduct)
			admin.PUT("/products/:id", h.updateProduct)
			admin.DELETE("/products/:id", h.deleteProduct)

			admin.GET("/orders", h.listOrders)
			admin.GET("/orders/:id", h.getOrder)
			admin.PATCH("/orders/:id", h.updateOrder)
			admin.DELETE("/orders/:id", h.deleteOrder)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failures := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "not ready",
			"failures": failures,
			"time":     time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	products := h.productService.ListProducts(c.Request.Context(), c.Query("category"))
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var patch store.ProductPatch
	if !bindJSON(c, &patch) {
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.productService.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddCartItemRequest is the body of POST /cart/items. A missing quantity
// adds one unit.
type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  *int   `json:"quantity"`
}

// UpdateCartItemRequest is the body of PUT /cart/items/:product_id
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.cartService.GetCart(c.Request.Context(), c.GetString(cartSessionKey)))
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if !bindJSON(c, &req) {
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	view, out, err := h.cartService.AddItem(c.Request.Context(), c.GetString(cartSessionKey), req.ProductID, quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": view, "outcome": out})
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}

	view, out := h.cartService.UpdateItem(c.Request.Context(), c.GetString(cartSessionKey), c.Param("product_id"), req.Quantity)
	c.JSON(http.StatusOK, gin.H{"cart": view, "outcome": out})
}

func (h *Handler) removeCartItem(c *gin.Context) {
	view, out := h.cartService.RemoveItem(c.Request.Context(), c.GetString(cartSessionKey), c.Param("product_id"))
	c.JSON(http.StatusOK, gin.H{"cart": view, "outcome": out})
}

func (h *Handler) clearCart(c *gin.Context) {
	h.cartService.Clear(c.Request.Context(), c.GetString(cartSessionKey))
	c.Status(http.StatusNoContent)
}

// createOrder handles checkout
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	if session, ok := requestSession(c); ok {
		req.CartSession = session
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	orders := h.orderService.ListOrders(c.Request.Context(), c.Query("status"))
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

func (h *Handler) updateOrder(c *gin.Context) {
	var patch store.OrderPatch
	if !bindJSON(c, &patch) {
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deleteOrder(c *gin.Context) {
	if err := h.orderService.DeleteOrder(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"field":   verr.Field,
			"details": verr.Message,
		})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
