package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/lifecycle"
	"example.com/tavolo/possync/internal/models"
	"example.com/tavolo/possync/internal/routing"
	"example.com/tavolo/possync/internal/tracing"
)

// OrdersHandler exposes the local order snapshot and the lifecycle
// operations over HTTP.
type OrdersHandler struct {
	manager *lifecycle.Manager
	store   lifecycle.Snapshots
	tracer  tracing.Tracer
}

// NewOrdersHandler creates a new orders handler.
func NewOrdersHandler(manager *lifecycle.Manager, store lifecycle.Snapshots, tracer tracing.Tracer) *OrdersHandler {
	return &OrdersHandler{
		manager: manager,
		store:   store,
		tracer:  tracer,
	}
}

// CreateOrderRequest is the payload for opening a table's order.
type CreateOrderRequest struct {
	TableNumber string             `json:"table_number" binding:"required"`
	WaiterName  string             `json:"waiter_name"`
	Items       []models.OrderItem `json:"items" binding:"required"`
}

// AppendItemsRequest is the payload for a follow-up round on an open order.
type AppendItemsRequest struct {
	Items []models.OrderItem `json:"items" binding:"required"`
}

// HandleListOrders returns the full local snapshot, timestamp ascending.
func (h *OrdersHandler) HandleListOrders(c *gin.Context) {
	orders, err := h.store.LoadOrders(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load orders snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// HandleDepartmentOrders returns, per open order, only the lines routed to
// the requested department, in ticket order.
func (h *OrdersHandler) HandleDepartmentOrders(c *gin.Context) {
	dept := models.Department(c.Param("dept"))
	if !dept.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown department"})
		return
	}

	ctx := c.Request.Context()
	orders, err := h.store.LoadOrders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load orders snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load orders"})
		return
	}
	settings, err := h.store.LoadSettings(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load settings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}

	type departmentOrder struct {
		OrderID     string             `json:"order_id"`
		TableNumber string             `json:"table_number"`
		Status      models.OrderStatus `json:"status"`
		WaiterName  string             `json:"waiter_name"`
		Items       []models.OrderItem `json:"items"`
	}

	view := []departmentOrder{}
	for _, order := range orders {
		if order.Status == models.StatusDelivered {
			continue
		}
		items := routing.ItemsFor(order, dept, settings)
		if len(items) == 0 {
			continue
		}
		view = append(view, departmentOrder{
			OrderID:     order.ID,
			TableNumber: order.TableNumber,
			Status:      order.Status,
			WaiterName:  order.WaiterName,
			Items:       items,
		})
	}
	c.JSON(http.StatusOK, view)
}

// HandleCreateOrder opens a new order for a table.
func (h *OrdersHandler) HandleCreateOrder(c *gin.Context) {
	txn := h.tracer.StartTransaction("create-order")
	defer h.tracer.EndTransaction(txn)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order needs at least one item"})
		return
	}

	order, err := h.manager.CreateOrder(c.Request.Context(), req.TableNumber, req.WaiterName, req.Items)
	if err != nil {
		h.tracer.RecordError(txn, err)
		log.Error().Err(err).Msg("Failed to create order")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create order"})
		return
	}
	c.JSON(http.StatusCreated, order)
}

// HandleAdvance moves an order one step forward in its lifecycle.
func (h *OrdersHandler) HandleAdvance(c *gin.Context) {
	if err := h.manager.Advance(c.Request.Context(), c.Param("id")); err != nil {
		log.Error().Err(err).Str("order_id", c.Param("id")).Msg("Failed to advance order")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to advance order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleCompleteItem toggles an order line's completed flag, or one combo
// sub-item's completed part when the sub query parameter names it.
func (h *OrdersHandler) HandleCompleteItem(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item index must be a number"})
		return
	}
	if err := h.manager.ToggleCompletion(c.Request.Context(), c.Param("id"), index, c.Query("sub")); err != nil {
		log.Error().Err(err).Str("order_id", c.Param("id")).Msg("Failed to toggle completion")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle completion"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleServeItem marks an order line (or one combo sub-item) served.
func (h *OrdersHandler) HandleServeItem(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item index must be a number"})
		return
	}
	if err := h.manager.Serve(c.Request.Context(), c.Param("id"), index, c.Query("sub")); err != nil {
		log.Error().Err(err).Str("order_id", c.Param("id")).Msg("Failed to serve item")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serve item"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleAppendItems adds a follow-up round to an open order.
func (h *OrdersHandler) HandleAppendItems(c *gin.Context) {
	var req AppendItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.manager.AppendItems(c.Request.Context(), c.Param("id"), req.Items); err != nil {
		log.Error().Err(err).Str("order_id", c.Param("id")).Msg("Failed to append items")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to append items"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleFreeTable closes every open order on a table.
func (h *OrdersHandler) HandleFreeTable(c *gin.Context) {
	txn := h.tracer.StartTransaction("free-table")
	defer h.tracer.EndTransaction(txn)

	table := c.Param("table")
	if err := h.manager.FreeTable(c.Request.Context(), table); err != nil {
		h.tracer.RecordError(txn, err)
		log.Error().Err(err).Str("table", table).Msg("Failed to free table")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to free table"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleTableStatus reports whether a table has no open orders.
func (h *OrdersHandler) HandleTableStatus(c *gin.Context) {
	table := c.Param("table")
	free, err := h.manager.TableFree(c.Request.Context(), table)
	if err != nil {
		log.Error().Err(err).Str("table", table).Msg("Failed to check table status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check table"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"table": table, "free": free})
}

// RegisterRoutes registers the handler's routes.
func (h *OrdersHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/orders", h.HandleListOrders)
	router.GET("/orders/department/:dept", h.HandleDepartmentOrders)
	router.POST("/orders", h.HandleCreateOrder)
	router.POST("/orders/:id/advance", h.HandleAdvance)
	router.POST("/orders/:id/items", h.HandleAppendItems)
	router.POST("/orders/:id/items/:index/complete", h.HandleCompleteItem)
	router.POST("/orders/:id/items/:index/serve", h.HandleServeItem)
	router.GET("/tables/:table", h.HandleTableStatus)
	router.POST("/tables/:table/free", h.HandleFreeTable)
}
