package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/carebridge/backend/internal/application/orders"
	"github.com/carebridge/backend/internal/domain/fulfillment"
	"github.com/carebridge/backend/internal/domain/ordering"
	"github.com/carebridge/backend/internal/domain/shared"
	"github.com/carebridge/backend/internal/infrastructure/telemetry"
)

// OrderHandler exposes the order lifecycle operations: listing, detail,
// manual clinical approval and fulfillment dispatch retry
type OrderHandler struct {
	BaseHandler
	orders         ordering.OrderRepository
	shippingOrders fulfillment.ShippingOrderRepository
	approvals      *orders.ApprovalService
	metrics        *telemetry.OrderMetrics
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(
	orderRepo ordering.OrderRepository,
	shippingOrders fulfillment.ShippingOrderRepository,
	approvals *orders.ApprovalService,
	metrics *telemetry.OrderMetrics,
) *OrderHandler {
	return &OrderHandler{
		orders:         orderRepo,
		shippingOrders: shippingOrders,
		approvals:      approvals,
		metrics:        metrics,
	}
}

// RegisterRoutes registers the order routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/orders")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.GET("/:id/shipping-orders", h.ListShippingOrders)
	group.POST("/:id/approve", h.Approve)
	group.POST("/:id/dispatch", h.Dispatch)
}

// List returns orders matching the given filters
func (h *OrderHandler) List(c *gin.Context) {
	req := ListOrdersRequest{Page: 1, PageSize: 20}
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid list parameters: "+err.Error())
		return
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Filters:  map[string]interface{}{},
	}
	if req.Status != "" {
		filter.Filters["status"] = req.Status
	}
	if req.UserID != "" {
		filter.Filters["user_id"] = req.UserID
	}
	if req.ClinicID != "" {
		filter.Filters["clinic_id"] = req.ClinicID
	}

	orderList, err := h.orders.FindAll(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]OrderResponse, len(orderList))
	for i := range orderList {
		responses[i] = NewOrderResponse(&orderList[i])
	}
	h.Success(c, responses)
}

// Get returns one order by ID
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	order, err := h.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, NewOrderResponse(order))
}

// ListShippingOrders returns the dispatch attempts for one order, newest
// first
func (h *OrderHandler) ListShippingOrders(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	shippingOrders, err := h.shippingOrders.FindByOrderID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]ShippingOrderResponse, len(shippingOrders))
	for i := range shippingOrders {
		responses[i] = NewShippingOrderResponse(&shippingOrders[i])
	}
	h.Success(c, responses)
}

// Approve records a human clinical approval and runs the shared approval
// path (capture, processing transition, fulfillment dispatch)
func (h *OrderHandler) Approve(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req ApproveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "clinician_id is required")
		return
	}
	clinicianID, err := uuid.Parse(req.ClinicianID)
	if err != nil {
		h.BadRequest(c, "Invalid clinician_id")
		return
	}

	if err := h.approvals.ApproveByClinician(c.Request.Context(), orderID, clinicianID); err != nil {
		h.HandleError(c, err)
		return
	}

	order, err := h.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, NewOrderResponse(order))
}

// Dispatch retries fulfillment dispatch for an approved, paid order
// without re-running approval
func (h *OrderHandler) Dispatch(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	shippingOrder, err := h.approvals.RetryDispatch(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordDispatch(c.Request.Context(), shippingOrder.Partner.String())
	}
	h.Success(c, NewShippingOrderResponse(shippingOrder))
}

// orderID parses the order ID path parameter, answering 400 when invalid
func (h *OrderHandler) orderID(c *gin.Context) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order ID")
		return uuid.Nil, false
	}
	return orderID, true
}
