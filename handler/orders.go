package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ricky22407-lang/Buyer-1/model"
	"github.com/ricky22407-lang/Buyer-1/service"
)

type OrderHandler struct {
	store *service.LedgerStore
}

func NewOrderHandler(store *service.LedgerStore) *OrderHandler {
	return &OrderHandler{store: store}
}

// List returns all orders, optionally filtered by group.
func (h *OrderHandler) List(c *gin.Context) {
	group := c.Query("group")

	var orders []*model.Order
	if group != "" {
		orders = h.store.OrdersByGroup(group)
	} else {
		orders = h.store.Orders()
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type createOrderRequest struct {
	BuyerName      string `json:"buyer_name" binding:"required"`
	ItemName       string `json:"item_name" binding:"required"`
	Quantity       int    `json:"quantity"`
	Price          int    `json:"price"`
	RawText        string `json:"raw_text"`
	SelectedSpec   string `json:"selected_spec"`
	IsModification bool   `json:"is_modification"`
	GroupName      string `json:"group_name" binding:"required"`
}

// Create records a manually entered order. Manual entry bypasses
// deduplication entirely: the operator typed it, so it lands as-is.
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	order := model.NewOrder(uuid.New().String(), model.CandidateOrder{
		BuyerName:      req.BuyerName,
		ItemName:       req.ItemName,
		Quantity:       req.Quantity,
		RawText:        req.RawText,
		DetectedPrice:  req.Price,
		IsModification: req.IsModification,
		SelectedSpec:   req.SelectedSpec,
	}, model.SourceManual, req.GroupName, time.Now())

	h.store.UpsertOrder(c.Request.Context(), order)

	c.JSON(http.StatusOK, order)
}

type updateStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

// UpdateStatus moves an order through its lifecycle.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !model.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
		return
	}

	order := h.store.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

type correctOrderRequest struct {
	Quantity *int `json:"quantity"`
	Price    *int `json:"price"`
}

// Correct applies a quantity/price fix to an order.
func (h *OrderHandler) Correct(c *gin.Context) {
	id := c.Param("id")

	var req correctOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	order := h.store.CorrectOrder(c.Request.Context(), id, service.OrderCorrection{
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// Delete removes an order from the ledger.
func (h *OrderHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if !h.store.DeleteOrder(c.Request.Context(), id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// buyerTotal is one row of the per-buyer settlement view.
type buyerTotal struct {
	BuyerName string `json:"buyer_name"`
	Items     int    `json:"items"`
	Total     int    `json:"total"`
}

// Summary aggregates quantity x price per buyer. Quantities are signed, so
// cancellations subtract naturally with no special casing.
func (h *OrderHandler) Summary(c *gin.Context) {
	group := c.Query("group")

	var orders []*model.Order
	if group != "" {
		orders = h.store.OrdersByGroup(group)
	} else {
		orders = h.store.Orders()
	}

	totals := make(map[string]*buyerTotal)
	keys := make([]string, 0)
	for _, o := range orders {
		bt, ok := totals[o.BuyerName]
		if !ok {
			bt = &buyerTotal{BuyerName: o.BuyerName}
			totals[o.BuyerName] = bt
			keys = append(keys, o.BuyerName)
		}
		bt.Items += o.Quantity
		bt.Total += o.Total()
	}

	result := make([]*buyerTotal, 0, len(keys))
	for _, k := range keys {
		result = append(result, totals[k])
	}

	c.JSON(http.StatusOK, gin.H{"buyers": result})
}
