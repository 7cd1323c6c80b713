package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ricky22407-lang/Buyer-1/model"
	"github.com/ricky22407-lang/Buyer-1/service"
)

type ProductHandler struct {
	store *service.LedgerStore
}

func NewProductHandler(store *service.LedgerStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// List returns the full catalog.
func (h *ProductHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.store.Products()})
}

// Context returns the serialized active-product context string, useful for
// operators who want to see exactly what the extractor is told.
func (h *ProductHandler) Context(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"context": h.store.ProductContext()})
}

type createProductRequest struct {
	Name        string              `json:"name" binding:"required"`
	Price       int                 `json:"price"`
	Type        model.PromotionType `json:"type" binding:"required"`
	Specs       []string            `json:"specs"`
	ClosingTime string              `json:"closing_time"`
	Description string              `json:"description"`
	BulkRules   []model.BulkRule    `json:"bulk_rules"`
}

// Create records a manually entered product, bypassing merge logic.
func (h *ProductHandler) Create(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	product := model.NewProduct(uuid.New().String(), model.CandidateProduct{
		Name:        req.Name,
		Price:       req.Price,
		Type:        req.Type,
		Specs:       req.Specs,
		ClosingTime: req.ClosingTime,
		Description: req.Description,
		BulkRules:   req.BulkRules,
	}, time.Now())

	h.store.UpsertProduct(c.Request.Context(), product)

	c.JSON(http.StatusOK, product)
}

type updateProductRequest struct {
	Price         *int                 `json:"price"`
	Type          *model.PromotionType `json:"type"`
	Specs         []string             `json:"specs"`
	ClosingTime   *string              `json:"closing_time"`
	Description   *string              `json:"description"`
	PurchasedQty  *int                 `json:"purchased_qty"`
	PurchaseNotes *string              `json:"purchase_notes"`
}

// Update applies an operator edit. PurchasedQty and PurchaseNotes belong to
// the operator's purchasing workflow and only ever change here.
func (h *ProductHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	product := h.store.UpdateProduct(c.Request.Context(), id, service.ProductUpdate{
		Price:         req.Price,
		Type:          req.Type,
		Specs:         req.Specs,
		ClosingTime:   req.ClosingTime,
		Description:   req.Description,
		PurchasedQty:  req.PurchasedQty,
		PurchaseNotes: req.PurchaseNotes,
	})
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// Delete removes a product from the catalog.
func (h *ProductHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if !h.store.DeleteProduct(c.Request.Context(), id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
