package model

import (
	"time"
)

// PromotionType classifies how a product is being sold.
type PromotionType string

const (
	PromotionLive     PromotionType = "live"     // live-stream connection price
	PromotionPreorder PromotionType = "preorder" // pay now, ships later
	PromotionStock    PromotionType = "stock"    // in stock, ships now
)

// BulkRule is a quantity-triggered price break. IsUnitPrice distinguishes
// "N for price-each" from "N for price-total".
type BulkRule struct {
	Qty         int  `json:"qty"`
	Price       int  `json:"price"`
	IsUnitPrice bool `json:"is_unit_price,omitempty"`
}

// CandidateProduct is a product listing extracted from raw chat content,
// possibly a fragment of a multi-message posting.
type CandidateProduct struct {
	Name        string        `json:"name"`
	Price       int           `json:"price"`
	Type        PromotionType `json:"type"`
	Specs       []string      `json:"specs,omitempty"`
	ClosingTime string        `json:"closing_time,omitempty"`
	Description string        `json:"description,omitempty"`
	BulkRules   []BulkRule    `json:"bulk_rules,omitempty"`
}

// Product is a catalog entry. PurchasedQty and PurchaseNotes belong to the
// operator's own purchasing workflow and are never touched by reconciliation.
type Product struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Price         int           `json:"price"`
	Type          PromotionType `json:"type"`
	Specs         []string      `json:"specs"`
	ClosingTime   string        `json:"closing_time,omitempty"`
	Description   string        `json:"description,omitempty"`
	BulkRules     []BulkRule    `json:"bulk_rules"`
	PurchasedQty  int           `json:"purchased_qty"`
	PurchaseNotes string        `json:"purchase_notes"`
	CreatedAt     time.Time     `json:"created_at"`
}

// NewProduct promotes a candidate into a catalog product with normalized
// (non-nil) spec and bulk-rule lists.
func NewProduct(id string, c CandidateProduct, capturedAt time.Time) *Product {
	specs := c.Specs
	if specs == nil {
		specs = []string{}
	}
	rules := c.BulkRules
	if rules == nil {
		rules = []BulkRule{}
	}
	return &Product{
		ID:          id,
		Name:        c.Name,
		Price:       c.Price,
		Type:        c.Type,
		Specs:       specs,
		ClosingTime: c.ClosingTime,
		Description: c.Description,
		BulkRules:   rules,
		CreatedAt:   capturedAt,
	}
}
