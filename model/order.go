package model

import (
	"time"
)

// OrderStatus is the operator-facing lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusModified  OrderStatus = "modified"
)

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPaid, StatusShipped, StatusModified:
		return true
	}
	return false
}

// OrderSource identifies which channel produced an order.
type OrderSource string

const (
	SourceManual  OrderSource = "manual"
	SourceImage   OrderSource = "image"
	SourceMonitor OrderSource = "monitor"
)

// CandidateOrder is a single purchase intent extracted from raw chat content.
// It is untrusted oracle output: the reconciler decides whether it enters the
// ledger.
type CandidateOrder struct {
	BuyerName      string `json:"buyer_name"`
	ItemName       string `json:"item_name"`
	Quantity       int    `json:"quantity"` // negative means cancellation/decrement
	RawText        string `json:"raw_text"`
	DetectedPrice  int    `json:"detected_price,omitempty"`
	IsModification bool   `json:"is_modification,omitempty"`
	SelectedSpec   string `json:"selected_spec,omitempty"`
}

// Order is a ledger entry accepted from a candidate or created manually.
type Order struct {
	ID             string      `json:"id"`
	BuyerName      string      `json:"buyer_name"`
	ItemName       string      `json:"item_name"`
	Quantity       int         `json:"quantity"`
	Price          int         `json:"price"`
	Status         OrderStatus `json:"status"`
	RawText        string      `json:"raw_text"`
	SelectedSpec   string      `json:"selected_spec,omitempty"`
	IsModification bool        `json:"is_modification,omitempty"`
	Source         OrderSource `json:"source"`
	GroupName      string      `json:"group_name"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Total returns the signed line total. Negative quantities (cancellations)
// must flow through aggregation unchanged.
func (o *Order) Total() int {
	return o.Quantity * o.Price
}

// NewOrder promotes a candidate into a ledger order, assigning its identity
// and deriving the initial status from the modification flag.
func NewOrder(id string, c CandidateOrder, source OrderSource, group string, capturedAt time.Time) *Order {
	status := StatusPending
	if c.IsModification {
		status = StatusModified
	}
	return &Order{
		ID:             id,
		BuyerName:      c.BuyerName,
		ItemName:       c.ItemName,
		Quantity:       c.Quantity,
		Price:          c.DetectedPrice,
		Status:         status,
		RawText:        c.RawText,
		SelectedSpec:   c.SelectedSpec,
		IsModification: c.IsModification,
		Source:         source,
		GroupName:      group,
		CreatedAt:      capturedAt,
	}
}
