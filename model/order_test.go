package model

import (
	"testing"
	"time"
)

func TestNewOrderDefaults(t *testing.T) {
	captured := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := CandidateOrder{
		BuyerName:     "Amy",
		ItemName:      "Ring",
		Quantity:      1,
		RawText:       "Ring +1",
		DetectedPrice: 250,
	}

	o := NewOrder("order-1", c, SourceMonitor, "Eight", captured)

	if o.ID != "order-1" {
		t.Errorf("Expected ID 'order-1', got '%s'", o.ID)
	}
	if o.Status != StatusPending {
		t.Errorf("Expected status '%s', got '%s'", StatusPending, o.Status)
	}
	if o.Price != 250 {
		t.Errorf("Expected price 250, got %d", o.Price)
	}
	if o.GroupName != "Eight" {
		t.Errorf("Expected group 'Eight', got '%s'", o.GroupName)
	}
	if !o.CreatedAt.Equal(captured) {
		t.Errorf("Expected capture time %v, got %v", captured, o.CreatedAt)
	}
}

func TestNewOrderModificationStatus(t *testing.T) {
	c := CandidateOrder{
		BuyerName:      "Ben",
		ItemName:       "Cookie",
		Quantity:       -1,
		RawText:        "change my cookie order",
		IsModification: true,
	}

	o := NewOrder("order-2", c, SourceManual, "Cactus", time.Now())

	if o.Status != StatusModified {
		t.Errorf("Expected status '%s', got '%s'", StatusModified, o.Status)
	}
	if o.Price != 0 {
		t.Errorf("Expected price to default to 0, got %d", o.Price)
	}
}

func TestOrderTotalSigned(t *testing.T) {
	tests := []struct {
		name     string
		quantity int
		price    int
		expected int
	}{
		{"positive order", 3, 100, 300},
		{"cancellation", -2, 100, -200},
		{"zero quantity", 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Quantity: tt.quantity, Price: tt.price}
			if got := o.Total(); got != tt.expected {
				t.Errorf("Expected total %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []OrderStatus{StatusPending, StatusConfirmed, StatusPaid, StatusShipped, StatusModified} {
		if !ValidStatus(s) {
			t.Errorf("Expected '%s' to be valid", s)
		}
	}
	if ValidStatus("cancelled") {
		t.Error("Expected unknown status to be invalid")
	}
}

func TestNewProductNormalizesLists(t *testing.T) {
	p := NewProduct("prod-1", CandidateProduct{Name: "Sakura Cookie", Price: 350, Type: PromotionPreorder}, time.Now())

	if p.Specs == nil {
		t.Error("Expected specs to be normalized to an empty slice")
	}
	if p.BulkRules == nil {
		t.Error("Expected bulk rules to be normalized to an empty slice")
	}
	if p.PurchasedQty != 0 {
		t.Errorf("Expected purchased qty 0, got %d", p.PurchasedQty)
	}
}
