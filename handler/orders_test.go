package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ricky22407-lang/Buyer-1/model"
	"github.com/ricky22407-lang/Buyer-1/service"
)

func seedOrder(t *testing.T, store *service.LedgerStore, id, buyer, group string, qty, price int) *model.Order {
	t.Helper()
	o := &model.Order{
		ID:        id,
		BuyerName: buyer,
		ItemName:  "Sakura Cookie",
		Quantity:  qty,
		Price:     price,
		Status:    model.StatusPending,
		Source:    model.SourceManual,
		GroupName: group,
		CreatedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	store.UpsertOrder(context.Background(), o)
	return o
}

func orderRouter(store *service.LedgerStore) *gin.Engine {
	h := NewOrderHandler(store)
	router := gin.New()
	router.GET("/orders", h.List)
	router.POST("/orders", h.Create)
	router.PUT("/orders/:id/status", h.UpdateStatus)
	router.PUT("/orders/:id", h.Correct)
	router.DELETE("/orders/:id", h.Delete)
	router.GET("/orders/summary", h.Summary)
	return router
}

func TestOrderHandlerList(t *testing.T) {
	store := service.NewLedgerStore(nil)
	seedOrder(t, store, "o1", "Amy", "Group A", 2, 150)
	seedOrder(t, store, "o2", "Ben", "Group B", 1, 100)
	router := orderRouter(store)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"all orders", "", 2},
		{"filtered by group", "?group=Group+A", 1},
		{"unknown group", "?group=Nope", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/orders"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var resp struct {
				Orders []*model.Order `json:"orders"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("parse response: %v", err)
			}
			if len(resp.Orders) != tt.want {
				t.Errorf("got %d orders, want %d", len(resp.Orders), tt.want)
			}
		})
	}
}

func TestOrderHandlerCreate(t *testing.T) {
	store := service.NewLedgerStore(nil)
	router := orderRouter(store)

	body, _ := json.Marshal(map[string]any{
		"buyer_name": "Amy",
		"item_name":  "Sakura Cookie",
		"quantity":   2,
		"price":      150,
		"group_name": "Group A",
	})
	req := httptest.NewRequest("POST", "/orders", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var created model.Order
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if created.ID == "" {
		t.Error("created order has no id")
	}
	if created.Source != model.SourceManual {
		t.Errorf("source = %s, want manual", created.Source)
	}
	if store.GetOrder(created.ID) == nil {
		t.Error("created order not in the store")
	}
}

func TestOrderHandlerCreateMissingFields(t *testing.T) {
	store := service.NewLedgerStore(nil)
	router := orderRouter(store)

	body, _ := json.Marshal(map[string]any{"buyer_name": "Amy"})
	req := httptest.NewRequest("POST", "/orders", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOrderHandlerUpdateStatus(t *testing.T) {
	store := service.NewLedgerStore(nil)
	seedOrder(t, store, "o1", "Amy", "Group A", 2, 150)
	router := orderRouter(store)

	tests := []struct {
		name       string
		id         string
		status     string
		wantStatus int
	}{
		{"valid transition", "o1", "paid", http.StatusOK},
		{"unknown status", "o1", "teleported", http.StatusBadRequest},
		{"unknown order", "missing", "paid", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{"status": tt.status})
			req := httptest.NewRequest("PUT", "/orders/"+tt.id+"/status", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}

	if got := store.GetOrder("o1").Status; got != model.StatusPaid {
		t.Errorf("stored status = %s, want paid", got)
	}
}

func TestOrderHandlerCorrect(t *testing.T) {
	store := service.NewLedgerStore(nil)
	seedOrder(t, store, "o1", "Amy", "Group A", 2, 150)
	router := orderRouter(store)

	body, _ := json.Marshal(map[string]any{"quantity": 5})
	req := httptest.NewRequest("PUT", "/orders/o1", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := store.GetOrder("o1")
	if got.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", got.Quantity)
	}
	if got.Price != 150 {
		t.Errorf("price = %d, want untouched 150", got.Price)
	}
}

func TestOrderHandlerDelete(t *testing.T) {
	store := service.NewLedgerStore(nil)
	seedOrder(t, store, "o1", "Amy", "Group A", 2, 150)
	router := orderRouter(store)

	req := httptest.NewRequest("DELETE", "/orders/o1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	req = httptest.NewRequest("DELETE", "/orders/o1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}

func TestOrderHandlerSummary(t *testing.T) {
	store := service.NewLedgerStore(nil)
	seedOrder(t, store, "o1", "Amy", "Group A", 2, 150)
	seedOrder(t, store, "o2", "Amy", "Group A", 1, 100)
	// A cancellation subtracts from the buyer's total.
	seedOrder(t, store, "o3", "Ben", "Group A", -1, 150)
	seedOrder(t, store, "o4", "Ben", "Group A", 2, 150)
	router := orderRouter(store)

	req := httptest.NewRequest("GET", "/orders/summary?group=Group+A", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Buyers []struct {
			BuyerName string `json:"buyer_name"`
			Items     int    `json:"items"`
			Total     int    `json:"total"`
		} `json:"buyers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Buyers) != 2 {
		t.Fatalf("got %d buyers, want 2", len(resp.Buyers))
	}

	totals := map[string]int{}
	items := map[string]int{}
	for _, b := range resp.Buyers {
		totals[b.BuyerName] = b.Total
		items[b.BuyerName] = b.Items
	}
	if totals["Amy"] != 400 || items["Amy"] != 3 {
		t.Errorf("Amy = %d items %d total, want 3 / 400", items["Amy"], totals["Amy"])
	}
	if totals["Ben"] != 150 || items["Ben"] != 1 {
		t.Errorf("Ben = %d items %d total, want 1 / 150", items["Ben"], totals["Ben"])
	}
}
