package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ricky22407-lang/Buyer-1/model"
	"github.com/ricky22407-lang/Buyer-1/service"
)

type ExportHandler struct {
	store *service.LedgerStore
}

func NewExportHandler(store *service.LedgerStore) *ExportHandler {
	return &ExportHandler{store: store}
}

// Orders writes the order ledger as a CSV attachment. A BOM is prepended
// so spreadsheet tools detect UTF-8 and render CJK names correctly.
func (h *ExportHandler) Orders(c *gin.Context) {
	group := c.Query("group")

	var orders []*model.Order
	if group != "" {
		orders = h.store.OrdersByGroup(group)
	} else {
		orders = h.store.Orders()
	}

	var buf bytes.Buffer
	buf.WriteString("\xEF\xBB\xBF")

	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"group", "buyer", "item", "quantity", "price", "total", "status", "source", "created_at", "raw"})
	for _, o := range orders {
		_ = w.Write([]string{
			o.GroupName,
			o.BuyerName,
			o.ItemName,
			fmt.Sprintf("%d", o.Quantity),
			fmt.Sprintf("%d", o.Price),
			fmt.Sprintf("%d", o.Total()),
			string(o.Status),
			string(o.Source),
			o.CreatedAt.Format(time.RFC3339),
			o.RawText,
		})
	}
	w.Flush()

	filename := fmt.Sprintf("orders-%s.csv", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
