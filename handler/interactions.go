package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ricky22407-lang/Buyer-1/service"
)

type InteractionHandler struct {
	store *service.LedgerStore
}

func NewInteractionHandler(store *service.LedgerStore) *InteractionHandler {
	return &InteractionHandler{store: store}
}

// List returns pending question/answer suggestions, newest first.
func (h *InteractionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"interactions": h.store.Interactions()})
}

// Clear discards all pending suggestions in one go.
func (h *InteractionHandler) Clear(c *gin.Context) {
	h.store.ClearInteractions()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
