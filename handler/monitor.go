package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ricky22407-lang/Buyer-1/middleware"
	"github.com/ricky22407-lang/Buyer-1/service"
)

type MonitorHandler struct {
	monitor *service.Monitor
}

func NewMonitorHandler(monitor *service.Monitor) *MonitorHandler {
	return &MonitorHandler{monitor: monitor}
}

type startMonitorRequest struct {
	GroupName string `json:"group_name" binding:"required"`
}

// Start begins a monitoring episode for one chat group.
func (h *MonitorHandler) Start(c *gin.Context) {
	var req startMonitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group_name is required"})
		return
	}

	if err := h.monitor.Start(c.Request.Context(), req.GroupName, middleware.GetSeller(c)); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"state": h.monitor.State()})
}

// Stop ends the current monitoring episode.
func (h *MonitorHandler) Stop(c *gin.Context) {
	h.monitor.Stop()
	c.JSON(http.StatusOK, gin.H{"state": h.monitor.State()})
}

// Status reports the lifecycle state and the recent activity log.
func (h *MonitorHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state": h.monitor.State(),
		"logs":  h.monitor.Logs(),
	})
}
