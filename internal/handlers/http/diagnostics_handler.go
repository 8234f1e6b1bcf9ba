package http

import (
	"net/http"

	"camrelay/internal/core/ports"
	"camrelay/pkg/rtspurl"

	"github.com/gin-gonic/gin"
)

type DiagnosticsHandler struct {
	diagnostics ports.DiagnosticsService
}

func NewDiagnosticsHandler(diagnostics ports.DiagnosticsService) *DiagnosticsHandler {
	return &DiagnosticsHandler{diagnostics: diagnostics}
}

func (h *DiagnosticsHandler) Run(c *gin.Context) {
	var req struct {
		CameraIP string `json:"camera_ip" binding:"required"`
		RTSPPort int    `json:"rtsp_port"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.RTSPPort == 0 {
		req.RTSPPort = rtspurl.DefaultPort
	}

	result, err := h.diagnostics.Run(c.Request.Context(), req.CameraIP, req.RTSPPort)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"diagnostics": result,
	})
}
