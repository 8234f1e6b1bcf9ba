package http

import (
	"net/http"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/errors"
	"camrelay/pkg/validation"

	"github.com/gin-gonic/gin"
)

// ViewerServer serves one WebSocket viewer for a stream until it leaves.
type ViewerServer interface {
	Serve(w http.ResponseWriter, r *http.Request, key domain.StreamKey)
}

type StreamHandler struct {
	relay   ports.RelayService
	viewers ViewerServer
}

func NewStreamHandler(relay ports.RelayService, viewers ViewerServer) *StreamHandler {
	return &StreamHandler{
		relay:   relay,
		viewers: viewers,
	}
}

type sourceRequest struct {
	RTSPURL string `json:"rtsp_url" binding:"required"`
}

func (h *StreamHandler) Connect(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	info, err := h.relay.Connect(c.Request.Context(), req.RTSPURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stream": info,
	})
}

func (h *StreamHandler) Disconnect(c *gin.Context) {
	var req sourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := h.relay.Disconnect(c.Request.Context(), req.RTSPURL); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "disconnected",
	})
}

func (h *StreamHandler) ListStreams(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"streams": h.relay.List(),
	})
}

func streamKey(c *gin.Context) (domain.StreamKey, bool) {
	id := c.Param("id")
	if err := validation.ValidateStreamID(id); err != nil {
		respondError(c, errors.NewInvalidInputError(err.Error()))
		return "", false
	}
	return domain.StreamKey(id), true
}

func (h *StreamHandler) GetStream(c *gin.Context) {
	key, ok := streamKey(c)
	if !ok {
		return
	}

	info, err := h.relay.Get(key)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stream": info,
	})
}

func (h *StreamHandler) StopStream(c *gin.Context) {
	key, ok := streamKey(c)
	if !ok {
		return
	}

	if err := h.relay.Stop(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Watch upgrades to a WebSocket carrying the stream's MPEG-TS bytes. Unknown
// streams are rejected before the upgrade.
func (h *StreamHandler) Watch(c *gin.Context) {
	key, ok := streamKey(c)
	if !ok {
		return
	}

	if _, err := h.relay.Get(key); err != nil {
		respondError(c, err)
		return
	}

	h.viewers.Serve(c.Writer, c.Request, key)
}
