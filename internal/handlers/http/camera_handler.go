package http

import (
	"encoding/json"
	"net/http"

	"camrelay/internal/core/domain"
	"camrelay/internal/core/ports"
	"camrelay/pkg/errors"
	"camrelay/pkg/rtspurl"

	"github.com/gin-gonic/gin"
)

type CameraHandler struct {
	cameras     ports.CameraService
	relay       ports.RelayService
	diagnostics ports.DiagnosticsService
}

func NewCameraHandler(cameras ports.CameraService, relay ports.RelayService, diagnostics ports.DiagnosticsService) *CameraHandler {
	return &CameraHandler{
		cameras:     cameras,
		relay:       relay,
		diagnostics: diagnostics,
	}
}

// publicCamera hides stored credentials. Clients change the URL through a
// patch and never need to read the password back.
func publicCamera(camera *domain.Camera) *domain.Camera {
	view := *camera
	view.RTSPURL = rtspurl.Mask(view.RTSPURL)
	return &view
}

type createCameraRequest struct {
	Name      string           `json:"name" binding:"required"`
	RTSPURL   string           `json:"rtsp_url" binding:"required"`
	Location  string           `json:"location"`
	Fisheye   bool             `json:"fisheye"`
	MountType domain.MountType `json:"mount_type"`
	IsDefault bool             `json:"is_default"`
}

func (h *CameraHandler) CreateCamera(c *gin.Context) {
	var req createCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	camera, err := h.cameras.Create(c.Request.Context(), &domain.Camera{
		Name:      req.Name,
		RTSPURL:   req.RTSPURL,
		Location:  req.Location,
		Fisheye:   req.Fisheye,
		MountType: req.MountType,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"camera": publicCamera(camera),
	})
}

func (h *CameraHandler) ListCameras(c *gin.Context) {
	cameras, err := h.cameras.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]*domain.Camera, 0, len(cameras))
	for _, camera := range cameras {
		views = append(views, publicCamera(camera))
	}

	c.JSON(http.StatusOK, gin.H{
		"cameras": views,
	})
}

func (h *CameraHandler) GetCamera(c *gin.Context) {
	camera, err := h.cameras.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"camera": publicCamera(camera),
	})
}

func (h *CameraHandler) GetDefaultCamera(c *gin.Context) {
	camera, err := h.cameras.Default(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"camera": publicCamera(camera),
	})
}

// UpdateCamera accepts only the fields of domain.CameraPatch; anything else
// in the body is rejected.
func (h *CameraHandler) UpdateCamera(c *gin.Context) {
	var patch domain.CameraPatch
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		bindError(c, err)
		return
	}

	camera, err := h.cameras.Update(c.Request.Context(), c.Param("id"), &patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"camera": publicCamera(camera),
	})
}

func (h *CameraHandler) DeleteCamera(c *gin.Context) {
	if err := h.cameras.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ConnectCamera opens (or joins) the relay stream for a stored camera.
func (h *CameraHandler) ConnectCamera(c *gin.Context) {
	ctx := c.Request.Context()
	camera, err := h.cameras.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	info, err := h.relay.Connect(ctx, camera.RTSPURL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"camera_id": camera.ID,
		"stream":    info,
	})
}

// DiagnoseCamera runs diagnostics against the host and port of the camera's
// RTSP URL.
func (h *CameraHandler) DiagnoseCamera(c *gin.Context) {
	ctx := c.Request.Context()
	camera, err := h.cameras.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	host, port := camera.Target()
	if host == "" {
		respondError(c, errors.NewInvalidInputError("camera has no diagnosable host"))
		return
	}

	result, err := h.diagnostics.Run(ctx, host, port)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"camera_id":   camera.ID,
		"diagnostics": result,
	})
}
