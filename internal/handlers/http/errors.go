package http

import (
	stderrors "errors"
	"net/http"

	"camrelay/internal/core/domain"
	"camrelay/pkg/errors"
	"camrelay/pkg/rtspurl"

	"github.com/gin-gonic/gin"
)

// toAppError maps domain sentinels onto HTTP-facing application errors.
// Messages pass through MaskText since wrapped causes may quote a source URL.
func toAppError(err error) *errors.AppError {
	if appErr := errors.GetAppError(err); appErr != nil {
		return appErr
	}

	msg := rtspurl.MaskText(err.Error())
	switch {
	case stderrors.Is(err, domain.ErrInvalidSource),
		stderrors.Is(err, domain.ErrInvalidTarget),
		stderrors.Is(err, domain.ErrInvalidCamera):
		return errors.NewInvalidInputError(msg)
	case stderrors.Is(err, domain.ErrStreamNotFound):
		return errors.NewNotFoundError("stream")
	case stderrors.Is(err, domain.ErrCameraNotFound):
		return errors.NewNotFoundError("camera")
	case stderrors.Is(err, domain.ErrSpawnFailed),
		stderrors.Is(err, domain.ErrTranscoderExited),
		stderrors.Is(err, domain.ErrStreamStopped):
		return errors.NewBadGatewayError(msg, err)
	default:
		return errors.WrapError(err, errors.ErrCodeInternal, "internal error", http.StatusInternalServerError)
	}
}

func respondError(c *gin.Context, err error) {
	c.Error(toAppError(err))
	c.Abort()
}

func bindError(c *gin.Context, err error) {
	respondError(c, errors.NewInvalidInputError("invalid request body: "+err.Error()))
}
