package domain

import "errors"

var (
	ErrInvalidSource    = errors.New("invalid rtsp source")
	ErrStreamNotFound   = errors.New("stream not found")
	ErrStreamStopped    = errors.New("stream stopped")
	ErrSpawnFailed      = errors.New("transcoder failed to start")
	ErrTranscoderExited = errors.New("transcoder exited before producing output")
	ErrChannelClosed    = errors.New("fan-out channel closed")
	ErrInvalidTarget    = errors.New("invalid diagnostics target")
	ErrCameraNotFound   = errors.New("camera not found")
	ErrInvalidCamera    = errors.New("invalid camera")
)
