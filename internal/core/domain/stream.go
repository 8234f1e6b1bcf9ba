package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// StreamKey identifies a relayed source. It is derived from the exact bytes of
// the source URL, so two spellings of the same camera are distinct streams.
type StreamKey string

// StreamSource is an immutable source URL together with its key.
type StreamSource struct {
	Key StreamKey
	URL string
}

func NewStreamSource(rawURL string) StreamSource {
	sum := sha256.Sum256([]byte(rawURL))
	return StreamSource{
		Key: StreamKey("src_" + hex.EncodeToString(sum[:])),
		URL: rawURL,
	}
}

type StreamState string

const (
	StreamStarting StreamState = "starting"
	StreamRunning  StreamState = "running"
	StreamStopping StreamState = "stopping"
	StreamStopped  StreamState = "stopped"
)

// StreamInfo is the read model of an active stream. Source is always masked.
type StreamInfo struct {
	ID          StreamKey   `json:"id"`
	Source      string      `json:"source"`
	State       StreamState `json:"state"`
	Viewers     int         `json:"viewers"`
	Pid         int         `json:"pid,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	FirstByteAt *time.Time  `json:"first_byte_at,omitempty"`
	BytesOut    uint64      `json:"bytes_out"`
	Endpoint    string      `json:"endpoint"`
}
