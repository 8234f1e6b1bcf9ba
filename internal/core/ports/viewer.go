package ports

// Viewer is one attached downstream connection. Send must never block; it
// returns false when the frame could not be queued.
type Viewer interface {
	ID() string
	Send(frame []byte) bool
	Close()
}
