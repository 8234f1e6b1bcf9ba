package relay

// Metrics receives relay lifecycle signals.
type Metrics interface {
	StreamStarted()
	StreamEnded(reason string)
	SpawnFailed()
	ViewerAttached()
	ViewerDetached()
	ViewerDropped()
	BytesRelayed(n int)
}

type NoopMetrics struct{}

func (NoopMetrics) StreamStarted()     {}
func (NoopMetrics) StreamEnded(string) {}
func (NoopMetrics) SpawnFailed()       {}
func (NoopMetrics) ViewerAttached()    {}
func (NoopMetrics) ViewerDetached()    {}
func (NoopMetrics) ViewerDropped()     {}
func (NoopMetrics) BytesRelayed(int)   {}
