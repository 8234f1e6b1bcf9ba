package relay

import "time"

// IdleReaper is the cancellable idle countdown owned by one ActiveStream.
// It holds no lock of its own: every call happens under the registry lock,
// and the fire callback must re-check Current under that lock before acting.
type IdleReaper struct {
	timer *time.Timer
	gen   uint64
}

// Arm (re)starts the countdown. fire receives the generation it was armed with.
func (r *IdleReaper) Arm(grace time.Duration, fire func(gen uint64)) {
	r.stop()
	r.gen++
	gen := r.gen
	r.timer = time.AfterFunc(grace, func() { fire(gen) })
}

// Disarm cancels a pending countdown. A callback that already started sees a
// stale generation and must abort.
func (r *IdleReaper) Disarm() {
	r.stop()
	r.gen++
}

func (r *IdleReaper) Armed() bool {
	return r.timer != nil
}

// Current reports whether gen is still the live arming.
func (r *IdleReaper) Current(gen uint64) bool {
	return r.timer != nil && r.gen == gen
}

func (r *IdleReaper) stop() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
