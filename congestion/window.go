package congestion

import "go_rdt_copy/constants"

// Window is the sender's dynamic window controller. Halves on loss, grows by one
// segment once a window's worth of ACKs past the threshold has arrived.
type Window struct {
	adaptive  bool
	size      int
	min       int
	max       int
	threshold uint32
}

// NewWindow creates window controller. firstSeq is the first DATA sequence number.
func NewWindow(adaptive bool, initial, min, max int, firstSeq uint32) *Window {
	if min < 1 {
		min = constants.MIN_WINDOW
	}
	if max < min {
		max = min
	}
	if initial <= 0 {
		initial = constants.STATIC_WINDOW_SIZE
	}
	if adaptive {
		initial = clamp(initial, min, max)
	}
	return &Window{
		adaptive:  adaptive,
		size:      initial,
		min:       min,
		max:       max,
		threshold: firstSeq - 1 + uint32(initial),
	}
}

// Size returns current window size in segments
func (w *Window) Size() int {
	return w.size
}

// Threshold returns sequence number at which window grows next
func (w *Window) Threshold() uint32 {
	return w.threshold
}

// OnLoss halves window. seq is the sequence number of the oldest unacknowledged segment.
func (w *Window) OnLoss(seq uint32) {
	if !w.adaptive {
		return
	}
	w.size = clamp(w.size/2, w.min, w.max)
	w.threshold = seq + uint32(w.size)
}

// OnAdvance is called for every ACK that moves the window. Returns true if window grew.
func (w *Window) OnAdvance(ackSeq uint32) bool {
	if !w.adaptive || ackSeq < w.threshold || w.size >= w.max {
		return false
	}
	w.size = clamp(w.size+1, w.min, w.max)
	w.threshold += uint32(w.size)
	return true
}
