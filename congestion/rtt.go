package congestion

import (
	"go_rdt_copy/constants"
	"time"
)

// RTTEstimator tracks smoothed round trip time and derives retransmission timeout
type RTTEstimator struct {
	adaptive  bool
	estimated time.Duration
	deviation time.Duration
	timeout   time.Duration
	max       time.Duration
}

// NewRTTEstimator creates estimator. In static mode Timeout always returns fixed.
func NewRTTEstimator(adaptive bool, fixed, max time.Duration) *RTTEstimator {
	if fixed <= 0 {
		fixed = constants.STATIC_TIMEOUT
	}
	if max <= 0 {
		max = constants.MAX_TIMEOUT
	}
	return &RTTEstimator{
		adaptive:  adaptive,
		estimated: constants.INITIAL_RTT,
		deviation: constants.INITIAL_DEV_RTT,
		timeout:   fixed,
		max:       max,
	}
}

// Timeout returns current retransmission timeout
func (r *RTTEstimator) Timeout() time.Duration {
	return r.timeout
}

// Estimated returns smoothed RTT
func (r *RTTEstimator) Estimated() time.Duration {
	return r.estimated
}

// Deviation returns smoothed RTT deviation
func (r *RTTEstimator) Deviation() time.Duration {
	return r.deviation
}

// OnSample folds new RTT sample into estimate. No-op in static mode.
func (r *RTTEstimator) OnSample(sample time.Duration) {
	if !r.adaptive {
		return
	}

	r.estimated = (7*r.estimated + sample) / 8
	diff := sample - r.estimated
	if diff < 0 {
		diff = -diff
	}
	r.deviation = (3*r.deviation + diff) / 4
	r.timeout = clamp(r.estimated+4*r.deviation, constants.MIN_TIMEOUT, r.max)
}
