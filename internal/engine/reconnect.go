package engine

import "time"

// connState is the reconnection controller's state machine.
type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateGivingUp
)

func (s connState) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	case stateGivingUp:
		return "giving_up"
	default:
		return "unknown"
	}
}

// backoffDelay returns the delay before reconnect attempt n (0-indexed):
// min(base * 2^n, max). Deterministic, no jitter.
func backoffDelay(n int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
