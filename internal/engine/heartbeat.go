package engine

import (
	"sync"
	"time"
)

// heartbeatMonitor runs the repeating probe timer. At most one ticker is
// live at any time: Start clears any prior ticker before arming a new one,
// and Stop must be called on close so a dead connection is never probed.
type heartbeatMonitor struct {
	mu   sync.Mutex
	stop chan struct{}
}

func newHeartbeatMonitor() *heartbeatMonitor {
	return &heartbeatMonitor{}
}

// Start arms the probe timer, replacing any prior one.
func (h *heartbeatMonitor) Start(interval time.Duration, probe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stop != nil {
		close(h.stop)
	}
	stop := make(chan struct{})
	h.stop = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// Stop cancels the probe timer. Safe to call when not running.
func (h *heartbeatMonitor) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
}
