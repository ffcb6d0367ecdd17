package healthcheck

import (
	"net/http"
	"sync/atomic"
)

// Check reports whether the daemon can serve requests
type Check struct {
	draining int32
}

// Drain makes the check fail, load balancers stop routing to the daemon
// before its listeners shut down
func (c *Check) Drain() {
	atomic.StoreInt32(&c.draining, 1)
}

// Handler is serving the application status check
func (c *Check) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		if atomic.LoadInt32(&c.draining) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("draining\n"))
			return
		}

		w.Write([]byte("success\n"))
	})
}
