package mockapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter applies a per-client-IP token bucket. Idle clients are
// evicted so the map does not grow without bound; stop ends the eviction
// loop when the server shuts down.
type rateLimiter struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter

	done     chan struct{}
	stopOnce sync.Once
}

func newRateLimiter(rps rate.Limit, burst int) *rateLimiter {
	rl := &rateLimiter{
		rps:     rps,
		burst:   burst,
		clients: make(map[string]*clientLimiter),
		done:    make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

func (rl *rateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, cl := range rl.clients {
				if time.Since(cl.lastSeen) > 3*time.Minute {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// stop ends the eviction loop. Idempotent.
func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *rateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		rl.mu.Lock()
		cl, ok := rl.clients[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
			rl.clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		rl.mu.Unlock()

		if !cl.limiter.Allow() {
			detail(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}
