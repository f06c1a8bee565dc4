package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/heartmarshall/laudo-backend/pkg/ctxutil"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter throttles callers with one token bucket per actor, falling back
// to the client IP for anonymous requests.
type RateLimiter struct {
	clock    clockwork.Clock
	limiters sync.Map // map[string]*limiterEntry
	stop     chan struct{}
	once     sync.Once
}

type limiterEntry struct {
	limiter *rate.Limiter

	mu       sync.Mutex
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter with background cleanup.
// Call Stop() on shutdown.
func NewRateLimiter(clock clockwork.Clock, cleanupInterval time.Duration) *RateLimiter {
	rl := &RateLimiter{clock: clock, stop: make(chan struct{})}
	go rl.cleanup(cleanupInterval)
	return rl
}

// Stop terminates the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// Limit returns middleware that allows maxPerMinute requests per caller with
// a burst of the same size. A non-positive limit disables limiting and
// returns nil, which Chain skips.
func (rl *RateLimiter) Limit(maxPerMinute int) Middleware {
	if maxPerMinute <= 0 {
		return nil
	}
	every := rate.Every(time.Minute / time.Duration(maxPerMinute))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := rl.clock.Now()
			lim := rl.get(callerKey(r), every, maxPerMinute, now)

			res := lim.ReserveN(now, 1)
			if delay := res.DelayFrom(now); delay > 0 {
				res.CancelAt(now)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if actor, ok := ctxutil.ActorFromCtx(r.Context()); ok {
		return "actor:" + actor.ID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func (rl *RateLimiter) get(key string, every rate.Limit, burst int, now time.Time) *rate.Limiter {
	val, _ := rl.limiters.LoadOrStore(key, &limiterEntry{
		limiter:  rate.NewLimiter(every, burst),
		lastSeen: now,
	})
	e := val.(*limiterEntry)
	e.mu.Lock()
	e.lastSeen = now
	e.mu.Unlock()
	return e.limiter
}

func (rl *RateLimiter) cleanup(interval time.Duration) {
	ticker := rl.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.Chan():
			now := rl.clock.Now()
			rl.limiters.Range(func(key, value any) bool {
				e := value.(*limiterEntry)
				e.mu.Lock()
				idle := now.Sub(e.lastSeen)
				e.mu.Unlock()
				if idle > limiterIdleTTL {
					rl.limiters.Delete(key)
				}
				return true
			})
		}
	}
}
