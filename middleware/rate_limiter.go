package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"homeglow/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore keeps one token bucket per client IP. Buckets idle for longer than
// limiterIdleTTL are dropped during the next sweep.
type limiterStore struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	every     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterStore(perMin int) *limiterStore {
	if perMin <= 0 {
		perMin = 100
	}
	return &limiterStore{
		clients: make(map[string]*clientLimiter),
		every:   rate.Every(time.Minute / time.Duration(perMin)),
		burst:   perMin,
		now:     time.Now,
	}
}

func (s *limiterStore) allow(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > limiterIdleTTL {
		for key, cl := range s.clients {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(s.clients, key)
			}
		}
		s.lastSweep = now
	}

	cl, ok := s.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.every, s.burst)}
		s.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// RateLimitMiddleware allows perMin requests per minute per client IP. Guest
// session ids are bearer credentials, so this also throttles id guessing.
func RateLimitMiddleware(perMin int) gin.HandlerFunc {
	store := newLimiterStore(perMin)
	retryAfter := strconv.Itoa(int((time.Minute / time.Duration(store.burst)).Seconds()) + 1)
	return func(c *gin.Context) {
		ip := getClientIP(c)
		if !store.allow(ip) {
			utils.LoggerFrom(c).Warn("rate limit exceeded", zap.String("ip", ip))
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, utils.ErrorResponse{
				Message: "Rate limit exceeded. Try again later.",
				Code:    "rate_limited",
			})
			return
		}
		c.Next()
	}
}
