package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// ThrottleConfig limits how often one client may submit the auth forms.
type ThrottleConfig struct {
	// Rate is the sustained number of attempts allowed per minute.
	Rate float64
	// Burst is the number of attempts allowed back to back.
	Burst int
	// IdleTTL drops a client's limiter after this long without attempts.
	IdleTTL time.Duration
	Now     func() time.Time
}

// DefaultThrottleConfig allows a burst of ten attempts and one more every
// ten seconds.
func DefaultThrottleConfig() ThrottleConfig {
	return ThrottleConfig{Rate: 6, Burst: 10, IdleTTL: 15 * time.Minute}
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// throttle holds one limiter per client and path.
type throttle struct {
	cfg      ThrottleConfig
	mu       sync.Mutex
	visitors map[string]*visitor
	swept    time.Time
}

func newThrottle(cfg ThrottleConfig) *throttle {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultThrottleConfig().Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultThrottleConfig().Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultThrottleConfig().IdleTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &throttle{cfg: cfg, visitors: make(map[string]*visitor)}
}

// reserve takes a token for key and returns how long the caller must wait
// when none is available.
func (t *throttle) reserve(key string) (bool, time.Duration) {
	now := t.cfg.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if now.Sub(t.swept) > t.cfg.IdleTTL {
		for k, v := range t.visitors {
			if now.Sub(v.seen) > t.cfg.IdleTTL {
				delete(t.visitors, k)
			}
		}
		t.swept = now
	}

	v, ok := t.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(t.cfg.Rate/60), t.cfg.Burst)}
		t.visitors[key] = v
	}
	v.seen = now

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Throttle rejects auth form submissions from a client that exceeds the
// configured rate with 429 and a Retry-After header. Limits are per client
// IP and path, so a flood of failed logins does not block registration.
func Throttle(cfg ThrottleConfig) echo.MiddlewareFunc {
	t := newThrottle(cfg)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, wait := t.reserve(c.RealIP() + " " + c.Path())
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many attempts, please try again later")
			}
			return next(c)
		}
	}
}
