package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vigilia/guard-backend/internal/utils"
)

// SubjectLimiter hands out one token bucket per authenticated subject.
type SubjectLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func NewSubjectLimiter(perMinute, burst int) *SubjectLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &SubjectLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
	}
}

func (l *SubjectLimiter) get(subject string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[subject]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[subject] = lim
	}
	return lim
}

// Allow reports whether subject may make a request now.
func (l *SubjectLimiter) Allow(subject string) bool {
	return l.get(subject).Allow()
}

// RateLimitBySubject answers 429 once a subject exceeds its bucket. Requests
// without a subject in context pass through untouched.
func RateLimitBySubject(l *SubjectLimiter) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(1 / float64(l.every))))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := utils.GetUserIDFromContext(r.Context())
			if !ok || subject == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(subject) {
				w.Header().Set("Retry-After", retryAfter)
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
