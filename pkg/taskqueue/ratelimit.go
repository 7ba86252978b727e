package taskqueue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ParseRateLimit turns a rate-limit expression into a limiter.
//
// Accepted forms are "N/s", "N/m", "N/h" and a bare "N" (per second).
// The empty string means unlimited and yields a nil limiter.
func ParseRateLimit(expr string) (*rate.Limiter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	count, unit, hasUnit := strings.Cut(expr, "/")
	n, err := strconv.ParseFloat(strings.TrimSpace(count), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return nil, fmt.Errorf("invalid rate limit %q: count must be a positive number", expr)
	}

	period := time.Second
	if hasUnit {
		switch strings.TrimSpace(unit) {
		case "s":
			period = time.Second
		case "m":
			period = time.Minute
		case "h":
			period = time.Hour
		default:
			return nil, fmt.Errorf("invalid rate limit %q: unit must be s, m or h", expr)
		}
	}

	return rate.NewLimiter(rate.Every(time.Duration(float64(period)/n)), 1), nil
}
