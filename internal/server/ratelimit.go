package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter tracks request counts and uploaded bytes per client.
type RateLimiter struct {
	mu sync.Mutex

	perMinute   int
	perHour     int
	perDay      int
	dataPerDay  int64
	now         func() time.Time
	clientUsage map[string]*usage
}

type usage struct {
	minuteStart time.Time
	hourStart   time.Time
	day         time.Time

	minute int
	hour   int
	today  int
	data   int64
}

// NewRateLimiter creates a limiter. Zero disables the corresponding limit.
func NewRateLimiter(perMinute, perHour, perDay int, dataPerDay int64) *RateLimiter {
	return &RateLimiter{
		perMinute:   perMinute,
		perHour:     perHour,
		perDay:      perDay,
		dataPerDay:  dataPerDay,
		now:         time.Now,
		clientUsage: make(map[string]*usage),
	}
}

// CheckRateLimit records a request of dataSize bytes from client, or returns a
// *RateLimitError or *QuotaExceededError without recording it.
func (rl *RateLimiter) CheckRateLimit(client string, dataSize int64) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	u, ok := rl.clientUsage[client]
	if !ok {
		u = &usage{minuteStart: now, hourStart: now, day: startOfDay(now)}
		rl.clientUsage[client] = u
	}
	u.roll(now)

	if rl.perMinute > 0 && u.minute >= rl.perMinute {
		return &RateLimitError{Window: "minute", Limit: rl.perMinute, RetryAfter: u.minuteStart.Add(time.Minute).Sub(now)}
	}
	if rl.perHour > 0 && u.hour >= rl.perHour {
		return &RateLimitError{Window: "hour", Limit: rl.perHour, RetryAfter: u.hourStart.Add(time.Hour).Sub(now)}
	}
	resets := u.day.AddDate(0, 0, 1)
	if rl.perDay > 0 && u.today >= rl.perDay {
		return &QuotaExceededError{Quota: "requests", Limit: int64(rl.perDay), Used: int64(u.today), Resets: resets}
	}
	if rl.dataPerDay > 0 && u.data+dataSize > rl.dataPerDay {
		return &QuotaExceededError{Quota: "data", Limit: rl.dataPerDay, Used: u.data, Resets: resets}
	}

	u.minute++
	u.hour++
	u.today++
	u.data += dataSize
	return nil
}

// roll starts new fixed windows once the current ones have elapsed.
func (u *usage) roll(now time.Time) {
	if now.Sub(u.minuteStart) >= time.Minute {
		u.minuteStart, u.minute = now, 0
	}
	if now.Sub(u.hourStart) >= time.Hour {
		u.hourStart, u.hour = now, 0
	}
	if d := startOfDay(now); !d.Equal(u.day) {
		u.day, u.today, u.data = d, 0, 0
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Usage returns the requests and bytes counted for client today.
func (rl *RateLimiter) Usage(client string) (requests int, data int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if u, ok := rl.clientUsage[client]; ok {
		return u.today, u.data
	}
	return 0, 0
}

// RateLimitError reports an exceeded per-minute or per-hour limit.
type RateLimitError struct {
	Window     string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Window, e.Limit, e.RetryAfter.Round(time.Second))
}

// QuotaExceededError reports an exhausted daily quota.
type QuotaExceededError struct {
	Quota  string
	Limit  int64
	Used   int64
	Resets time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Quota, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
