package entities

import "time"

// RateLimitConfig holds the ceilings for one operation
type RateLimitConfig struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
	PerDay    int `json:"per_day"`
}

// RateLimitWindows holds the start of the current minute, hour and day windows.
type RateLimitWindows struct {
	Minute time.Time
	Hour   time.Time
	Day    time.Time
}

// WindowsAt floors an instant to its minute, hour and day windows in the instant's location.
func WindowsAt(now time.Time) RateLimitWindows {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return RateLimitWindows{
		Minute: now.Truncate(time.Minute),
		Hour:   time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location()),
		Day:    day,
	}
}

// RateLimitCounters is the stored per-(user, operation) usage row
type RateLimitCounters struct {
	UserID       string    `db:"user_id"`
	Operation    string    `db:"operation"`
	MinuteCount  int       `db:"minute_count"`
	MinuteWindow time.Time `db:"minute_window"`
	HourCount    int       `db:"hour_count"`
	HourWindow   time.Time `db:"hour_window"`
	DayCount     int       `db:"day_count"`
	DayWindow    time.Time `db:"day_window"`
}

// Current returns the counts that still apply to the given windows; stale windows count as zero.
func (c *RateLimitCounters) Current(w RateLimitWindows) (minute, hour, day int) {
	if c == nil {
		return 0, 0, 0
	}
	if !c.MinuteWindow.Before(w.Minute) {
		minute = c.MinuteCount
	}
	if !c.HourWindow.Before(w.Hour) {
		hour = c.HourCount
	}
	if !c.DayWindow.Before(w.Day) {
		day = c.DayCount
	}
	return minute, hour, day
}

// RateLimitResult is the outcome of a rate limit check
type RateLimitResult struct {
	Allowed    bool          `json:"allowed"`
	Remaining  int           `json:"remaining"`
	ResetAt    time.Time     `json:"reset_at"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least 1 when set.
func (r RateLimitResult) RetryAfterSeconds() int {
	if r.RetryAfter <= 0 {
		return 0
	}
	secs := int((r.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// CreditResult is the outcome of a credit consumption
type CreditResult struct {
	Allowed bool `json:"allowed"`
	Balance int  `json:"balance"`
	// Replayed is set when the idempotency id had already been consumed.
	Replayed bool `json:"replayed,omitempty"`
}

// RefundFailure records a compensation that could not be applied inline
type RefundFailure struct {
	ID            string     `json:"id" db:"id"`
	UserID        string     `json:"user_id" db:"user_id"`
	Operation     string     `json:"operation" db:"operation"`
	IdempotencyID string     `json:"idempotency_id" db:"idempotency_id"`
	LastError     string     `json:"last_error" db:"last_error"`
	Attempts      int        `json:"attempts" db:"attempts"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}
