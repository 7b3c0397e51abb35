package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
	"github.com/zatekoja/dentalprotocols/backend/internal/domain/repositories"
	redisclient "github.com/zatekoja/dentalprotocols/backend/internal/infrastructure/clients/redis"
)

// counterGrace keeps a window's key a little past its end so a late read still sees it
const counterGrace = time.Minute

type rateWindow struct {
	name   string
	start  time.Time
	length func(time.Time) time.Time
}

// RedisRateLimitAdapter keeps one counter key per window plus a small hash
// recording which windows are current for the (user, operation) pair.
type RedisRateLimitAdapter struct {
	client *redisclient.Client
}

// NewRedisRateLimitAdapter creates a new redis rate limit adapter
func NewRedisRateLimitAdapter(client *redisclient.Client) repositories.RateLimitRepository {
	return &RedisRateLimitAdapter{client: client}
}

func rateLimitKey(userID, operation string) string {
	return fmt.Sprintf("ratelimit:%s:%s", userID, operation)
}

func rateCounterKey(userID, operation, window string, start time.Time) string {
	return fmt.Sprintf("%s:%s:%d", rateLimitKey(userID, operation), window, start.Unix())
}

func windowsOf(w entities.RateLimitWindows) []rateWindow {
	return []rateWindow{
		{name: "minute", start: w.Minute, length: func(t time.Time) time.Time { return t.Add(time.Minute) }},
		{name: "hour", start: w.Hour, length: func(t time.Time) time.Time { return t.Add(time.Hour) }},
		{name: "day", start: w.Day, length: func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }},
	}
}

// Get returns the counters of the most recently used windows, or nil for an unused pair
func (a *RedisRateLimitAdapter) Get(ctx context.Context, userID, operation string) (*entities.RateLimitCounters, error) {
	meta, err := a.client.Client().HGetAll(ctx, rateLimitKey(userID, operation)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit windows: %w", err)
	}
	if len(meta) == 0 {
		return nil, nil
	}

	var w entities.RateLimitWindows
	for name, target := range map[string]*time.Time{"minute": &w.Minute, "hour": &w.Hour, "day": &w.Day} {
		unix, err := strconv.ParseInt(meta[name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt %s window for %s: %w", name, rateLimitKey(userID, operation), err)
		}
		*target = time.Unix(unix, 0)
	}

	windows := windowsOf(w)
	keys := make([]string, len(windows))
	for i, win := range windows {
		keys[i] = rateCounterKey(userID, operation, win.name, win.start)
	}

	values, err := a.client.Client().MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit counters: %w", err)
	}

	counts := make([]int, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // expired or never written
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("corrupt counter %s: %w", keys[i], err)
		}
		counts[i] = n
	}

	return &entities.RateLimitCounters{
		UserID:       userID,
		Operation:    operation,
		MinuteCount:  counts[0],
		MinuteWindow: w.Minute,
		HourCount:    counts[1],
		HourWindow:   w.Hour,
		DayCount:     counts[2],
		DayWindow:    w.Day,
	}, nil
}

// incrementScript checks every limited window and, only when all have room,
// bumps the three counters and moves the window pointer. Redis runs a script
// atomically, so concurrent callers cannot both take the last slot.
//
// KEYS: pointer hash, minute, hour and day counters.
// ARGV: three ceilings, three counter expiries, three window starts, pointer expiry.
var incrementScript = redis.NewScript(`
for i = 1, 3 do
	local limit = tonumber(ARGV[i])
	if limit > 0 then
		local used = tonumber(redis.call('GET', KEYS[i + 1]) or '0')
		if used >= limit then
			return 0
		end
	end
end
for i = 1, 3 do
	redis.call('INCR', KEYS[i + 1])
	redis.call('EXPIREAT', KEYS[i + 1], ARGV[i + 3])
end
redis.call('HSET', KEYS[1], 'minute', ARGV[7], 'hour', ARGV[8], 'day', ARGV[9])
redis.call('EXPIREAT', KEYS[1], ARGV[10])
return 1
`)

// Increment bumps the three window counters and the window pointer in one
// script, unless a positive ceiling is already reached.
func (a *RedisRateLimitAdapter) Increment(ctx context.Context, userID, operation string, w entities.RateLimitWindows, limits entities.RateLimitConfig) (bool, error) {
	windows := windowsOf(w)
	keys := []string{rateLimitKey(userID, operation)}
	args := []interface{}{limits.PerMinute, limits.PerHour, limits.PerDay}
	for _, win := range windows {
		keys = append(keys, rateCounterKey(userID, operation, win.name, win.start))
		args = append(args, win.length(win.start).Add(counterGrace).Unix())
	}
	for _, win := range windows {
		args = append(args, win.start.Unix())
	}
	args = append(args, w.Day.AddDate(0, 0, 1).Add(counterGrace).Unix())

	counted, err := incrementScript.Run(ctx, a.client.Client(), keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counters: %w", err)
	}
	return counted == 1, nil
}
