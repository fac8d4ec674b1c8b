package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter はインメモリのスライディングウィンドウリミッター。
// REDIS_URLが未設定の環境およびテストで使用する。
// プロセスをまたいだカウントの共有はできない。
type MemoryLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewMemoryLimiter はMemoryLimiterを生成する。
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		events: make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Limit はキーに対する操作を判定し、許可された場合はウィンドウに記録する。
func (l *MemoryLimiter) Limit(ctx context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	// ウィンドウ外のエントリを除去する
	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.events[key] = kept
		return Result{
			Success:   false,
			Limit:     l.limit,
			Remaining: 0,
			Reset:     kept[0].Add(l.window),
		}, nil
	}

	l.events[key] = append(kept, now)
	return Result{
		Success:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(kept) - 1,
		Reset:     now.Add(l.window),
	}, nil
}

// compile-time interface check
var _ Limiter = (*MemoryLimiter)(nil)
