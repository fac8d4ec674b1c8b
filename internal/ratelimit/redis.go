package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// keyPrefix は他アプリケーションとRedisを共有する場合のキー衝突を避けるプレフィックス。
const keyPrefix = "mychirp:ratelimit:"

// RedisLimiter はRedisのソート済みセットを使用したスライディングウィンドウリミッター。
// キーごとに操作時刻をスコアとして記録し、ウィンドウ外のエントリを除去してから数える。
//
// 判定と記録は同一トランザクションではないため、同一キーへの同時リクエストが
// 際どいタイミングで上限を超えて許可されることがある。これはスライディング
// ウィンドウ方式の既知の制約として許容する。
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter はRedisLimiterを生成する。
// limitは1ウィンドウあたりの許容数、windowはウィンドウ幅を指定する。
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Limit はキーに対する操作を判定し、許可された場合はウィンドウに記録する。
func (l *RedisLimiter) Limit(ctx context.Context, key string) (Result, error) {
	now := l.now()
	windowStart := now.Add(-l.window)
	rkey := keyPrefix + key

	// ウィンドウ外のエントリを除去してから現在のカウントを取得する
	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, rkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("レート制限カウンタの取得に失敗しました: %w", err)
	}

	count := int(countCmd.Val())
	if count >= l.limit {
		// 最古のエントリがウィンドウを抜ける時刻が次に空きができる時刻
		reset := now.Add(l.window)
		oldest, err := l.client.ZRangeWithScores(ctx, rkey, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			reset = time.Unix(0, int64(oldest[0].Score)).Add(l.window)
		}
		return Result{
			Success:   false,
			Limit:     l.limit,
			Remaining: 0,
			Reset:     reset,
		}, nil
	}

	// 許可された操作をウィンドウに記録する。
	// メンバーは時刻の衝突を避けるため一意なIDを付与する。
	member := strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()
	add := l.client.TxPipeline()
	add.ZAdd(ctx, rkey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	add.Expire(ctx, rkey, l.window)
	if _, err := add.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("レート制限カウンタの記録に失敗しました: %w", err)
	}

	return Result{
		Success:   true,
		Limit:     l.limit,
		Remaining: l.limit - count - 1,
		Reset:     now.Add(l.window),
	}, nil
}

// compile-time interface check
var _ Limiter = (*RedisLimiter)(nil)
