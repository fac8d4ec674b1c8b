// Package ratelimit は投稿書き込みに対するスライディングウィンドウ方式の
// レート制限を提供する。制限カウンタはRedisに保持し、Redisが構成されていない
// 環境ではインメモリ実装にフォールバックする。
package ratelimit

import (
	"context"
	"time"
)

// Result はレート制限判定の結果を表す。
type Result struct {
	Success   bool      // trueの場合、操作は許可された
	Limit     int       // ウィンドウあたりの許容数
	Remaining int       // ウィンドウ内の残り許容数
	Reset     time.Time // ウィンドウに空きができる推定時刻
}

// Limiter はキーごとのスライディングウィンドウレート制限のインターフェース。
// 任意の直近ウィンドウ幅の中でキーあたり最大N回の操作を許可する。
type Limiter interface {
	// Limit はキーに対する操作を1回分判定する。
	// 許可された場合はその操作をウィンドウに記録する。
	Limit(ctx context.Context, key string) (Result, error)
}
