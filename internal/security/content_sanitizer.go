// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は投稿本文をサニタイズし、保存型XSSなどの
// セキュリティリスクからユーザーを保護する。投稿はプレーンテキスト
// （または絵文字のみ）の想定のため、bluemondayのStrictPolicyで
// すべてのHTMLタグと属性を除去する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は投稿本文のサニタイズ機能のインターフェースを定義する。
// 投稿の保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は本文からすべてのHTMLタグと属性を除去して返す。
	// プレーンテキストと絵文字はそのまま通過させる。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(content string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 投稿本文にマークアップを許可しないため、タグを一切許可しないStrictPolicyを使用する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は本文からすべてのHTMLタグと属性を除去して返す。
func (s *contentSanitizer) Sanitize(content string) string {
	return s.policy.Sanitize(content)
}

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)
