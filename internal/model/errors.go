// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, profile, system
	Action   string // ユーザー向け対処方法

	// RetryAfterSec はRATE_LIMITEDの場合のみ設定される再試行までの推定秒数。
	RetryAfterSec int
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidContent  = "INVALID_CONTENT"
	ErrCodeContentNotEmoji = "CONTENT_NOT_EMOJI"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodePostNotFound    = "POST_NOT_FOUND"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
)

// ErrAuthorNotResolved は投稿が参照する著者をディレクトリで解決できなかったことを示す。
// データ整合性の欠陥でありユーザー起因ではないため、APIErrorではなく内部エラーとして扱う。
// ハンドラーは詳細を隠した500レスポンスに変換し、空の結果に格下げしてはならない。
var ErrAuthorNotResolved = errors.New("投稿の著者をディレクトリで解決できませんでした")

// NewInvalidContentError は投稿本文の長さ制約違反エラーを生成する。
func NewInvalidContentError(length, max int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidContent,
		Message:  fmt.Sprintf("投稿本文の長さが不正です: %d文字（許容範囲: 1〜%d文字）", length, max),
		Category: "validation",
		Action:   fmt.Sprintf("本文は1文字以上%d文字以内で入力してください。", max),
	}
}

// NewContentNotEmojiError は絵文字のみモードで非絵文字が含まれていた場合のエラーを生成する。
func NewContentNotEmojiError() *APIError {
	return &APIError{
		Code:     ErrCodeContentNotEmoji,
		Message:  "投稿本文に絵文字以外の文字が含まれています。",
		Category: "validation",
		Action:   "絵文字のみで入力してください。",
	}
}

// NewRateLimitedError は投稿レート上限超過エラーを生成する。
func NewRateLimitedError(retryAfterSec int) *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "投稿の頻度が高すぎます。",
		Category: "post",
		Action:   fmt.Sprintf("%d秒ほど待ってから再度投稿してください。", retryAfterSec),

		RetryAfterSec: retryAfterSec,
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "post",
		Action:   "投稿IDを確認してください。",
	}
}

// NewUserNotFoundError は指定ユーザー名のユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", username),
		Category: "profile",
		Action:   "ユーザー名を確認してください。",
	}
}

// NewInvalidRequestError はリクエスト形式不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストの形式を確認してください。",
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
