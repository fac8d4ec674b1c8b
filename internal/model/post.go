// Package model はドメインモデルを定義する。
package model

import "time"

// Post は投稿を表す。
// AuthorIDは外部IdPのユーザーIDであり、ローカルでは参照整合性を持たない不透明な文字列として扱う。
type Post struct {
	ID        string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// Author は外部ユーザーディレクトリから取得した公開プロフィールの射影を表す。
// リクエストごとにアプリケーション側で結合され、永続化されない。
type Author struct {
	ID       string
	Username string
	ImageURL string
}

// EnrichedPost は投稿と著者情報を結合したレスポンスモデル。
type EnrichedPost struct {
	Post   *Post
	Author Author
}
