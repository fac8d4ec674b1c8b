// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/jrgrant560/mychirp/internal/model"
)

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// ListRecent は投稿をcreated_at降順でlimit件まで取得する。
	// authorIDが空文字列の場合は全投稿、非空の場合はその著者の投稿のみを返す。
	ListRecent(ctx context.Context, authorID string, limit int) ([]*model.Post, error)
}
