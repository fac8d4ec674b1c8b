// Package profile はユーザープロフィール参照のドメインロジックを提供する。
package profile

import (
	"context"
	"fmt"

	"github.com/jrgrant560/mychirp/internal/directory"
	"github.com/jrgrant560/mychirp/internal/model"
)

// Directory はプロフィールサービスが必要とするユーザーディレクトリのインターフェース。
type Directory interface {
	// FindByUsername はユーザー名に完全一致するユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*directory.User, error)
}

// Service はプロフィール参照のサービス層。
type Service struct {
	dir Directory
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(dir Directory) *Service {
	return &Service{dir: dir}
}

// GetUserByUsername は指定されたユーザー名の公開プロフィールを返す。
// 該当するユーザーが存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) GetUserByUsername(ctx context.Context, username string) (model.Author, error) {
	if username == "" {
		return model.Author{}, model.NewInvalidRequestError("ユーザー名が空です")
	}

	user, err := s.dir.FindByUsername(ctx, username)
	if err != nil {
		return model.Author{}, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		return model.Author{}, model.NewUserNotFoundError(username)
	}

	// ユーザー名で検索して一致した以上、ユーザー名がnullであることは
	// ディレクトリ側の整合性異常を意味する
	author, ok := directory.ToAuthor(*user)
	if !ok {
		return model.Author{}, fmt.Errorf("%w: user_id=%s", model.ErrAuthorNotResolved, user.ID)
	}

	return author, nil
}
