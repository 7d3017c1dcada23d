// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/userhub/internal/model"
)

// ListParams は一覧取得のページネーションとフィルタ条件を表す。
// Name、MinAge、MaxAgeはnilの場合そのフィルタを適用しない。
// 指定された全フィルタはAND条件で結合される。
type ListParams struct {
	Skip   int
	Limit  int
	Name   *string
	MinAge *int
	MaxAge *int
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
	// メールアドレスが重複している場合はEMAIL_CONFLICTのAPIErrorを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// List はフィルタ・ページネーション付きの一覧をID昇順（作成順）で返す。
	List(ctx context.Context, params ListParams) ([]model.User, error)

	// Update はユーザーの全フィールドを上書き更新する。
	// メールアドレスが他ユーザーと重複している場合はEMAIL_CONFLICTのAPIErrorを返す。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id int64) error

	// Search は名前またはメールアドレスがtermを部分一致（大文字小文字無視）で
	// 含むユーザーをID昇順で返す。空のtermは全件一致として扱う。
	Search(ctx context.Context, term string) ([]model.User, error)
}
