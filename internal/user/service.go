// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/userhub/internal/model"
	"github.com/hitoshi/userhub/internal/repository"
)

// 一覧取得のページネーション制約。
const (
	// DefaultLimit はlimit未指定時のデフォルト取得件数。
	DefaultLimit = 100
	// MaxLimit はlimitの上限値。
	MaxLimit = 1000
)

// Service はユーザー管理のサービス層。
// 入力検証と一意性チェックを行った上でリポジトリへ永続化を委譲する。
// 検証はすべての変更適用より前に完了するため、部分的な適用は発生しない。
type Service struct {
	repo      repository.UserRepository
	validator *Validator
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.UserRepository, validator *Validator) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create は新規ユーザーを作成する。
// メールアドレスが既存ユーザーと重複する場合はEMAIL_CONFLICTを返す。
// 事前チェックに加えてDB側のUNIQUE制約が競合時の最終防壁となる。
func (s *Service) Create(ctx context.Context, input *Input) (*model.User, error) {
	if err := s.validator.ValidateInput(input); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByEmail(ctx, *input.Email)
	if err != nil {
		return nil, fmt.Errorf("メールアドレスの重複確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailConflictError(*input.Email)
	}

	now := s.now()
	user := &model.User{
		Name:      *input.Name,
		Email:     *input.Email,
		Age:       *input.Age,
		Bio:       input.Bio,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if _, ok := err.(*model.APIError); ok {
			return nil, err
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("user created",
		slog.Int64("user_id", user.ID),
	)

	return user, nil
}

// Get は指定IDのユーザーを取得する。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}
	return user, nil
}

// List はフィルタ・ページネーション付きの一覧を作成順（ID昇順）で返す。
// limit未指定時のデフォルト適用は呼び出し側（ハンドラー層）の責務であり、
// ここではskipが負、またはlimitが[1, MaxLimit]の範囲外の場合に
// 明示指定のlimit=0も含めてINVALID_QUERYを返す。
func (s *Service) List(ctx context.Context, params repository.ListParams) ([]model.User, error) {
	if params.Skip < 0 {
		return nil, model.NewInvalidQueryError(fmt.Sprintf("skipは0以上を指定してください: %d", params.Skip))
	}
	if params.Limit < 1 || params.Limit > MaxLimit {
		return nil, model.NewInvalidQueryError(fmt.Sprintf("limitは1以上%d以下を指定してください: %d", MaxLimit, params.Limit))
	}
	if params.MinAge != nil && *params.MinAge < 0 {
		return nil, model.NewInvalidQueryError(fmt.Sprintf("min_ageは0以上を指定してください: %d", *params.MinAge))
	}
	if params.MaxAge != nil && *params.MaxAge < 0 {
		return nil, model.NewInvalidQueryError(fmt.Sprintf("max_ageは0以上を指定してください: %d", *params.MaxAge))
	}

	users, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Replace は指定IDのユーザーを全フィールド上書きで更新する（PUT相当）。
// メールアドレスを変更する場合、他ユーザーとの重複はEMAIL_CONFLICTを返す。
// 自身の現在のメールアドレスと同じ値への「変更」は常に成功する。
func (s *Service) Replace(ctx context.Context, id int64, input *Input) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}

	if err := s.validator.ValidateInput(input); err != nil {
		return nil, err
	}

	if *input.Email != user.Email {
		if err := s.ensureEmailAvailable(ctx, *input.Email, id); err != nil {
			return nil, err
		}
	}

	user.Name = *input.Name
	user.Email = *input.Email
	user.Age = *input.Age
	user.Bio = input.Bio
	user.UpdatedAt = s.now()

	if err := s.persistUpdate(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// PartialUpdate は指定IDのユーザーを部分更新する（PATCH相当）。
// patchで指定されたフィールドのみを検証・上書きし、未指定のフィールドは維持する。
// 存在確認・一意性チェックはReplaceと同じ。updated_atは成功時に必ず更新される。
func (s *Service) PartialUpdate(ctx context.Context, id int64, patch *Patch) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(id)
	}

	if err := s.validator.ValidatePatch(patch); err != nil {
		return nil, err
	}

	if patch.Email != nil && *patch.Email != user.Email {
		if err := s.ensureEmailAvailable(ctx, *patch.Email, id); err != nil {
			return nil, err
		}
	}

	// 指定されたフィールドのみをマージする
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.Age != nil {
		user.Age = *patch.Age
	}
	if patch.Bio != nil {
		user.Bio = patch.Bio
	}
	user.UpdatedAt = s.now()

	if err := s.persistUpdate(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Delete は指定IDのユーザーを完全に削除する。復元はできない。
// 削除後に同じメールアドレスで再作成した場合は新しいIDが採番される。
func (s *Service) Delete(ctx context.Context, id int64) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError(id)
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("user deleted",
		slog.Int64("user_id", id),
	)

	return nil
}

// Search は名前またはメールアドレスにtermを含むユーザーを作成順で返す。
// 一覧フィルタのAND結合と異なり、name/emailのOR結合で一致判定する。
// 空文字の拒否はハンドラー層の責務（ストア直呼びでは全件一致）。
func (s *Service) Search(ctx context.Context, term string) ([]model.User, error) {
	users, err := s.repo.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	return users, nil
}

// ensureEmailAvailable はemailが他のユーザー（selfID以外）に使われていないことを確認する。
func (s *Service) ensureEmailAvailable(ctx context.Context, email string, selfID int64) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("メールアドレスの重複確認に失敗しました: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return model.NewEmailConflictError(email)
	}
	return nil
}

// persistUpdate は更新を永続化し、リポジトリ由来のAPIErrorを透過する。
func (s *Service) persistUpdate(ctx context.Context, user *model.User) error {
	if err := s.repo.Update(ctx, user); err != nil {
		if _, ok := err.(*model.APIError); ok {
			return err
		}
		return fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}
	return nil
}
