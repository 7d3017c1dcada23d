package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hitoshi/userhub/internal/model"
)

// pqUniqueViolation はPostgreSQLの一意性制約違反のエラーコード。
const pqUniqueViolation = "23505"

// psql はPostgreSQLのプレースホルダ（$1, $2, ...）を使うクエリビルダ。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// userColumns はusersテーブルのSELECT対象カラム。
var userColumns = []string{"id", "name", "email", "age", "bio", "created_at", "updated_at"}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
// メールアドレスの一意性はDB側のUNIQUE制約で保証されるため、
// 同時実行される作成リクエストが競合しても片方は必ず失敗する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO users (name, email, age, bio, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		user.Name, user.Email, user.Age, user.Bio, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewEmailConflictError(user.Email)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user,
		`SELECT id, name, email, age, bio, created_at, updated_at FROM users WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user,
		`SELECT id, name, email, age, bio, created_at, updated_at FROM users WHERE email = $1`,
		email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// List はフィルタ・ページネーション付きの一覧をID昇順で返す。
func (r *PostgresUserRepo) List(ctx context.Context, params ListParams) ([]model.User, error) {
	query, args, err := buildListQuery(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	users := []model.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return users, nil
}

// Update はユーザーの全フィールドを上書き更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $1, email = $2, age = $3, bio = $4, updated_at = $5
		 WHERE id = $6`,
		user.Name, user.Email, user.Age, user.Bio, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.NewEmailConflictError(user.Email)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %d", user.ID)
	}

	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %d", id)
	}

	return nil
}

// Search は名前またはメールアドレスがtermを部分一致（大文字小文字無視）で
// 含むユーザーをID昇順で返す。
// 空のtermはILIKE '%%'として全件に一致する。空文字の拒否はハンドラー層で行う。
func (r *PostgresUserRepo) Search(ctx context.Context, term string) ([]model.User, error) {
	query, args, err := buildSearchQuery(term)
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	users := []model.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}

	return users, nil
}

// buildListQuery は一覧取得のSQLを動的に構築する。
// 指定された全フィルタをAND条件で結合し、ID昇順・OFFSET/LIMIT付きで返す。
func buildListQuery(params ListParams) (string, []interface{}, error) {
	builder := psql.Select(userColumns...).From("users")

	if params.Name != nil {
		builder = builder.Where(sq.ILike{"name": likePattern(*params.Name)})
	}
	if params.MinAge != nil {
		builder = builder.Where(sq.GtOrEq{"age": *params.MinAge})
	}
	if params.MaxAge != nil {
		builder = builder.Where(sq.LtOrEq{"age": *params.MaxAge})
	}

	return builder.
		OrderBy("id ASC").
		Offset(uint64(params.Skip)).
		Limit(uint64(params.Limit)).
		ToSql()
}

// buildSearchQuery は名前OR メールアドレスの部分一致検索SQLを構築する。
// 一覧フィルタのAND結合と異なり、こちらはOR結合で一致判定する。
func buildSearchQuery(term string) (string, []interface{}, error) {
	pattern := likePattern(term)

	return psql.Select(userColumns...).
		From("users").
		Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"email": pattern},
		}).
		OrderBy("id ASC").
		ToSql()
}

// likePattern は部分一致用のLIKEパターンを生成する。
// ユーザー入力に含まれるワイルドカード文字はリテラルとして扱うためエスケープする。
func likePattern(term string) string {
	escaped := strings.NewReplacer(
		`\`, `\\`,
		`%`, `\%`,
		`_`, `\_`,
	).Replace(term)
	return "%" + escaped + "%"
}

// isUniqueViolation はPostgreSQLの一意性制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
