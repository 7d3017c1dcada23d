// Package model はドメインモデルを定義する。
package model

import "time"

// User は管理対象のユーザーレコードを表す。
// IDはDB側のBIGSERIALで採番され、一度削除されたIDは再利用されない。
type User struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Age       int       `db:"age"`
	Bio       *string   `db:"bio"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
