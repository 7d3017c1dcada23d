// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/userhub/internal/model"
)

// Input は作成・全体更新（PUT）リクエストの入力を表す。
// 必須フィールドはポインタ型にすることで「未指定」と「ゼロ値」を区別する
// （age: 0 は有効な値のため）。
//
// emailは意図的に書式チェックを行わない。非空のみを要求する仕様であり、
// 書式検証の追加は互換性を壊すため行わない。
type Input struct {
	Name  *string `json:"name" validate:"required,min=1,max=100"`
	Email *string `json:"email" validate:"required,min=1"`
	Age   *int    `json:"age" validate:"required,gte=0,lte=150"`
	Bio   *string `json:"bio" validate:"omitempty,max=500"`
}

// Patch は部分更新（PATCH）リクエストの入力を表す。
// 全フィールドが任意で、指定されたフィールドのみInputと同じルールで検証される。
// nilのフィールドはマージ時に既存値を維持する（JSONのnull指定も未指定として扱う）。
type Patch struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email *string `json:"email" validate:"omitempty,min=1"`
	Age   *int    `json:"age" validate:"omitempty,gte=0,lte=150"`
	Bio   *string `json:"bio" validate:"omitempty,max=500"`
}

// Validator はリクエスト入力のフィールド制約を検証する。
// 副作用を持たない純粋な変換で、ストアには一切アクセスしない。
type Validator struct {
	validate *validator.Validate
}

// NewValidator はValidatorを生成する。
// エラー報告のフィールド名にはJSONタグ名を使用する。
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// ValidateInput は作成・全体更新の入力を検証する。
// 制約違反がある場合はフィールド単位の詳細を含むAPIErrorを返す。
func (v *Validator) ValidateInput(input *Input) error {
	return v.check(input)
}

// ValidatePatch は部分更新の入力を検証する。
// 指定されたフィールドのみを検証し、nilのフィールドは対象外とする。
func (v *Validator) ValidatePatch(patch *Patch) error {
	return v.check(patch)
}

// check は構造体のvalidateタグを評価し、違反をAPIErrorに変換する。
func (v *Validator) check(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	ok := false
	if verrs, ok = err.(validator.ValidationErrors); !ok {
		return fmt.Errorf("validation failed: %w", err)
	}

	fields := make([]model.FieldViolation, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, model.FieldViolation{
			Field:   fe.Field(),
			Message: violationMessage(fe),
		})
	}

	return model.NewValidationError(fields)
}

// violationMessage はバリデーションタグから利用者向けメッセージを生成する。
func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です。"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s文字以上で入力してください。", fe.Param())
		}
		return fmt.Sprintf("%s以上の値を指定してください。", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s文字以内で入力してください。", fe.Param())
		}
		return fmt.Sprintf("%s以下の値を指定してください。", fe.Param())
	case "gte":
		return fmt.Sprintf("%s以上の値を指定してください。", fe.Param())
	case "lte":
		return fmt.Sprintf("%s以下の値を指定してください。", fe.Param())
	default:
		return "入力値が不正です。"
	}
}
