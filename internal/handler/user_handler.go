// Package handler はHTTP APIのルーティングとハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/userhub/internal/metrics"
	"github.com/hitoshi/userhub/internal/model"
	"github.com/hitoshi/userhub/internal/repository"
	"github.com/hitoshi/userhub/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Create は新規ユーザーを作成する。
	Create(ctx context.Context, input *user.Input) (*model.User, error)
	// Get は指定IDのユーザーを取得する。
	Get(ctx context.Context, id int64) (*model.User, error)
	// List はフィルタ・ページネーション付きの一覧を返す。
	List(ctx context.Context, params repository.ListParams) ([]model.User, error)
	// Replace は全フィールド上書き更新を行う。
	Replace(ctx context.Context, id int64, input *user.Input) (*model.User, error)
	// PartialUpdate は指定フィールドのみの部分更新を行う。
	PartialUpdate(ctx context.Context, id int64, patch *user.Patch) (*model.User, error)
	// Delete はユーザーを完全に削除する。
	Delete(ctx context.Context, id int64) error
	// Search は名前またはメールアドレスの部分一致検索を行う。
	Search(ctx context.Context, term string) ([]model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
//
// x-api-key、authorization、x-user-id等のヘッダーは受け付けるが検証しない。
// 認証は行わない仕様であり、これは既知のギャップとして明示されている。
type UserHandler struct {
	service UserServiceInterface
	metrics *metrics.Collector
}

// NewUserHandler はUserHandlerを生成する。
// collectorはnil可（nilの場合メトリクスは記録されない）。
func NewUserHandler(service UserServiceInterface, collector *metrics.Collector) *UserHandler {
	return &UserHandler{
		service: service,
		metrics: collector,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Age       int       `json:"age"`
	Bio       *string   `json:"bio"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string               `json:"code"`
	Message  string               `json:"message"`
	Category string               `json:"category"`
	Action   string               `json:"action"`
	Fields   []fieldErrorResponse `json:"fields,omitempty"`
}

// fieldErrorResponse はフィールド単位のバリデーションエラー詳細。
type fieldErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// toUserResponse はドメインのUserをレスポンス型に変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Age:       u.Age,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// toUserListResponse はUserのスライスをレスポンス型のスライスに変換する。
// 0件の場合もJSONのnullではなく空配列を返す。
func toUserListResponse(users []model.User) []userResponse {
	results := make([]userResponse, len(users))
	for i := range users {
		results[i] = toUserResponse(&users[i])
	}
	return results
}

// CreateUser は新規ユーザー作成を処理する。
// POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var input user.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	created, err := h.service.Create(r.Context(), &input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordUserCreated()
	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

// ListUsers はフィルタ・ページネーション付きの一覧取得を処理する。
// GET /users?skip=&limit=&name=&min_age=&max_age=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	users, err := h.service.List(r.Context(), params)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserListResponse(users))
}

// GetUser はID指定のユーザー取得を処理する。
// GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(found))
}

// ReplaceUser は全フィールド上書き更新を処理する。
// PUT /users/{id}
func (h *UserHandler) ReplaceUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var input user.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	updated, err := h.service.Replace(r.Context(), id, &input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// PartialUpdateUser は指定フィールドのみの部分更新を処理する。
// PATCH /users/{id}
func (h *UserHandler) PartialUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	var patch user.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	updated, err := h.service.PartialUpdate(r.Context(), id, &patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// DeleteUser はユーザー削除を処理する。成功時はボディなしの204を返す。
// DELETE /users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordUserDeleted()
	w.WriteHeader(http.StatusNoContent)
}

// SearchUsers は名前またはメールアドレスの部分一致検索を処理する。
// GET /users/search/{term}
func (h *UserHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	// 空文字のみ拒否する。空白だけの検索語はリテラルの空白として検索する
	term := chi.URLParam(r, "term")
	if term == "" {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, model.NewEmptySearchTermError())
		return
	}

	users, err := h.service.Search(r.Context(), term)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserListResponse(users))
}

// parseUserID はパスパラメータ{id}を正の整数として解析する。
// 数値でない、または1未満の場合はINVALID_QUERYを返す。
func parseUserID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, model.NewInvalidQueryError("idは1以上の整数を指定してください: " + raw)
	}
	return id, nil
}

// parseListParams は一覧取得のクエリパラメータを解析する。
// skip/limit未指定時はデフォルト（0/100）を適用する。
func parseListParams(r *http.Request) (repository.ListParams, error) {
	params := repository.ListParams{
		Skip:  0,
		Limit: user.DefaultLimit,
	}

	q := r.URL.Query()

	if raw := q.Get("skip"); raw != "" {
		skip, err := strconv.Atoi(raw)
		if err != nil {
			return params, model.NewInvalidQueryError("skipは整数を指定してください: " + raw)
		}
		params.Skip = skip
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return params, model.NewInvalidQueryError("limitは整数を指定してください: " + raw)
		}
		params.Limit = limit
	}

	if name := q.Get("name"); name != "" {
		params.Name = &name
	}

	if raw := q.Get("min_age"); raw != "" {
		minAge, err := strconv.Atoi(raw)
		if err != nil {
			return params, model.NewInvalidQueryError("min_ageは整数を指定してください: " + raw)
		}
		params.MinAge = &minAge
	}

	if raw := q.Get("max_age"); raw != "" {
		maxAge, err := strconv.Atoi(raw)
		if err != nil {
			return params, model.NewInvalidQueryError("max_ageは整数を指定してください: " + raw)
		}
		params.MaxAge = &maxAge
	}

	return params, nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	fields := make([]fieldErrorResponse, 0, len(apiErr.Fields))
	for _, f := range apiErr.Fields {
		fields = append(fields, fieldErrorResponse{Field: f.Field, Message: f.Message})
	}
	if len(fields) == 0 {
		fields = nil
	}

	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Fields:   fields,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// メールアドレス重複は422ではなく400を返す（既存APIとの互換仕様）。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeEmailConflict:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidQuery:
		return http.StatusUnprocessableEntity
	case model.ErrCodeEmptySearchTerm:
		return http.StatusUnprocessableEntity
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
