package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/examsched/internal/middleware"
	"github.com/hitoshi/examsched/internal/model"
)

// LocationServiceInterface は検査地ハンドラーが必要とするサービスインターフェース。
type LocationServiceInterface interface {
	ListLocations(ctx context.Context, principal model.Principal) ([]*model.Location, error)
	CreateLocation(ctx context.Context, principal model.Principal, name string) (*model.Location, error)
	RenameLocation(ctx context.Context, principal model.Principal, id, newName string) (*model.Location, error)
	SetLocationActive(ctx context.Context, principal model.Principal, id string, active bool) error
	DeleteLocation(ctx context.Context, principal model.Principal, id string) error
}

// LocationHandler は検査地管理のHTTPハンドラー。
type LocationHandler struct {
	service LocationServiceInterface
}

// NewLocationHandler はLocationHandlerを生成する。
func NewLocationHandler(service LocationServiceInterface) *LocationHandler {
	return &LocationHandler{
		service: service,
	}
}

// locationRequest は検査地の作成・改名リクエストのボディ。
type locationRequest struct {
	Name string `json:"name"`
}

// locationActiveRequest はアクティブフラグ更新リクエストのボディ。
type locationActiveRequest struct {
	Active bool `json:"active"`
}

// locationResponse は検査地のAPIレスポンス。
type locationResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ListLocations は呼び出し元に見える検査地の一覧を返す。
// GET /api/locations
func (h *LocationHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	locations, err := h.service.ListLocations(r.Context(), principal)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]locationResponse, len(locations))
	for i, loc := range locations {
		results[i] = toLocationResponse(loc)
	}
	writeJSON(w, http.StatusOK, results)
}

// CreateLocation は検査地を登録する。
// POST /api/locations
func (h *LocationHandler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBodyError(w)
		return
	}

	loc, err := h.service.CreateLocation(r.Context(), principal, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toLocationResponse(loc))
}

// RenameLocation は検査地の表示名を変更する。
// PATCH /api/locations/{id}
func (h *LocationHandler) RenameLocation(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBodyError(w)
		return
	}

	loc, err := h.service.RenameLocation(r.Context(), principal, chi.URLParam(r, "id"), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toLocationResponse(loc))
}

// SetActive は検査地のアクティブフラグを更新する。
// PUT /api/locations/{id}/active
func (h *LocationHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	var req locationActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBodyError(w)
		return
	}

	if err := h.service.SetLocationActive(r.Context(), principal, chi.URLParam(r, "id"), req.Active); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteLocation は検査地を削除する。
// DELETE /api/locations/{id}
func (h *LocationHandler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	if err := h.service.DeleteLocation(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toLocationResponse は検査地をAPIレスポンス型に変換する。
func toLocationResponse(loc *model.Location) locationResponse {
	return locationResponse{
		ID:        loc.ID,
		Name:      loc.Name,
		Active:    loc.Active,
		CreatedAt: loc.CreatedAt,
	}
}
