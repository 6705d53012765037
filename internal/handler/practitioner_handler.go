package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/examsched/internal/middleware"
	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/registry"
)

// PractitionerServiceInterface は実施者ハンドラーが必要とするサービスインターフェース。
type PractitionerServiceInterface interface {
	ListPractitioners(ctx context.Context, principal model.Principal) ([]*model.Practitioner, error)
	CreatePractitioner(ctx context.Context, principal model.Principal, in registry.CreatePractitionerInput) (*model.Practitioner, error)
	DeletePractitioner(ctx context.Context, principal model.Principal, id string) error
	ResetPassword(ctx context.Context, principal model.Principal, id, newPassword string) error
}

// PractitionerHandler は実施者管理のHTTPハンドラー。
type PractitionerHandler struct {
	service PractitionerServiceInterface
}

// NewPractitionerHandler はPractitionerHandlerを生成する。
func NewPractitionerHandler(service PractitionerServiceInterface) *PractitionerHandler {
	return &PractitionerHandler{
		service: service,
	}
}

// createPractitionerRequest は実施者登録リクエストのボディ。
type createPractitionerRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	LicenseID   string `json:"license_id"`
	LegacyID    int64  `json:"legacy_id"`
}

// resetPasswordRequest はパスワードリセットリクエストのボディ。
type resetPasswordRequest struct {
	Password string `json:"password"`
}

// practitionerResponse は実施者のAPIレスポンス。資格情報ハッシュは含めない。
type practitionerResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	LicenseID   string    `json:"license_id,omitempty"`
	LegacyID    int64     `json:"legacy_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListPractitioners は全実施者の一覧を返す。
// GET /api/practitioners
func (h *PractitionerHandler) ListPractitioners(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	practitioners, err := h.service.ListPractitioners(r.Context(), principal)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]practitionerResponse, len(practitioners))
	for i, p := range practitioners {
		results[i] = toPractitionerResponse(p)
	}
	writeJSON(w, http.StatusOK, results)
}

// CreatePractitioner は実施者を登録する。
// POST /api/practitioners
func (h *PractitionerHandler) CreatePractitioner(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	var req createPractitionerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBodyError(w)
		return
	}

	p, err := h.service.CreatePractitioner(r.Context(), principal, registry.CreatePractitionerInput{
		DisplayName: req.DisplayName,
		Email:       req.Email,
		Password:    req.Password,
		Role:        model.Role(req.Role),
		LicenseID:   req.LicenseID,
		LegacyID:    req.LegacyID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPractitionerResponse(p))
}

// DeletePractitioner は実施者を削除する。
// DELETE /api/practitioners/{id}
func (h *PractitionerHandler) DeletePractitioner(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	if err := h.service.DeletePractitioner(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword は実施者の資格情報を再設定する。
// POST /api/practitioners/{id}/reset-password
func (h *PractitionerHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBodyError(w)
		return
	}

	if err := h.service.ResetPassword(r.Context(), principal, chi.URLParam(r, "id"), req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toPractitionerResponse は実施者をAPIレスポンス型に変換する。
func toPractitionerResponse(p *model.Practitioner) practitionerResponse {
	return practitionerResponse{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Role:        string(p.Role),
		LicenseID:   p.LicenseID,
		LegacyID:    p.LegacyID,
		CreatedAt:   p.CreatedAt,
	}
}
