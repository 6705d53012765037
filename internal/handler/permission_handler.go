package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/examsched/internal/middleware"
	"github.com/hitoshi/examsched/internal/model"
)

// PermissionServiceInterface は許可ハンドラーが必要とするサービスインターフェース。
type PermissionServiceInterface interface {
	ListGrants(ctx context.Context, principal model.Principal, practitionerID string) ([]string, error)
	ReplaceGrants(ctx context.Context, principal model.Principal, practitionerID string, locationIDs []string) error
	ToggleGrant(ctx context.Context, principal model.Principal, practitionerID, locationID string) (bool, error)
}

// PermissionHandler は許可マトリクスのHTTPハンドラー。
type PermissionHandler struct {
	service PermissionServiceInterface
}

// NewPermissionHandler はPermissionHandlerを生成する。
func NewPermissionHandler(service PermissionServiceInterface) *PermissionHandler {
	return &PermissionHandler{
		service: service,
	}
}

// replaceGrantsRequest は許可全置換リクエストのボディ。
type replaceGrantsRequest struct {
	LocationIDs []string `json:"location_ids"`
}

// toggleGrantRequest は許可トグルリクエストのボディ。
type toggleGrantRequest struct {
	LocationID string `json:"location_id"`
}

// grantsResponse は許可一覧のAPIレスポンス。
type grantsResponse struct {
	PractitionerID string   `json:"practitioner_id"`
	LocationIDs    []string `json:"location_ids"`
}

// toggleGrantResponse は許可トグルのAPIレスポンス。
type toggleGrantResponse struct {
	PractitionerID string `json:"practitioner_id"`
	LocationID     string `json:"location_id"`
	Granted        bool   `json:"granted"`
}

// ListGrants は実施者の許可検査地一覧を返す。
// GET /api/permissions/{practitionerID}
func (h *PermissionHandler) ListGrants(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	practitionerID := chi.URLParam(r, "practitionerID")
	ids, err := h.service.ListGrants(r.Context(), principal, practitionerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, grantsResponse{
		PractitionerID: practitionerID,
		LocationIDs:    ids,
	})
}

// ReplaceGrants は実施者の許可集合を全置換する。
// PUT /api/permissions/{practitionerID}
func (h *PermissionHandler) ReplaceGrants(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	var req replaceGrantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBodyError(w)
		return
	}

	practitionerID := chi.URLParam(r, "practitionerID")
	if err := h.service.ReplaceGrants(r.Context(), principal, practitionerID, req.LocationIDs); err != nil {
		handleServiceError(w, err)
		return
	}

	ids, err := h.service.ListGrants(r.Context(), principal, practitionerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, grantsResponse{
		PractitionerID: practitionerID,
		LocationIDs:    ids,
	})
}

// ToggleGrant は1組の許可エッジを反転する。
// POST /api/permissions/{practitionerID}/toggle
func (h *PermissionHandler) ToggleGrant(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	var req toggleGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBodyError(w)
		return
	}

	if req.LocationID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("location_id", "must not be empty"))
		return
	}

	practitionerID := chi.URLParam(r, "practitionerID")
	granted, err := h.service.ToggleGrant(r.Context(), principal, practitionerID, req.LocationID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toggleGrantResponse{
		PractitionerID: practitionerID,
		LocationID:     req.LocationID,
		Granted:        granted,
	})
}
