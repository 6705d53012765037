package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/examsched/internal/middleware"
	"github.com/hitoshi/examsched/internal/model"
)

// AuditServiceInterface は監査ハンドラーが必要とするサービスインターフェース。
type AuditServiceInterface interface {
	ListRecent(ctx context.Context, principal model.Principal, limit int) ([]*model.AuditEntry, error)
}

// AuditHandler は監査ログのHTTPハンドラー。
type AuditHandler struct {
	service AuditServiceInterface
}

// NewAuditHandler はAuditHandlerを生成する。
func NewAuditHandler(service AuditServiceInterface) *AuditHandler {
	return &AuditHandler{
		service: service,
	}
}

// auditEntryResponse は監査行のAPIレスポンス。
type auditEntryResponse struct {
	ID               string    `json:"id"`
	PractitionerID   string    `json:"practitioner_id,omitempty"`
	PractitionerName string    `json:"practitioner_name,omitempty"`
	Action           string    `json:"action"`
	Detail           string    `json:"detail"`
	CreatedAt        time.Time `json:"created_at"`
}

// ListRecent は新しい順の監査ログを返す。
// GET /api/audit?limit=
func (h *AuditHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limit", "must be an integer"))
			return
		}
	}

	entries, err := h.service.ListRecent(r.Context(), principal, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]auditEntryResponse, len(entries))
	for i, e := range entries {
		results[i] = auditEntryResponse{
			ID:               e.ID,
			PractitionerID:   e.PractitionerID,
			PractitionerName: e.PractitionerName,
			Action:           e.Action,
			Detail:           e.Detail,
			CreatedAt:        e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, results)
}
