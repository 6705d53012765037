package handler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/examsched/internal/event"
	"github.com/hitoshi/examsched/internal/middleware"
	"github.com/hitoshi/examsched/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, principal model.Principal, in event.CreateEventInput) (*model.EventProjection, error)
	DeleteEvent(ctx context.Context, principal model.Principal, id string) error
	ListEvents(ctx context.Context, principal model.Principal, filter event.ListFilter) ([]*model.EventProjection, error)
	ExportMonth(ctx context.Context, principal model.Principal, year int, month time.Month) ([]*model.EventProjection, error)
}

// EventHandler はカレンダーイベントのHTTPハンドラー。
type EventHandler struct {
	service EventServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface) *EventHandler {
	return &EventHandler{
		service: service,
	}
}

// createEventRequest はイベント作成リクエストのボディ。
type createEventRequest struct {
	PractitionerID string `json:"practitioner_id"`
	LocationID     string `json:"location_id"`
	Day            string `json:"day"`
	ExamCount      int    `json:"exam_count"`
}

// eventResponse はイベントのAPIレスポンス。
// タイトルは現在の検査地名から組み立てた表示用文字列。
type eventResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Day            string `json:"day"`
	LocationID     string `json:"location_id"`
	LocationName   string `json:"location_name"`
	PractitionerID string `json:"practitioner_id"`
	ExamCount      int    `json:"exam_count"`
}

// ListEvents はフィルタに合致するイベント一覧を返す。
// GET /api/events?year=&month=&location_id=&practitioner_id=
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	filter := event.ListFilter{
		PractitionerID: r.URL.Query().Get("practitioner_id"),
		LocationID:     r.URL.Query().Get("location_id"),
	}

	if y := r.URL.Query().Get("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("year", "must be an integer"))
			return
		}
		filter.Year = year
	}
	if m := r.URL.Query().Get("month"); m != "" {
		month, err := strconv.Atoi(m)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("month", "must be an integer"))
			return
		}
		filter.Month = time.Month(month)
	}

	projections, err := h.service.ListEvents(r.Context(), principal, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]eventResponse, len(projections))
	for i, p := range projections {
		results[i] = toEventResponse(p)
	}
	writeJSON(w, http.StatusOK, results)
}

// CreateEvent はイベントを作成する。
// POST /api/events
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalidBodyError(w)
		return
	}

	projection, err := h.service.CreateEvent(r.Context(), principal, event.CreateEventInput{
		PractitionerID: req.PractitionerID,
		LocationID:     req.LocationID,
		Day:            req.Day,
		ExamCount:      req.ExamCount,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toEventResponse(projection))
}

// DeleteEvent はイベントを削除する。
// DELETE /api/events/{id}
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	if err := h.service.DeleteEvent(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExportMonth は指定月のイベントをCSVで返す。
// GET /api/events/export?year=&month=
func (h *EventHandler) ExportMonth(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		unauthorizedError(w)
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("year", "must be an integer"))
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("month", "must be an integer"))
		return
	}

	projections, err := h.service.ExportMonth(r.Context(), principal, year, time.Month(month))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("events-%04d-%02d.csv", year, month)))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"day", "title", "location", "practitioner_id", "exam_count"})
	for _, p := range projections {
		_ = cw.Write([]string{
			p.Day.String(),
			p.Title,
			p.LocationName,
			p.PractitionerID,
			strconv.Itoa(p.ExamCount),
		})
	}
	cw.Flush()
}

// toEventResponse はイベント射影をAPIレスポンス型に変換する。
func toEventResponse(p *model.EventProjection) eventResponse {
	return eventResponse{
		ID:             p.ID,
		Title:          p.Title,
		Day:            p.Day.String(),
		LocationID:     p.LocationID,
		LocationName:   p.LocationName,
		PractitionerID: p.PractitionerID,
		ExamCount:      p.ExamCount,
	}
}
