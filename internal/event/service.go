// Package event はカレンダーイベントの作成・削除・一覧を提供する。
//
// 日付は暦日（YYYY-MM-DD）のみを意味として持ち、保存時はUTC正午の
// アンカーに丸められる。タイトルは保存せず、読み取りのたびに現在の
// 検査地名から組み立てる。改名が過去のイベント表示にも即座に反映される。
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/examsched/internal/audit"
	"github.com/hitoshi/examsched/internal/authz"
	"github.com/hitoshi/examsched/internal/metrics"
	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/repository"
)

// Service はカレンダーイベントの操作を提供する。
type Service struct {
	events        repository.EventRepository
	locations     repository.LocationRepository
	practitioners repository.PractitionerRepository
	policy        *authz.Policy
	recorder      audit.Recorder
	collector     metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	events repository.EventRepository,
	locations repository.LocationRepository,
	practitioners repository.PractitionerRepository,
	policy *authz.Policy,
	recorder audit.Recorder,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		events:        events,
		locations:     locations,
		practitioners: practitioners,
		policy:        policy,
		recorder:      recorder,
		collector:     collector,
	}
}

// CreateEventInput はイベント作成の入力。
// PractitionerIDが空の場合は呼び出し元自身のイベントとなる。
// 他者を指定できるのは管理者のみ。
type CreateEventInput struct {
	PractitionerID string
	LocationID     string
	Day            string
	ExamCount      int
}

// CreateEvent はイベントを作成する。実施者の場合、許可エッジの存在は
// 認可時と挿入トランザクション内の2回検証される。後者が正であり、
// 並行して取り消された許可のもとでイベントが残ることはない。
func (s *Service) CreateEvent(ctx context.Context, principal model.Principal, in CreateEventInput) (*model.EventProjection, error) {
	if in.ExamCount <= 0 {
		return nil, model.NewValidationError("exam_count", "must be a positive integer")
	}

	day, err := model.ParseCalendarDay(in.Day)
	if err != nil {
		return nil, model.NewValidationError("day", "must be an ISO date (YYYY-MM-DD)")
	}

	owner := in.PractitionerID
	if owner == "" {
		if principal.SubjectID == "system" {
			return nil, model.NewValidationError("practitioner_id", "required for token-authenticated requests")
		}
		owner = principal.SubjectID
	}

	if owner != principal.SubjectID {
		p, err := s.practitioners.FindByID(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("failed to find practitioner: %w", err)
		}
		if p == nil {
			return nil, model.NewNotFoundError("practitioner", owner)
		}
	}

	loc, err := s.locations.FindByID(ctx, in.LocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find location: %w", err)
	}
	if loc == nil {
		return nil, model.NewNotFoundError("location", in.LocationID)
	}
	if !loc.Active {
		return nil, model.NewConflictError("location is inactive")
	}

	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionCreateEvent, authz.Resource{
		PractitionerID: owner,
		LocationID:     in.LocationID,
	}); err != nil {
		return nil, err
	}

	ev := &model.Event{
		ID:             uuid.New().String(),
		PractitionerID: owner,
		LocationID:     in.LocationID,
		Day:            day,
		ExamCount:      in.ExamCount,
		CreatedAt:      time.Now(),
	}

	err = s.events.CreateChecked(ctx, ev, !principal.IsAdmin())
	switch {
	case errors.Is(err, repository.ErrGrantRevoked):
		return nil, model.NewForbiddenError("no permission for this location")
	case errors.Is(err, repository.ErrForeignRef):
		return nil, model.NewConflictError("practitioner or location no longer exists")
	case err != nil:
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.collector.RecordEventCreated()
	s.recorder.Record(ctx, principal.SubjectID, "event_created",
		fmt.Sprintf("event %s at %s on %s (%d exams)", ev.ID, loc.Name, day, in.ExamCount))

	return s.project(repository.EventWithLocation{Event: *ev, LocationName: loc.Name}), nil
}

// DeleteEvent はイベントを削除する。管理者は任意の、実施者は現在も
// 許可を保持している検査地の自分のイベントのみ削除できる。
func (s *Service) DeleteEvent(ctx context.Context, principal model.Principal, id string) error {
	ev, err := s.events.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find event: %w", err)
	}
	if ev == nil {
		return model.NewNotFoundError("event", id)
	}

	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionDeleteEvent, authz.Resource{
		PractitionerID: ev.PractitionerID,
		LocationID:     ev.LocationID,
	}); err != nil {
		return err
	}

	deleted, err := s.events.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if !deleted {
		return model.NewNotFoundError("event", id)
	}

	slog.Info("event deleted", slog.String("event_id", id), slog.String("by", principal.SubjectID))
	s.recorder.Record(ctx, principal.SubjectID, "event_deleted",
		fmt.Sprintf("event %s at %s on %s", id, ev.LocationName, ev.Day))
	return nil
}

// ListFilter はイベント一覧の絞り込み条件。ゼロ値のフィールドは無視される。
// Yearのみ指定した場合はその年全体が範囲になる。
type ListFilter struct {
	PractitionerID string
	LocationID     string
	Year           int
	Month          time.Month
}

// ListEvents はフィルタに合致するイベントを射影して返す。
// 実施者の場合、フィルタの実施者指定は無視され自分のイベントに限定される。
func (s *Service) ListEvents(ctx context.Context, principal model.Principal, filter ListFilter) ([]*model.EventProjection, error) {
	scope, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionListEvents, authz.Resource{})
	if err != nil {
		return nil, err
	}

	if filter.Month != 0 && (filter.Month < time.January || filter.Month > time.December) {
		return nil, model.NewValidationError("month", "must be between 1 and 12")
	}
	if filter.Month != 0 && filter.Year == 0 {
		return nil, model.NewValidationError("year", "required when month is given")
	}

	repoFilter := repository.EventFilter{
		PractitionerID: filter.PractitionerID,
		LocationID:     filter.LocationID,
		Year:           filter.Year,
		Month:          filter.Month,
	}
	if !scope.Unrestricted {
		repoFilter.PractitionerID = scope.PractitionerID
	}

	rows, err := s.events.List(ctx, repoFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	projections := make([]*model.EventProjection, 0, len(rows))
	for _, row := range rows {
		projections = append(projections, s.project(row))
	}
	return projections, nil
}

// ExportMonth は指定月のイベントを日付昇順で返す。月次レポート用。
func (s *Service) ExportMonth(ctx context.Context, principal model.Principal, year int, month time.Month) ([]*model.EventProjection, error) {
	if month < time.January || month > time.December {
		return nil, model.NewValidationError("month", "must be between 1 and 12")
	}
	if year < 1 {
		return nil, model.NewValidationError("year", "must be a positive year")
	}
	return s.ListEvents(ctx, principal, ListFilter{Year: year, Month: month})
}

func (s *Service) project(row repository.EventWithLocation) *model.EventProjection {
	return &model.EventProjection{
		ID:             row.Event.ID,
		Title:          model.EventTitle(row.LocationName, row.Event.ExamCount),
		Day:            row.Event.Day,
		LocationID:     row.Event.LocationID,
		LocationName:   row.LocationName,
		PractitionerID: row.Event.PractitionerID,
		ExamCount:      row.Event.ExamCount,
	}
}
