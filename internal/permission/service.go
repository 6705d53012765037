// Package permission は実施者と検査地の許可マトリクスを管理する。
//
// 書き込みは全置換とトグルの2形態のみで、どちらもリポジトリ側で
// 実施者単位に直列化される。同じ実施者への並行した書き込みが
// 交錯して混合状態を残すことはない。
package permission

import (
	"context"
	"fmt"

	"github.com/hitoshi/examsched/internal/audit"
	"github.com/hitoshi/examsched/internal/authz"
	"github.com/hitoshi/examsched/internal/metrics"
	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/repository"
)

// Service は許可マトリクスの参照と更新を提供する。
type Service struct {
	grants        repository.PermissionRepository
	practitioners repository.PractitionerRepository
	locations     repository.LocationRepository
	policy        *authz.Policy
	recorder      audit.Recorder
	collector     metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(
	grants repository.PermissionRepository,
	practitioners repository.PractitionerRepository,
	locations repository.LocationRepository,
	policy *authz.Policy,
	recorder audit.Recorder,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		grants:        grants,
		practitioners: practitioners,
		locations:     locations,
		policy:        policy,
		recorder:      recorder,
		collector:     collector,
	}
}

// ListGrants は実施者の現在の許可検査地ID一覧を返す。
// 管理者は任意の実施者、実施者は自分自身のみ参照できる。
func (s *Service) ListGrants(ctx context.Context, principal model.Principal, practitionerID string) ([]string, error) {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionListPermissions, authz.Resource{PractitionerID: practitionerID}); err != nil {
		return nil, err
	}

	if err := s.requirePractitioner(ctx, practitionerID); err != nil {
		return nil, err
	}

	ids, err := s.grants.ListGrants(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ReplaceGrants は実施者の許可集合を与えられた検査地ID群で原子的に
// 置き換える。集合に含まれない既存の許可は取り消される。
func (s *Service) ReplaceGrants(ctx context.Context, principal model.Principal, practitionerID string, locationIDs []string) error {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManagePermissions, authz.Resource{PractitionerID: practitionerID}); err != nil {
		return err
	}

	if err := s.requirePractitioner(ctx, practitionerID); err != nil {
		return err
	}

	// 重複IDは1許可に畳む。
	seen := make(map[string]struct{}, len(locationIDs))
	deduped := make([]string, 0, len(locationIDs))
	for _, id := range locationIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		loc, err := s.locations.FindByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to find location: %w", err)
		}
		if loc == nil {
			return model.NewNotFoundError("location", id)
		}
		deduped = append(deduped, id)
	}

	if err := s.grants.ReplaceGrants(ctx, practitionerID, deduped); err != nil {
		return fmt.Errorf("failed to replace grants: %w", err)
	}

	s.collector.RecordGrantWrite("replace")
	s.recorder.Record(ctx, principal.SubjectID, "permissions_replaced",
		fmt.Sprintf("practitioner %s now holds %d grants", practitionerID, len(deduped)))
	return nil
}

// ToggleGrant は1組の実施者×検査地の許可を反転する。
// 反転後に許可されていればtrueを返す。
func (s *Service) ToggleGrant(ctx context.Context, principal model.Principal, practitionerID, locationID string) (bool, error) {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManagePermissions, authz.Resource{PractitionerID: practitionerID, LocationID: locationID}); err != nil {
		return false, err
	}

	if err := s.requirePractitioner(ctx, practitionerID); err != nil {
		return false, err
	}

	loc, err := s.locations.FindByID(ctx, locationID)
	if err != nil {
		return false, fmt.Errorf("failed to find location: %w", err)
	}
	if loc == nil {
		return false, model.NewNotFoundError("location", locationID)
	}

	granted, err := s.grants.ToggleGrant(ctx, practitionerID, locationID)
	if err != nil {
		return false, fmt.Errorf("failed to toggle grant: %w", err)
	}

	s.collector.RecordGrantWrite("toggle")
	action := "grant_revoked"
	if granted {
		action = "grant_added"
	}
	s.recorder.Record(ctx, principal.SubjectID, action,
		fmt.Sprintf("practitioner %s location %s", practitionerID, locationID))
	return granted, nil
}

func (s *Service) requirePractitioner(ctx context.Context, id string) error {
	p, err := s.practitioners.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to find practitioner: %w", err)
	}
	if p == nil {
		return model.NewNotFoundError("practitioner", id)
	}
	return nil
}
