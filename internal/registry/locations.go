// Package registry は検査地と実施者のレジストリ（登録・改名・削除のライフサイクル）を提供する。
//
// 破壊的な操作はCascadeRepositoryの原子的な単位に委譲し、
// 部分的に連鎖が進んだ状態が観測されないことを保証する。
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/examsched/internal/audit"
	"github.com/hitoshi/examsched/internal/authz"
	"github.com/hitoshi/examsched/internal/config"
	"github.com/hitoshi/examsched/internal/identity"
	"github.com/hitoshi/examsched/internal/metrics"
	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/repository"
	"github.com/hitoshi/examsched/internal/security"
)

// Service は検査地と実施者のレジストリ操作を提供する。
type Service struct {
	locations     repository.LocationRepository
	practitioners repository.PractitionerRepository
	cascade       repository.CascadeRepository
	policy        *authz.Policy
	sanitizer     security.NameSanitizerService
	hasher        identity.CredentialHasher
	recorder      audit.Recorder
	collector     metrics.MetricsCollector
	deletePolicy  config.DeletePolicy
}

// NewService はServiceを生成する。
func NewService(
	locations repository.LocationRepository,
	practitioners repository.PractitionerRepository,
	cascade repository.CascadeRepository,
	policy *authz.Policy,
	sanitizer security.NameSanitizerService,
	hasher identity.CredentialHasher,
	recorder audit.Recorder,
	collector metrics.MetricsCollector,
	deletePolicy config.DeletePolicy,
) *Service {
	return &Service{
		locations:     locations,
		practitioners: practitioners,
		cascade:       cascade,
		policy:        policy,
		sanitizer:     sanitizer,
		hasher:        hasher,
		recorder:      recorder,
		collector:     collector,
		deletePolicy:  deletePolicy,
	}
}

// ListLocations は呼び出し元に見える検査地を返す。
// 管理者は全件、実施者は現在許可されているアクティブな検査地のみ。
func (s *Service) ListLocations(ctx context.Context, principal model.Principal) ([]*model.Location, error) {
	scope, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionListLocations, authz.Resource{})
	if err != nil {
		return nil, err
	}

	if scope.Unrestricted {
		return s.locations.List(ctx)
	}
	return s.locations.ListPermitted(ctx, scope.PractitionerID)
}

// CreateLocation は検査地を登録する。名称は大文字小文字とダイアクリティカル
// マークを無視して一意でなければならない。
func (s *Service) CreateLocation(ctx context.Context, principal model.Principal, name string) (*model.Location, error) {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManageLocations, authz.Resource{}); err != nil {
		return nil, err
	}

	name = s.sanitizer.Sanitize(name)
	if name == "" {
		return nil, model.NewValidationError("name", "must not be empty")
	}

	now := time.Now()
	loc := &model.Location{
		ID:        uuid.New().String(),
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.locations.Create(ctx, loc, security.NormalizeName(name))
	if errors.Is(err, repository.ErrDuplicateName) {
		return nil, model.NewDuplicateNameError(name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}

	s.recorder.Record(ctx, principal.SubjectID, "location_created", fmt.Sprintf("location %q (%s)", name, loc.ID))
	return loc, nil
}

// RenameLocation は表示名のみを更新する。全リレーションは不変のIDで
// 結ばれているため、改名が許可やイベントを壊すことはない。
func (s *Service) RenameLocation(ctx context.Context, principal model.Principal, id, newName string) (*model.Location, error) {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManageLocations, authz.Resource{}); err != nil {
		return nil, err
	}

	newName = s.sanitizer.Sanitize(newName)
	if newName == "" {
		return nil, model.NewValidationError("name", "must not be empty")
	}

	loc, err := s.locations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find location: %w", err)
	}
	if loc == nil {
		return nil, model.NewNotFoundError("location", id)
	}

	err = s.locations.Rename(ctx, id, newName, security.NormalizeName(newName))
	if errors.Is(err, repository.ErrDuplicateName) {
		return nil, model.NewDuplicateNameError(newName)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("location", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to rename location: %w", err)
	}

	s.recorder.Record(ctx, principal.SubjectID, "location_renamed", fmt.Sprintf("location %s: %q -> %q", id, loc.Name, newName))
	loc.Name = newName
	return loc, nil
}

// SetLocationActive はアクティブフラグを切り替える。
// 非アクティブ化された検査地は実施者のピッカーから消えるが、既存イベントは残る。
func (s *Service) SetLocationActive(ctx context.Context, principal model.Principal, id string, active bool) error {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManageLocations, authz.Resource{}); err != nil {
		return err
	}

	err := s.locations.SetActive(ctx, id, active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewNotFoundError("location", id)
	}
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}

	s.recorder.Record(ctx, principal.SubjectID, "location_active_changed", fmt.Sprintf("location %s active=%t", id, active))
	return nil
}

// DeleteLocation は検査地を削除する。依存する許可とイベントの扱いは
// 構成されたポリシーに従い、cascadeでは連鎖削除、restrictでは409拒否となる。
// いずれも1トランザクションで行われる。
func (s *Service) DeleteLocation(ctx context.Context, principal model.Principal, id string) error {
	if _, err := s.policy.AuthorizeAndScope(ctx, principal, authz.ActionManageLocations, authz.Resource{}); err != nil {
		return err
	}

	err := s.cascade.DeleteLocation(ctx, id, s.deletePolicy == config.DeletePolicyRestrict)
	switch {
	case errors.Is(err, repository.ErrHasDependents):
		return model.NewConflictError("location has scheduled events")
	case errors.Is(err, sql.ErrNoRows):
		return model.NewNotFoundError("location", id)
	case err != nil:
		return fmt.Errorf("failed to delete location: %w", err)
	}

	s.collector.RecordCascadeDelete("location")
	slog.Info("location deleted", slog.String("location_id", id))
	s.recorder.Record(ctx, principal.SubjectID, "location_deleted", fmt.Sprintf("location %s with dependent grants and events", id))
	return nil
}
