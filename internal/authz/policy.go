// Package authz は認可判定とスコープ計算を提供する。
//
// 判定はPrincipalのロールと対象リソースの所有関係、および許可マトリクスの
// 現在の状態から行う。書き込み操作では必ず許可を再検証し、クライアントが
// 保持する古い許可一覧を信用しない。
package authz

import (
	"context"
	"fmt"

	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/repository"
)

// Action は認可対象の操作を表す。
type Action string

const (
	// ActionListLocations は検査地一覧の読み取り。
	ActionListLocations Action = "locations.list"
	// ActionManageLocations は検査地の作成・改名・削除。管理者限定。
	ActionManageLocations Action = "locations.manage"
	// ActionManagePractitioners は実施者の作成・削除・パスワードリセット。管理者限定。
	ActionManagePractitioners Action = "practitioners.manage"
	// ActionListPermissions は許可一覧の読み取り。
	ActionListPermissions Action = "permissions.list"
	// ActionManagePermissions は許可の全置換・トグル。管理者限定。
	ActionManagePermissions Action = "permissions.manage"
	// ActionCreateEvent はイベントの作成。
	ActionCreateEvent Action = "events.create"
	// ActionDeleteEvent はイベントの削除。
	ActionDeleteEvent Action = "events.delete"
	// ActionListEvents はイベント一覧の読み取り。
	ActionListEvents Action = "events.list"
	// ActionViewAudit は監査ログの読み取り。管理者限定。
	ActionViewAudit Action = "audit.view"
)

// Resource は認可判定に必要な対象リソースのヒント。
// 関係しないフィールドはゼロ値のままでよい。
type Resource struct {
	// PractitionerID は対象リソースの所有者（または操作対象の実施者）。
	PractitionerID string
	// LocationID はイベント操作の対象検査地。
	LocationID string
}

// ScopeFilter は許可された読み取りの絞り込み条件。
// Unrestrictedがtrueなら全件可視。そうでなければPractitionerIDの行のみ可視。
type ScopeFilter struct {
	Unrestricted   bool
	PractitionerID string
}

// Policy は認可判定の実装。許可マトリクスストアを参照する。
type Policy struct {
	grants repository.PermissionRepository
}

// NewPolicy はPolicyを生成する。
func NewPolicy(grants repository.PermissionRepository) *Policy {
	return &Policy{grants: grants}
}

// AuthorizeAndScope はPrincipal・操作・対象から許可/拒否を判定し、
// 許可時は読み取りスコープを返す。管理者は常に無制限。
// 実施者は自身が所有するリソースと、許可された検査地に限られる。
func (p *Policy) AuthorizeAndScope(ctx context.Context, principal model.Principal, action Action, resource Resource) (ScopeFilter, error) {
	if principal.IsAdmin() {
		return ScopeFilter{Unrestricted: true}, nil
	}

	self := ScopeFilter{PractitionerID: principal.SubjectID}

	switch action {
	case ActionListLocations, ActionListEvents:
		return self, nil

	case ActionListPermissions:
		// 実施者は自身の許可一覧のみ読める
		if resource.PractitionerID != principal.SubjectID {
			return ScopeFilter{}, model.NewForbiddenError("cannot read another practitioner's permissions")
		}
		return self, nil

	case ActionCreateEvent:
		if resource.PractitionerID != principal.SubjectID {
			return ScopeFilter{}, model.NewForbiddenError("cannot schedule on behalf of another practitioner")
		}
		return p.requireGrant(ctx, principal.SubjectID, resource.LocationID, self)

	case ActionDeleteEvent:
		if resource.PractitionerID != principal.SubjectID {
			return ScopeFilter{}, model.NewForbiddenError("cannot delete another practitioner's event")
		}
		// 作成時と対称の保守的な再検証。許可が失効した検査地のイベントは消せない。
		return p.requireGrant(ctx, principal.SubjectID, resource.LocationID, self)

	case ActionManageLocations, ActionManagePractitioners, ActionManagePermissions, ActionViewAudit:
		return ScopeFilter{}, model.NewForbiddenError("administrator role required")

	default:
		return ScopeFilter{}, model.NewForbiddenError(fmt.Sprintf("unknown action %q", action))
	}
}

// requireGrant は許可マトリクスの現在の状態でエッジを再検証する。
func (p *Policy) requireGrant(ctx context.Context, practitionerID, locationID string, scope ScopeFilter) (ScopeFilter, error) {
	if locationID == "" {
		return ScopeFilter{}, model.NewForbiddenError("no target location")
	}
	ok, err := p.grants.HasGrant(ctx, practitionerID, locationID)
	if err != nil {
		return ScopeFilter{}, fmt.Errorf("failed to re-check grant: %w", err)
	}
	if !ok {
		return ScopeFilter{}, model.NewForbiddenError("no permission for this location")
	}
	return scope, nil
}
