package audit

import (
	"context"
	"fmt"

	"github.com/hitoshi/examsched/internal/authz"
	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/repository"
)

// 一覧は常に末尾のこの件数に制限する。全履歴のページングは提供しない。
const maxListEntries = 200

// Viewer は監査ログの読み取りを提供する。管理者専用。
type Viewer struct {
	entries repository.AuditRepository
	policy  *authz.Policy
}

// NewViewer はViewerを生成する。
func NewViewer(entries repository.AuditRepository, policy *authz.Policy) *Viewer {
	return &Viewer{
		entries: entries,
		policy:  policy,
	}
}

// ListRecent は新しい順に最大limit件の監査行を返す。
// limitが0以下またはmaxListEntries超の場合はmaxListEntriesに丸める。
func (v *Viewer) ListRecent(ctx context.Context, principal model.Principal, limit int) ([]*model.AuditEntry, error) {
	if _, err := v.policy.AuthorizeAndScope(ctx, principal, authz.ActionViewAudit, authz.Resource{}); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > maxListEntries {
		limit = maxListEntries
	}

	entries, err := v.entries.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
