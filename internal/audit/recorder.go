// Package audit は操作の監査記録を提供する。
//
// 記録はfire-and-forgetであり、監査側の障害がコア操作を
// 妨げることはない。失敗はログにのみ残る。
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/repository"
)

// Recorder は監査シンクのインターフェース。
type Recorder interface {
	// Record は監査行を追記する。エラーは返さない。
	Record(ctx context.Context, principalID, action, detail string)
}

// DBRecorder はリポジトリ経由で監査行を永続化するRecorder。
type DBRecorder struct {
	repo repository.AuditRepository
}

// NewDBRecorder はDBRecorderを生成する。
func NewDBRecorder(repo repository.AuditRepository) *DBRecorder {
	return &DBRecorder{repo: repo}
}

// Record は監査行を追記する。挿入失敗は呼び出し元に伝播させず、ログにのみ記録する。
// system主体（静的トークン経由）はPractitionerID空で記録される。
func (r *DBRecorder) Record(ctx context.Context, principalID, action, detail string) {
	if principalID == "system" {
		principalID = ""
	}

	entry := &model.AuditEntry{
		ID:             uuid.New().String(),
		PractitionerID: principalID,
		Action:         action,
		Detail:         detail,
		CreatedAt:      time.Now(),
	}

	if err := r.repo.Insert(ctx, entry); err != nil {
		slog.Error("failed to record audit entry",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}

// NopRecorder は何も記録しないRecorder。テストで使う。
type NopRecorder struct{}

// Record は何もしない。
func (NopRecorder) Record(context.Context, string, string, string) {}

// compile-time interface checks
var (
	_ Recorder = (*DBRecorder)(nil)
	_ Recorder = NopRecorder{}
)
