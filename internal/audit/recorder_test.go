package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/examsched/internal/model"
)

// mockAuditRepo はrepository.AuditRepositoryのモック。
type mockAuditRepo struct {
	insertFn     func(ctx context.Context, entry *model.AuditEntry) error
	listRecentFn func(ctx context.Context, limit int) ([]*model.AuditEntry, error)
}

func (m *mockAuditRepo) Insert(ctx context.Context, entry *model.AuditEntry) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, entry)
	}
	return nil
}

func (m *mockAuditRepo) ListRecent(ctx context.Context, limit int) ([]*model.AuditEntry, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

// TestDBRecorder_Record は監査行の各フィールドが埋まることを検証する。
func TestDBRecorder_Record(t *testing.T) {
	var got *model.AuditEntry
	repo := &mockAuditRepo{
		insertFn: func(_ context.Context, entry *model.AuditEntry) error {
			got = entry
			return nil
		},
	}
	recorder := NewDBRecorder(repo)

	recorder.Record(context.Background(), "prac-1", "event.create", "event evt-1 at loc-1")

	if got == nil {
		t.Fatal("Insert should be called")
	}
	if got.ID == "" {
		t.Error("ID should be assigned")
	}
	if got.PractitionerID != "prac-1" {
		t.Errorf("PractitionerID = %q, want prac-1", got.PractitionerID)
	}
	if got.Action != "event.create" {
		t.Errorf("Action = %q, want event.create", got.Action)
	}
	if got.Detail != "event evt-1 at loc-1" {
		t.Errorf("Detail = %q, want event evt-1 at loc-1", got.Detail)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

// TestDBRecorder_SystemPrincipal はsystem主体がPractitionerID空で記録されることを検証する。
// 静的トークン経由の操作は実施者テーブルに対応行を持たない。
func TestDBRecorder_SystemPrincipal(t *testing.T) {
	var got *model.AuditEntry
	repo := &mockAuditRepo{
		insertFn: func(_ context.Context, entry *model.AuditEntry) error {
			got = entry
			return nil
		},
	}
	recorder := NewDBRecorder(repo)

	recorder.Record(context.Background(), "system", "location.delete", "location loc-9")

	if got == nil {
		t.Fatal("Insert should be called")
	}
	if got.PractitionerID != "" {
		t.Errorf("PractitionerID = %q, want empty for system principal", got.PractitionerID)
	}
}

// TestDBRecorder_InsertFailureSwallowed は挿入失敗が呼び出し元に伝播しないことを検証する。
func TestDBRecorder_InsertFailureSwallowed(t *testing.T) {
	repo := &mockAuditRepo{
		insertFn: func(_ context.Context, _ *model.AuditEntry) error {
			return errors.New("connection reset")
		},
	}
	recorder := NewDBRecorder(repo)

	// パニックやエラー伝播なしに戻ること
	recorder.Record(context.Background(), "prac-1", "event.create", "detail")
}
