package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/examsched/internal/model"
)

// PostgresAuditRepo はPostgreSQLを使用した監査ログリポジトリ。
type PostgresAuditRepo struct {
	db *sql.DB
}

// NewPostgresAuditRepo はPostgresAuditRepoを生成する。
func NewPostgresAuditRepo(db *sql.DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

// Insert は監査行を追記する。
func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.AuditEntry) error {
	var practitionerID any
	if entry.PractitionerID != "" {
		practitionerID = entry.PractitionerID
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, practitioner_id, action, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, practitionerID, entry.Action, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListRecent は新しい順にlimit件を実施者名付きで返す。
func (r *PostgresAuditRepo) ListRecent(ctx context.Context, limit int) ([]*model.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, COALESCE(a.practitioner_id::text, ''), COALESCE(p.display_name, ''), a.action, COALESCE(a.detail, ''), a.created_at
		 FROM audit_log a
		 LEFT JOIN practitioners p ON p.id = a.practitioner_id
		 ORDER BY a.created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var result []*model.AuditEntry
	for rows.Next() {
		entry := &model.AuditEntry{}
		if err := rows.Scan(&entry.ID, &entry.PractitionerID, &entry.PractitionerName,
			&entry.Action, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}
	return result, nil
}

// compile-time interface check
var _ AuditRepository = (*PostgresAuditRepo)(nil)
