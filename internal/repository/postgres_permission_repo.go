package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresPermissionRepo はPostgreSQLを使用した許可マトリクスリポジトリ。
type PostgresPermissionRepo struct {
	db *sql.DB
}

// NewPostgresPermissionRepo はPostgresPermissionRepoを生成する。
func NewPostgresPermissionRepo(db *sql.DB) *PostgresPermissionRepo {
	return &PostgresPermissionRepo{db: db}
}

// lockPractitionerGrants は同一実施者への許可書き込みをトランザクション単位で直列化する。
// 2つの管理者セッションが同時に編集しても、交互に混ざった許可集合が残らない。
// ロックはトランザクション終了時に自動解放される。
func lockPractitionerGrants(ctx context.Context, tx *sql.Tx, practitionerID string) error {
	_, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('permission_grants:' || $1::text, 0))`,
		practitionerID,
	)
	if err != nil {
		return fmt.Errorf("failed to acquire grant lock: %w", err)
	}
	return nil
}

// ReplaceGrants は実施者の許可集合を全置換する。
// 既存全削除と新集合の挿入を1トランザクションで行う。空の集合は全失効。
func (r *PostgresPermissionRepo) ReplaceGrants(ctx context.Context, practitionerID string, locationIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockPractitionerGrants(ctx, tx, practitionerID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM permission_grants WHERE practitioner_id = $1`,
		practitionerID,
	); err != nil {
		return fmt.Errorf("failed to clear existing grants: %w", err)
	}

	if len(locationIDs) > 0 {
		// ON CONFLICT DO NOTHING で入力内の重複IDを吸収する
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permission_grants (practitioner_id, location_id)
			 SELECT $1, unnest($2::uuid[])
			 ON CONFLICT DO NOTHING`,
			practitionerID, pq.Array(locationIDs),
		); err != nil {
			return fmt.Errorf("failed to insert grants: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ToggleGrant は1本の許可エッジを冪等に付け外しする。付与したらtrueを返す。
// 同一実施者のReplaceGrantsと同じロックで直列化される。
func (r *PostgresPermissionRepo) ToggleGrant(ctx context.Context, practitionerID, locationID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockPractitionerGrants(ctx, tx, practitionerID); err != nil {
		return false, err
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM permission_grants WHERE practitioner_id = $1 AND location_id = $2`,
		practitionerID, locationID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove grant: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	granted := false
	if deleted == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permission_grants (practitioner_id, location_id) VALUES ($1, $2)`,
			practitionerID, locationID,
		); err != nil {
			return false, fmt.Errorf("failed to insert grant: %w", err)
		}
		granted = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return granted, nil
}

// ListGrants は実施者の許可検査地IDをソート・重複排除済みで返す。
// 主キー制約が重複を排除するため、ORDER BYのみで契約を満たす。
func (r *PostgresPermissionRepo) ListGrants(ctx context.Context, practitionerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT location_id FROM permission_grants WHERE practitioner_id = $1 ORDER BY location_id ASC`,
		practitionerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan grant row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grant rows: %w", err)
	}
	return ids, nil
}

// HasGrant は許可エッジの存在を確認する。
func (r *PostgresPermissionRepo) HasGrant(ctx context.Context, practitionerID, locationID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM permission_grants WHERE practitioner_id = $1 AND location_id = $2
		 )`,
		practitionerID, locationID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check grant: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ PermissionRepository = (*PostgresPermissionRepo)(nil)
