package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/examsched/internal/model"
)

// PostgresCascadeRepo は連鎖削除をPostgreSQLの1トランザクションとして実行する
// 整合性コーディネータ。prune → イベント削除 → 親行削除の順で進み、
// どのステップで失敗しても全体がロールバックされる。
type PostgresCascadeRepo struct {
	db *sql.DB
}

// NewPostgresCascadeRepo はPostgresCascadeRepoを生成する。
func NewPostgresCascadeRepo(db *sql.DB) *PostgresCascadeRepo {
	return &PostgresCascadeRepo{db: db}
}

// DeleteLocation は検査地と依存レコードを原子的に削除する。
// restrictがtrueで依存イベントが存在する場合はErrHasDependentsを返し何も削除しない。
// 検査地が存在しない場合はsql.ErrNoRowsを返す。
func (r *PostgresCascadeRepo) DeleteLocation(ctx context.Context, locationID string, restrict bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if restrict {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM events WHERE location_id = $1`, locationID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to count dependent events: %w", err)
		}
		if count > 0 {
			return ErrHasDependents
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM permission_grants WHERE location_id = $1`, locationID,
	); err != nil {
		return fmt.Errorf("failed to prune grants for location: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM events WHERE location_id = $1`, locationID,
	); err != nil {
		return fmt.Errorf("failed to cascade events for location: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, locationID)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// lockAdminDeletes は管理者行の削除をトランザクション単位で直列化する。
// 対象行のFOR UPDATEだけでは別々の管理者を消す2つのトランザクションが
// 互いをブロックせず、両方のカウントが削除前の件数を見てしまう。
// ロックはトランザクション終了時に自動解放される。
func lockAdminDeletes(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('practitioners:admin-delete', 0))`,
	)
	if err != nil {
		return fmt.Errorf("failed to acquire admin delete lock: %w", err)
	}
	return nil
}

// DeletePractitioner は実施者と依存レコードを原子的に削除する。
// 最後の管理者を消す操作はトランザクション内のカウントで拒否する。
// 管理者の削除はアドバイザリロックで直列化されるため、2つの削除が
// 同時に走っても後続側のカウントは先行コミットを観測し、管理者ゼロの
// 状態には到達しない。
func (r *PostgresCascadeRepo) DeletePractitioner(ctx context.Context, practitionerID string, restrict bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var role model.Role
	err = tx.QueryRowContext(ctx,
		`SELECT role FROM practitioners WHERE id = $1 FOR UPDATE`, practitionerID,
	).Scan(&role)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to lock practitioner row: %w", err)
	}

	if role == model.RoleAdmin {
		// カウントより先にロックを取る。READ COMMITTEDでは各文が最新の
		// コミット済み状態を見るため、ロック待ちの後続はここで先行の
		// 削除結果を観測する。
		if err := lockAdminDeletes(ctx, tx); err != nil {
			return err
		}

		var admins int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM practitioners WHERE role = $1`, model.RoleAdmin,
		).Scan(&admins); err != nil {
			return fmt.Errorf("failed to count admins: %w", err)
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}

	if restrict {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM events WHERE practitioner_id = $1`, practitionerID,
		).Scan(&count); err != nil {
			return fmt.Errorf("failed to count dependent events: %w", err)
		}
		if count > 0 {
			return ErrHasDependents
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM permission_grants WHERE practitioner_id = $1`, practitionerID,
	); err != nil {
		return fmt.Errorf("failed to prune grants for practitioner: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM events WHERE practitioner_id = $1`, practitionerID,
	); err != nil {
		return fmt.Errorf("failed to cascade events for practitioner: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM practitioners WHERE id = $1`, practitionerID,
	); err != nil {
		return fmt.Errorf("failed to delete practitioner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CascadeRepository = (*PostgresCascadeRepo)(nil)
