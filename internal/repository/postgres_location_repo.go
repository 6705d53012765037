package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/examsched/internal/model"
)

// PostgresLocationRepo はPostgreSQLを使用した検査地リポジトリ。
type PostgresLocationRepo struct {
	db *sql.DB
}

// NewPostgresLocationRepo はPostgresLocationRepoを生成する。
func NewPostgresLocationRepo(db *sql.DB) *PostgresLocationRepo {
	return &PostgresLocationRepo{db: db}
}

// Create は検査地を作成する。nameNormalizedはサービス層で計算された正規化キー。
// 正規化名の一意制約違反はErrDuplicateNameを返す。
func (r *PostgresLocationRepo) Create(ctx context.Context, loc *model.Location, nameNormalized string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO locations (id, name, name_normalized, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		loc.ID, loc.Name, nameNormalized, loc.Active, loc.CreatedAt, loc.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}
	return nil
}

// FindByID は指定IDの検査地を取得する。見つからない場合はnilを返す。
func (r *PostgresLocationRepo) FindByID(ctx context.Context, id string) (*model.Location, error) {
	loc := &model.Location{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, active, created_at, updated_at FROM locations WHERE id = $1`,
		id,
	).Scan(&loc.ID, &loc.Name, &loc.Active, &loc.CreatedAt, &loc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find location by ID: %w", err)
	}
	return loc, nil
}

// List は全検査地を名称順で返す。
func (r *PostgresLocationRepo) List(ctx context.Context) ([]*model.Location, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, active, created_at, updated_at FROM locations ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// ListPermitted は指定実施者に許可されたアクティブな検査地を名称順で返す。
// 許可マトリクスとのJOINで解決する。失効済みの許可は即座に反映される。
func (r *PostgresLocationRepo) ListPermitted(ctx context.Context, practitionerID string) ([]*model.Location, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT l.id, l.name, l.active, l.created_at, l.updated_at
		 FROM locations l
		 JOIN permission_grants g ON g.location_id = l.id
		 WHERE g.practitioner_id = $1 AND l.active
		 ORDER BY l.name ASC, l.id ASC`,
		practitionerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list permitted locations: %w", err)
	}
	defer rows.Close()
	return scanLocations(rows)
}

// scanLocations は結果セットを走査する。
func scanLocations(rows *sql.Rows) ([]*model.Location, error) {
	var result []*model.Location
	for rows.Next() {
		loc := &model.Location{}
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Active, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location row: %w", err)
		}
		result = append(result, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate location rows: %w", err)
	}
	return result, nil
}

// Rename は表示名と正規化名のみを更新する。IDで結ばれたリレーションは影響を受けない。
func (r *PostgresLocationRepo) Rename(ctx context.Context, id, name, nameNormalized string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE locations SET name = $2, name_normalized = $3, updated_at = now() WHERE id = $1`,
		id, name, nameNormalized,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to rename location: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetActive はアクティブフラグを更新する。
func (r *PostgresLocationRepo) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE locations SET active = $2, updated_at = now() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("failed to update location active flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// compile-time interface check
var _ LocationRepository = (*PostgresLocationRepo)(nil)
