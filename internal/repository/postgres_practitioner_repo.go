package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/examsched/internal/model"
	"github.com/hitoshi/examsched/internal/security"
)

// PostgresPractitionerRepo はPostgreSQLを使用した実施者リポジトリ。
type PostgresPractitionerRepo struct {
	db *sql.DB
}

// NewPostgresPractitionerRepo はPostgresPractitionerRepoを生成する。
func NewPostgresPractitionerRepo(db *sql.DB) *PostgresPractitionerRepo {
	return &PostgresPractitionerRepo{db: db}
}

const practitionerColumns = `id, display_name, email, credential_hash, role, COALESCE(license_id, ''), COALESCE(legacy_id, 0), created_at, updated_at`

// scanPractitioner は1行を読み取る。
func scanPractitioner(row interface{ Scan(...any) error }) (*model.Practitioner, error) {
	p := &model.Practitioner{}
	err := row.Scan(&p.ID, &p.DisplayName, &p.Email, &p.CredentialHash, &p.Role,
		&p.LicenseID, &p.LegacyID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create は実施者を作成する。メールの一意制約違反はErrDuplicateNameを返す。
func (r *PostgresPractitionerRepo) Create(ctx context.Context, p *model.Practitioner) error {
	var licenseID any
	if p.LicenseID != "" {
		licenseID = p.LicenseID
	}
	var legacyID any
	if p.LegacyID != 0 {
		legacyID = p.LegacyID
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO practitioners (id, display_name, email, email_normalized, credential_hash, role, license_id, legacy_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.DisplayName, p.Email, security.NormalizeEmail(p.Email),
		p.CredentialHash, p.Role, licenseID, legacyID, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to insert practitioner: %w", err)
	}
	return nil
}

// FindByID は指定IDの実施者を取得する。見つからない場合はnilを返す。
func (r *PostgresPractitionerRepo) FindByID(ctx context.Context, id string) (*model.Practitioner, error) {
	p, err := scanPractitioner(r.db.QueryRowContext(ctx,
		`SELECT `+practitionerColumns+` FROM practitioners WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find practitioner by ID: %w", err)
	}
	return p, nil
}

// FindByEmail は正規化済みメールで実施者を検索する。見つからない場合はnilを返す。
func (r *PostgresPractitionerRepo) FindByEmail(ctx context.Context, emailNormalized string) (*model.Practitioner, error) {
	p, err := scanPractitioner(r.db.QueryRowContext(ctx,
		`SELECT `+practitionerColumns+` FROM practitioners WHERE email_normalized = $1`, emailNormalized))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find practitioner by email: %w", err)
	}
	return p, nil
}

// FindByLegacyID は移行前システムの数値IDで実施者を検索する。見つからない場合はnilを返す。
func (r *PostgresPractitionerRepo) FindByLegacyID(ctx context.Context, legacyID int64) (*model.Practitioner, error) {
	p, err := scanPractitioner(r.db.QueryRowContext(ctx,
		`SELECT `+practitionerColumns+` FROM practitioners WHERE legacy_id = $1`, legacyID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find practitioner by legacy ID: %w", err)
	}
	return p, nil
}

// List は全実施者を表示名順で返す。
func (r *PostgresPractitionerRepo) List(ctx context.Context) ([]*model.Practitioner, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+practitionerColumns+` FROM practitioners ORDER BY display_name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list practitioners: %w", err)
	}
	defer rows.Close()

	var result []*model.Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan practitioner row: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate practitioner rows: %w", err)
	}
	return result, nil
}

// UpdateCredentialHash はパスワードリセット時に資格情報ハッシュを差し替える。
func (r *PostgresPractitionerRepo) UpdateCredentialHash(ctx context.Context, id, credentialHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE practitioners SET credential_hash = $2, updated_at = now() WHERE id = $1`,
		id, credentialHash,
	)
	if err != nil {
		return fmt.Errorf("failed to update credential hash: %w", err)
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
var _ PractitionerRepository = (*PostgresPractitionerRepo)(nil)
