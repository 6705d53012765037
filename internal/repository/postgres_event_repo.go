package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/hitoshi/examsched/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用したイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// CreateChecked はイベントを挿入する。requireGrantがtrueの場合、同一トランザクション
// 内で許可エッジの存在を再検証し、存在しなければErrGrantRevokedを返して何も挿入しない。
func (r *PostgresEventRepo) CreateChecked(ctx context.Context, event *model.Event, requireGrant bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if requireGrant {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (
			     SELECT 1 FROM permission_grants WHERE practitioner_id = $1 AND location_id = $2
			 )`,
			event.PractitionerID, event.LocationID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to re-check grant: %w", err)
		}
		if !exists {
			return ErrGrantRevoked
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, practitioner_id, location_id, day, exam_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.PractitionerID, event.LocationID,
		event.Day.AnchorUTC(), event.ExamCount, event.CreatedAt,
	); err != nil {
		if isForeignKeyViolation(err) {
			// 許可再検証と挿入の間に検査地または実施者が消えた
			return ErrForeignRef
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByID は指定IDのイベントを現在の検査地名付きで取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*EventWithLocation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT e.id, e.practitioner_id, e.location_id, e.day, e.exam_count, e.created_at, l.name
		 FROM events e
		 JOIN locations l ON l.id = e.location_id
		 WHERE e.id = $1`,
		id,
	)

	ev, err := scanEventWithLocation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event by ID: %w", err)
	}
	return ev, nil
}

// List はフィルタに合致するイベントを日付昇順・ID昇順で返す。
// 検査地名は読み取り時点の行とJOINするため、改名後は新しい名称で返る。
func (r *PostgresEventRepo) List(ctx context.Context, filter EventFilter) ([]EventWithLocation, error) {
	query := `SELECT e.id, e.practitioner_id, e.location_id, e.day, e.exam_count, e.created_at, l.name
	          FROM events e
	          JOIN locations l ON l.id = e.location_id
	          WHERE 1=1`
	var args []any

	if filter.PractitionerID != "" {
		args = append(args, filter.PractitionerID)
		query += ` AND e.practitioner_id = $` + strconv.Itoa(len(args))
	}
	if filter.LocationID != "" {
		args = append(args, filter.LocationID)
		query += ` AND e.location_id = $` + strconv.Itoa(len(args))
	}
	if filter.Year != 0 {
		// アンカーは正午UTCなので期間境界はUTCの暦月・暦年で切れる。
		// 月が未指定なら年全体を範囲とする。
		from := time.Date(filter.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(1, 0, 0)
		if filter.Month != 0 {
			from = time.Date(filter.Year, filter.Month, 1, 0, 0, 0, 0, time.UTC)
			to = from.AddDate(0, 1, 0)
		}
		args = append(args, from)
		query += ` AND e.day >= $` + strconv.Itoa(len(args))
		args = append(args, to)
		query += ` AND e.day < $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY e.day ASC, e.id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var result []EventWithLocation
	for rows.Next() {
		ev, err := scanEventWithLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		result = append(result, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return result, nil
}

// DeleteByID は指定IDのイベントを削除する。削除した場合trueを返す。
func (r *PostgresEventRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// scanEventWithLocation は1行を読み取り、保存済みアンカー時刻をカレンダー日へ戻す。
func scanEventWithLocation(row interface{ Scan(...any) error }) (*EventWithLocation, error) {
	ev := &EventWithLocation{}
	var anchored time.Time
	err := row.Scan(&ev.ID, &ev.PractitionerID, &ev.LocationID, &anchored, &ev.ExamCount, &ev.CreatedAt, &ev.LocationName)
	if err != nil {
		return nil, err
	}
	ev.Day = model.DayOfUTC(anchored)
	return ev, nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
