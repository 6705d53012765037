// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/examsched/internal/model"
)

// トランザクション内でしか判定できない条件を呼び出し側へ伝えるためのセンチネルエラー。
// サービス層がAPIエラーへ翻訳する。生のドライバエラーはこの層で必ず包む。
var (
	// ErrDuplicateName は正規化名またはメールの一意制約違反。
	ErrDuplicateName = errors.New("repository: duplicate normalized name")
	// ErrGrantRevoked はイベント挿入トランザクション内の許可再検証で許可が見つからなかった。
	ErrGrantRevoked = errors.New("repository: permission grant not present")
	// ErrLastAdmin は削除対象が最後の管理者だった。
	ErrLastAdmin = errors.New("repository: would remove the last admin")
	// ErrHasDependents はrestrictポリシー下で依存イベントが存在した。
	ErrHasDependents = errors.New("repository: dependent rows exist")
	// ErrForeignRef は挿入時に参照先の行が存在しなかった（並行削除との競合）。
	ErrForeignRef = errors.New("repository: referenced row missing")
)

// PractitionerRepository は検査実施者データの永続化インターフェース。
type PractitionerRepository interface {
	// Create は実施者を作成する。メールの一意制約違反はErrDuplicateNameを返す。
	Create(ctx context.Context, p *model.Practitioner) error

	// FindByID は指定IDの実施者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Practitioner, error)

	// FindByEmail は正規化済みメールで実施者を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, emailNormalized string) (*model.Practitioner, error)

	// FindByLegacyID は移行前システムの数値IDで実施者を検索する。見つからない場合はnilを返す。
	FindByLegacyID(ctx context.Context, legacyID int64) (*model.Practitioner, error)

	// List は全実施者を表示名順で返す。
	List(ctx context.Context) ([]*model.Practitioner, error)

	// UpdateCredentialHash はパスワードリセット時に資格情報ハッシュを差し替える。
	UpdateCredentialHash(ctx context.Context, id, credentialHash string) error
}

// LocationRepository は検査地データの永続化インターフェース。
type LocationRepository interface {
	// Create は検査地を作成する。nameNormalizedは一意性判定用の正規化キー。
	// 正規化名の一意制約違反はErrDuplicateNameを返す。
	Create(ctx context.Context, loc *model.Location, nameNormalized string) error

	// FindByID は指定IDの検査地を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Location, error)

	// List は全検査地を名称順で返す。
	List(ctx context.Context) ([]*model.Location, error)

	// ListPermitted は指定実施者に許可されたアクティブな検査地を名称順で返す。
	ListPermitted(ctx context.Context, practitionerID string) ([]*model.Location, error)

	// Rename は表示名と正規化名のみを更新する。IDで結ばれたリレーションは影響を受けない。
	// 正規化名の一意制約違反はErrDuplicateNameを返す。
	Rename(ctx context.Context, id, name, nameNormalized string) error

	// SetActive はアクティブフラグを更新する。
	SetActive(ctx context.Context, id string, active bool) error
}

// PermissionRepository は許可マトリクスの永続化インターフェース。
type PermissionRepository interface {
	// ReplaceGrants は実施者の許可集合を全置換する。既存を全削除し新集合を挿入する
	// 1トランザクションで、実施者IDをキーにしたアドバイザリロックで直列化される。
	// 空のlocationIDsは全失効として正常に処理する。
	ReplaceGrants(ctx context.Context, practitionerID string, locationIDs []string) error

	// ToggleGrant は1本の許可エッジを冪等に付け外しする。付与したらtrueを返す。
	ToggleGrant(ctx context.Context, practitionerID, locationID string) (granted bool, err error)

	// ListGrants は実施者の許可検査地IDをソート・重複排除済みで返す。
	ListGrants(ctx context.Context, practitionerID string) ([]string, error)

	// HasGrant は許可エッジの存在を確認する。書き込み時の再検証に使う。
	HasGrant(ctx context.Context, practitionerID, locationID string) (bool, error)
}

// EventFilter はイベント一覧の絞り込み条件。ゼロ値のフィールドは無視される。
// Yearのみ指定した場合はその年全体が範囲になる。Monthの単独指定は
// サービス層で検証エラーになる。
type EventFilter struct {
	PractitionerID string
	LocationID     string
	Year           int
	Month          time.Month
}

// EventWithLocation はイベントと現在の検査地名を結合した読み取り専用の行。
// タイトルはこの名前から読み取りのたびに組み立てる。
type EventWithLocation struct {
	model.Event
	LocationName string
}

// EventRepository はイベントデータの永続化インターフェース。
type EventRepository interface {
	// CreateChecked はイベントを挿入する。requireGrantがtrueの場合、同一トランザクション
	// 内で許可エッジの存在を再検証し、存在しなければErrGrantRevokedを返して何も挿入しない。
	// クライアントが握っている古い許可一覧を信用しないための読み取り・検証・書き込み単位。
	CreateChecked(ctx context.Context, event *model.Event, requireGrant bool) error

	// FindByID は指定IDのイベントを現在の検査地名付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*EventWithLocation, error)

	// List はフィルタに合致するイベントを日付昇順・ID昇順で返す。
	List(ctx context.Context, filter EventFilter) ([]EventWithLocation, error)

	// DeleteByID は指定IDのイベントを削除する。削除した場合trueを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// CascadeRepository は連鎖削除を1つの原子的な単位として実行する整合性コーディネータ。
// どのステップで失敗しても全体がロールバックされ、部分的な連鎖状態は観測されない。
type CascadeRepository interface {
	// DeleteLocation は 許可のprune → イベントの連鎖削除 → 検査地行の削除 を
	// 1トランザクションで行う。restrictがtrueで依存イベントが存在する場合は
	// ErrHasDependentsを返し何も削除しない。検査地が存在しない場合はsql.ErrNoRowsを返す。
	DeleteLocation(ctx context.Context, locationID string, restrict bool) error

	// DeletePractitioner は 許可のprune → イベントの連鎖削除 → 実施者行の削除 を
	// 1トランザクションで行う。対象が最後の管理者の場合はErrLastAdminを返し
	// 何も削除しない。restrictがtrueで依存イベントが存在する場合はErrHasDependentsを返す。
	// 実施者が存在しない場合はsql.ErrNoRowsを返す。
	DeletePractitioner(ctx context.Context, practitionerID string, restrict bool) error
}

// AuditRepository は監査ログの永続化インターフェース。
type AuditRepository interface {
	// Insert は監査行を追記する。
	Insert(ctx context.Context, entry *model.AuditEntry) error

	// ListRecent は新しい順にlimit件を実施者名付きで返す。
	ListRecent(ctx context.Context, limit int) ([]*model.AuditEntry, error)
}
