// Package directory はホスト統合層を提供する。
// アカウントディレクトリの列挙、ロックフラグの更新、レコード全体の書き込み、
// セッションの検証と切断、管理者判定をPostgreSQL上に実装する。
// コアはこのパッケージに直接依存せず、各消費側パッケージが定義する
// 小さなインターフェースを介して利用する。
package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lockgate/internal/lock"
	"github.com/hitoshi/lockgate/internal/model"
	"github.com/hitoshi/lockgate/internal/sweep"
)

// PostgresDirectory はPostgreSQLを使用したアカウントディレクトリ。
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory はPostgresDirectoryを生成する。
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// ListAccounts は既知の全アカウントの現時点のスナップショットを返す。
// アカウントが存在しない場合は空のスライスを返す（ホスト未準備を許容する）。
func (d *PostgresDirectory) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, domain, name, locked, server_admin, site_admin_locked, created_at, updated_at
		 FROM accounts
		 ORDER BY domain, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.Domain, &a.Name, &a.Locked, &a.ServerAdmin, &a.SiteAdminLocked, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// SetAccountLocked はアカウントのロックフラグを更新する（主経路）。
// 対象アカウントが存在しない場合はエラーを返す。
func (d *PostgresDirectory) SetAccountLocked(ctx context.Context, key model.AccountKey, locked bool) error {
	result, err := d.db.ExecContext(ctx,
		`UPDATE accounts SET locked = $3, updated_at = now()
		 WHERE domain = $1 AND id = $2`,
		key.Domain, key.UserID, locked,
	)
	if err != nil {
		return fmt.Errorf("failed to set account locked: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", key)
	}
	return nil
}

// WriteAccount はアカウントレコード全体を書き込む（フォールバック経路）。
// 既存レコードは上書きされ、存在しない場合は新規に作成される。
func (d *PostgresDirectory) WriteAccount(ctx context.Context, account model.Account) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO accounts (domain, id, name, locked, server_admin, site_admin_locked, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		 ON CONFLICT (domain, id) DO UPDATE SET
		   name = EXCLUDED.name,
		   locked = EXCLUDED.locked,
		   server_admin = EXCLUDED.server_admin,
		   site_admin_locked = EXCLUDED.site_admin_locked,
		   updated_at = now()`,
		account.Domain, account.ID, account.Name, account.Locked, account.ServerAdmin, account.SiteAdminLocked,
	)
	if err != nil {
		return fmt.Errorf("failed to write account: %w", err)
	}
	return nil
}

// IsAdmin はアカウントがサーバー管理者かどうかを返す。
// アカウントが存在しない場合はfalseを返す。
func (d *PostgresDirectory) IsAdmin(ctx context.Context, key model.AccountKey) (bool, error) {
	var serverAdmin bool
	err := d.db.QueryRowContext(ctx,
		`SELECT server_admin FROM accounts WHERE domain = $1 AND id = $2`,
		key.Domain, key.UserID,
	).Scan(&serverAdmin)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check admin flag: %w", err)
	}
	return serverAdmin, nil
}

// compile-time interface checks
var (
	_ sweep.Lister             = (*PostgresDirectory)(nil)
	_ lock.Toggler             = (*PostgresDirectory)(nil)
	_ lock.RecordWriter        = (*PostgresDirectory)(nil)
	_ lock.SessionDisconnector = (*PostgresDirectory)(nil)
)
