package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/lockgate/internal/model"
)

// FindSession は指定IDのセッションを取得する。
// 期限切れまたは存在しない場合はnilを返す。
func (d *PostgresDirectory) FindSession(ctx context.Context, id string) (*model.Session, error) {
	session := &model.Session{}
	err := d.db.QueryRowContext(ctx,
		`SELECT id, account_domain, account_id, expires_at, created_at
		 FROM sessions
		 WHERE id = $1 AND expires_at > now()`,
		id,
	).Scan(&session.ID, &session.AccountDomain, &session.AccountID, &session.ExpiresAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// DisconnectSessions はアカウントの全アクティブセッションを削除する。
// ロック直後のアカウントが既存セッションで操作を続けられないようにする。
func (d *PostgresDirectory) DisconnectSessions(ctx context.Context, key model.AccountKey) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE account_domain = $1 AND account_id = $2`,
		key.Domain, key.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to disconnect sessions: %w", err)
	}
	return nil
}
