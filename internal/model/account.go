// Package model はドメインモデルを定義する。
package model

import "time"

// Account はホストのアカウントディレクトリにおける1アカウントのスナップショットを表す。
// スイープおよび管理APIの呼び出しごとに再列挙され、実行をまたいでキャッシュされない。
type Account struct {
	ID              string
	Domain          string
	Name            string
	Locked          bool
	ServerAdmin     bool
	SiteAdminLocked bool // 管理権限サブ構造側のロックフラグ（フォールバック書き込みで同期する）
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Key はこのアカウントの有効期限ストア用キーを返す。
func (a *Account) Key() AccountKey {
	return AccountKey{Domain: a.Domain, UserID: a.ID}
}

// Session はアカウントのログインセッションを表す。
// セッションの発行はホスト側の責務であり、本システムは検証と切断のみを行う。
type Session struct {
	ID            string
	AccountDomain string
	AccountID     string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

// AccountKey はセッションが属するアカウントのキーを返す。
func (s *Session) AccountKey() AccountKey {
	return AccountKey{Domain: s.AccountDomain, UserID: s.AccountID}
}
