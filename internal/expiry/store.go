// Package expiry は有効期限ストアを提供する。
// ストアは "<domain>/<userid>" からISO-8601文字列へのフラットなマッピングで、
// ホストのデータディレクトリ配下の単一JSONドキュメントとして永続化される。
package expiry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName は有効期限ドキュメントの既定のファイル名。
const FileName = "license-expiry.json"

// Store はファイルベースの有効期限ストア。
// 読み取りは毎回ディスクから行い、メモリ上にコピーを保持しない。
// スイープと管理APIが常に最新のドキュメントを観測するための設計。
type Store struct {
	path string
}

// NewStore はdataDir配下のドキュメントに紐づくStoreを生成する。
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, FileName)}
}

// Path はドキュメントのファイルパスを返す。
func (s *Store) Path() string {
	return s.path
}

// Load はドキュメント全体を読み込む。
// ファイルの不在・読み取りエラー・パースエラーはすべて空のマッピングとして扱い、
// エラーを外に出さない。起動やスイープをストア障害で止めないための契約。
func (s *Store) Load() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]string{}
	}

	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]string{}
	}
	return m
}

// Save はドキュメント全体を置き換える。
// 一時ファイルへの書き込みとrenameにより、他の読み手が書き込み途中の
// ドキュメントを観測することはない。
func (s *Store) Save(m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal expiry document: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write expiry document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace expiry document: %w", err)
	}
	return nil
}

// Set はキーに値を設定してドキュメントを保存する。
// 「期限の解除」は空文字列または解釈不能な値を設定することで表現される
// （スイープはそれらを期限なしとして扱う）。
func (s *Store) Set(key, until string) error {
	m := s.Load()
	m[key] = until
	return s.Save(m)
}

// ParseInstant はISO-8601（RFC 3339）文字列を時刻として解釈する。
// 解釈できない場合はok=falseを返し、呼び出し側は「期限なし」として扱う。
func ParseInstant(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
