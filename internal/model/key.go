package model

import (
	"fmt"
	"strings"
)

// AccountKey は有効期限ストアのキーとなる (domain, userid) の複合識別子。
// ワイヤ形式は "<domain>/<userid>"。domainは空文字列（既定ドメイン）を許す。
// domainに'/'は含められない（ディレクトリ層のスキーマCHECKで保証）ため、
// 最初の'/'で分割すればuserid自体が'/'を含んでいても一意に復元できる。
type AccountKey struct {
	Domain string
	UserID string
}

// String はワイヤ形式 "<domain>/<userid>" を返す。
func (k AccountKey) String() string {
	return k.Domain + "/" + k.UserID
}

// ParseAccountKey はワイヤ形式の文字列をAccountKeyに復元する。
// '/'を含まない文字列、およびuseridが空になる文字列はエラーを返す。
func ParseAccountKey(s string) (AccountKey, error) {
	i := strings.Index(s, "/")
	if i < 0 {
		return AccountKey{}, fmt.Errorf("invalid account key (missing '/'): %q", s)
	}
	key := AccountKey{Domain: s[:i], UserID: s[i+1:]}
	if key.UserID == "" {
		return AccountKey{}, fmt.Errorf("invalid account key (empty user id): %q", s)
	}
	return key, nil
}
