// Package lock はロックアクチュエータを提供する。
// アカウントのロック状態の変更を、ホストのネイティブ能力（主経路）と
// レコード全体の書き込み（フォールバック経路）の2経路で適用する。
// ホストのAPI表面はバージョン間で安定していないため、1経路への
// ハード依存ではなく段階的な縮退を行う。
package lock

import (
	"context"
	"log/slog"

	"github.com/hitoshi/lockgate/internal/model"
)

// Toggler はホストのネイティブなロック切替能力（主経路）。
type Toggler interface {
	SetAccountLocked(ctx context.Context, key model.AccountKey, locked bool) error
}

// RecordWriter はアカウントレコード全体の書き込み能力（フォールバック経路）。
// コールバック形式のホストAPIは配線時にこのインターフェースへ適合させる。
type RecordWriter interface {
	WriteAccount(ctx context.Context, account model.Account) error
}

// SessionDisconnector はアカウントのアクティブセッションを切断する能力。
type SessionDisconnector interface {
	DisconnectSessions(ctx context.Context, key model.AccountKey) error
}

// Actuator はロック状態の変更を2経路で適用するアクチュエータ。
type Actuator struct {
	toggler      Toggler             // ホストが公開していない場合はnil
	writer       RecordWriter        // ホストが公開していない場合はnil
	disconnector SessionDisconnector // ホストが公開していない場合はnil
	logger       *slog.Logger
}

// NewActuator はActuatorを生成する。
// toggler、writer、disconnectorはそれぞれnilを許す。
func NewActuator(toggler Toggler, writer RecordWriter, disconnector SessionDisconnector, logger *slog.Logger) *Actuator {
	return &Actuator{
		toggler:      toggler,
		writer:       writer,
		disconnector: disconnector,
		logger:       logger,
	}
}

// SetLocked はアカウントのロックフラグをflagに変更し、成否を返す。
// 主経路が失敗または不在の場合はフォールバック経路を試みる。
// いずれかの経路が成功した場合、ベストエフォートでセッションを切断する。
// 切断の失敗が操作全体の結果に影響することはない。
func (a *Actuator) SetLocked(ctx context.Context, account model.Account, flag bool) bool {
	key := account.Key()

	if a.toggler != nil {
		if err := a.toggler.SetAccountLocked(ctx, key, flag); err != nil {
			a.logger.Warn("ネイティブのロック切替に失敗しました。フォールバック経路を試みます",
				slog.String("key", key.String()),
				slog.String("error", err.Error()),
			)
		} else {
			a.disconnect(ctx, key)
			return true
		}
	}

	if a.writer != nil {
		updated := account
		updated.Locked = flag
		if updated.ServerAdmin {
			// 管理権限サブ構造を持つアカウントは入れ子側のフラグも同期する
			updated.SiteAdminLocked = flag
		}
		if err := a.writer.WriteAccount(ctx, updated); err != nil {
			a.logger.Error("フォールバック経路のレコード書き込みに失敗しました",
				slog.String("key", key.String()),
				slog.String("error", err.Error()),
			)
			return false
		}
		a.disconnect(ctx, key)
		return true
	}

	a.logger.Error("利用可能なロック経路がありません",
		slog.String("key", key.String()),
	)
	return false
}

// disconnect はアカウントのセッションをベストエフォートで切断する。
func (a *Actuator) disconnect(ctx context.Context, key model.AccountKey) {
	if a.disconnector == nil {
		return
	}
	if err := a.disconnector.DisconnectSessions(ctx, key); err != nil {
		a.logger.Warn("セッション切断に失敗しました",
			slog.String("key", key.String()),
			slog.String("error", err.Error()),
		)
	}
}
