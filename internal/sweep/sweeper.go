// Package sweep は期限切れアカウントのスイープ処理を提供する。
// 既知の全アカウントを有効期限ストアと突き合わせ、期限を過ぎた未ロックの
// アカウントをロックする。ロックの解除は常に管理操作であり、スイープが
// 自動的に解除することはない。
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/lockgate/internal/expiry"
	"github.com/hitoshi/lockgate/internal/model"
)

// StoreLoader は有効期限ドキュメントの読み込みインターフェース。
type StoreLoader interface {
	Load() map[string]string
}

// Lister はアカウントディレクトリの列挙インターフェース。
// 呼び出しごとに最新のスナップショットを返す。
type Lister interface {
	ListAccounts(ctx context.Context) ([]model.Account, error)
}

// Actuator はロック状態変更のインターフェース。
type Actuator interface {
	SetLocked(ctx context.Context, account model.Account, flag bool) bool
}

// MetricsCollector はスイープのメトリクス収集インターフェース。
type MetricsCollector interface {
	RecordSweepRun()
	RecordAccountLocked()
	RecordLockFailure()
	RecordSweepDuration(d time.Duration)
}

// Sweeper はスイープの実行主体。
// タイマー駆動のスケジューラと管理API（api/run）の両方から呼ばれる。
// 冪等であり、重複実行の排他制御は行わない。
type Sweeper struct {
	store    StoreLoader
	dir      Lister
	actuator Actuator
	logger   *slog.Logger
	metrics  MetricsCollector
	now      func() time.Time
}

// NewSweeper はSweeperを生成する。metricsはnilを許す。
func NewSweeper(store StoreLoader, dir Lister, actuator Actuator, logger *slog.Logger, metrics MetricsCollector) *Sweeper {
	return &Sweeper{
		store:    store,
		dir:      dir,
		actuator: actuator,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// SetClock は現在時刻の取得関数を差し替える。テスト用。
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Run は1回のスイープを実行する。
// ストアを1回読み込み、ディレクトリを1回列挙し、各アカウントを順に評価する。
// 期限エントリなし・解釈不能な値・将来の期限・ロック済みのアカウントは
// 変更しない。1アカウントの失敗はログに残して処理を継続する。
// 外側のガードにより、不正なレコードが次回の定時実行を妨げることはない。
func (s *Sweeper) Run(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("スイープ中のpanicを回復しました",
				slog.Any("panic", rec),
			)
		}
	}()

	start := s.now()
	db := s.store.Load()

	accounts, err := s.dir.ListAccounts(ctx)
	if err != nil {
		s.logger.Error("アカウントの列挙に失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	locked, failed := 0, 0
	for _, account := range accounts {
		key := account.Key().String()

		until, ok := db[key]
		if !ok {
			continue
		}
		exp, ok := expiry.ParseInstant(until)
		if !ok {
			// 解釈不能な値は期限なしとして扱う
			continue
		}
		if exp.After(s.now()) || account.Locked {
			continue
		}

		if s.actuator.SetLocked(ctx, account, true) {
			locked++
			if s.metrics != nil {
				s.metrics.RecordAccountLocked()
			}
			s.logger.Info("期限切れアカウントをロックしました",
				slog.String("key", key),
				slog.String("until", until),
			)
		} else {
			failed++
			if s.metrics != nil {
				s.metrics.RecordLockFailure()
			}
			s.logger.Error("期限切れアカウントのロックに失敗しました",
				slog.String("key", key),
				slog.String("until", until),
			)
		}
	}

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordSweepRun()
		s.metrics.RecordSweepDuration(duration)
	}
	s.logger.Info("スイープが完了しました",
		slog.Int("account_count", len(accounts)),
		slog.Int("locked", locked),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}
