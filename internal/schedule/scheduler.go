// Package schedule は日次スイープのスケジューラを提供する。
// 設定されたタイムゾーンの壁時計で毎日決まった時刻にスイープを実行する。
// 固定周期のティッカーではなくワンショットタイマーの再設定を繰り返すことで、
// 遅延の累積があっても壁時計の目標時刻に正しくアンカーされ続ける。
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultFallbackDelay はスケジュール計算に失敗した場合の再試行間隔。
const DefaultFallbackDelay = time.Minute

// Config はスケジュールの設定。プロセスの生存期間中は不変として扱う。
type Config struct {
	Timezone string // IANAゾーン名（例: "Europe/Moscow"）
	RunAt    string // "HH:MM" 形式の壁時計時刻
}

// SweepRunner はスイープ実行のインターフェース。
type SweepRunner interface {
	Run(ctx context.Context)
}

// Scheduler は日次スイープのスケジューラ。
// プロセスのライフサイクルに所有され、コンテキストのキャンセルまで実行を続ける。
type Scheduler struct {
	config        Config
	sweeper       SweepRunner
	logger        *slog.Logger
	fallbackDelay time.Duration
	now           func() time.Time
}

// NewScheduler はSchedulerを生成する。
func NewScheduler(config Config, sweeper SweepRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		config:        config,
		sweeper:       sweeper,
		logger:        logger,
		fallbackDelay: DefaultFallbackDelay,
		now:           time.Now,
	}
}

// SetClock は現在時刻の取得関数を差し替える。テスト用。
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start はスケジューラを起動する。
// 起動直後に1回スイープを実行し（プロセス停止中に過ぎた期限をカバーする）、
// 以降は次の目標時刻までのワンショットタイマーを張り直し続ける。
// コンテキストがキャンセルされるまでブロックする。
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("スイープスケジューラを開始しました",
		slog.String("timezone", s.config.Timezone),
		slog.String("run_at", s.config.RunAt),
	)

	s.sweeper.Run(ctx)

	for {
		delay := s.nextDelay()
		s.logger.Info("次回スイープを予約しました",
			slog.Int64("delay_sec", int64(delay/time.Second)),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("スイープスケジューラを停止しました")
			return
		case <-timer.C:
			s.sweeper.Run(ctx)
		}
	}
}

// nextDelay は次の目標時刻までの遅延を計算する。
// ゾーンの解決や計算に失敗した場合は短い固定遅延を返し、
// ループが永久に停止することを防ぐ。
func (s *Scheduler) nextDelay() time.Duration {
	loc, err := time.LoadLocation(s.config.Timezone)
	if err != nil {
		s.logger.Warn("タイムゾーンの解決に失敗しました。フォールバック遅延で再試行します",
			slog.String("timezone", s.config.Timezone),
			slog.String("error", err.Error()),
		)
		return s.fallbackDelay
	}

	delay, err := DelayUntil(loc, s.config.RunAt, s.now())
	if err != nil {
		s.logger.Warn("スケジュール計算に失敗しました。フォールバック遅延で再試行します",
			slog.String("run_at", s.config.RunAt),
			slog.String("error", err.Error()),
		)
		return s.fallbackDelay
	}
	return delay
}

// DelayUntil は指定ゾーンの壁時計で次にrunAt（"HH:MM"）となる時刻までの
// 遅延を返す。ゾーンの時・分・秒の各パートから計算するため、UTCオフセットの
// 素朴な加減とは異なり、夏時間の切替があっても秒精度で目標時刻を守る。
// 目標が本日中ならその差、過ぎていれば翌日の同時刻までの差となる。
func DelayUntil(loc *time.Location, runAt string, now time.Time) (time.Duration, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(runAt, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("invalid run_at %q: %w", runAt, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid run_at %q: out of range", runAt)
	}

	local := now.In(loc)
	nowSec := local.Hour()*3600 + local.Minute()*60 + local.Second()
	targetSec := hh*3600 + mm*60

	var diffSec int
	if targetSec > nowSec {
		diffSec = targetSec - nowSec
	} else {
		diffSec = 86400 - (nowSec - targetSec)
	}
	return time.Duration(diffSec) * time.Second, nil
}
