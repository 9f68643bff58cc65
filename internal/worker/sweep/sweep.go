// Package sweep は期限切れセッションの定期無効化ジョブを提供する。
// 起動直後に1回実行し、以後は一定間隔で実行する。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの既定の実行間隔。
const DefaultInterval = time.Hour

// Sweeper は期限切れセッションを一括で無効化するインターフェース。
type Sweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// SessionSweepJob は期限切れセッションの無効化ジョブ。
// 冪等なUPDATEのみを行うため、複数プロセスで同時に動いても問題ない。
type SessionSweepJob struct {
	sweeper  Sweeper
	logger   *slog.Logger
	Interval time.Duration
}

// NewSessionSweepJob は新しいSessionSweepJobを生成する。
// intervalが0以下の場合はDefaultIntervalを使う。
func NewSessionSweepJob(sweeper Sweeper, logger *slog.Logger, interval time.Duration) *SessionSweepJob {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &SessionSweepJob{
		sweeper:  sweeper,
		logger:   logger,
		Interval: interval,
	}
}

// Run は期限切れセッションの無効化を1回実行する。
func (j *SessionSweepJob) Run(ctx context.Context) error {
	start := time.Now()

	count, err := j.sweeper.SweepExpiredSessions(ctx)
	if err != nil {
		j.logger.Error("セッション無効化ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッション無効化の実行に失敗: %w", err)
	}

	j.logger.Info("セッション無効化ジョブが完了しました",
		slog.Int64("swept_count", count),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はジョブを起動直後に1回、その後Interval間隔で実行する。
// ctxがキャンセルされるまでブロックする。個々の実行の失敗では停止しない。
func (j *SessionSweepJob) Start(ctx context.Context) {
	j.logger.Info("セッション無効化ジョブを開始します",
		slog.String("interval", j.Interval.String()),
	)

	_ = j.Run(ctx)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッション無効化ジョブを停止します")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
