// Package sweeper は楽曲から参照されなくなったアセットファイルの削除ジョブを提供する。
// 楽曲登録でメタデータの保存に失敗し、アセットの後始末もできなかった場合に
// アップロードディレクトリに残るファイルを対象とする。
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/tunedeck/internal/storage"
)

// PathLister は楽曲が参照しているアセットパスを返すインターフェース。
// repository.SongRepositoryが満たす。
type PathLister interface {
	ListFilePaths(ctx context.Context) ([]string, error)
}

// AssetStore はスイープ対象のアセットの列挙と削除を行うインターフェース。
// storage.LocalStoreが満たす。
type AssetStore interface {
	List(ctx context.Context) ([]storage.AssetInfo, error)
	Remove(ctx context.Context, path string) error
}

// Recorder は削除件数を記録するインターフェース。
type Recorder interface {
	RecordAssetsSwept(count int)
}

// Config はスイープジョブの設定パラメータ。
type Config struct {
	// GracePeriod より新しいファイルは削除しない（デフォルト: 24時間）。
	// アップロード直後でメタデータ登録前のファイルを消さないための猶予。
	GracePeriod time.Duration
	// DeleteRate は1秒あたりの最大削除数（デフォルト: 10）。
	DeleteRate rate.Limit
}

// DefaultConfig はデフォルトのスイープ設定を返す。
func DefaultConfig() Config {
	return Config{
		GracePeriod: 24 * time.Hour,
		DeleteRate:  10,
	}
}

// Result は1回のスイープの結果。
type Result struct {
	Scanned    int
	Referenced int
	Removed    int
	Failed     int
}

// SweepJob は孤立したアセットファイルを削除するジョブ。
// 何度実行しても結果は変わらない。
type SweepJob struct {
	songs   PathLister
	store   AssetStore
	logger  *slog.Logger
	metrics Recorder
	config  Config
	limiter *rate.Limiter
	now     func() time.Time
}

// NewSweepJob はSweepJobを生成する。metricsはnilでもよい。
func NewSweepJob(songs PathLister, store AssetStore, logger *slog.Logger, metrics Recorder, config Config) *SweepJob {
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultConfig().GracePeriod
	}
	if config.DeleteRate <= 0 {
		config.DeleteRate = DefaultConfig().DeleteRate
	}
	return &SweepJob{
		songs:   songs,
		store:   store,
		logger:  logger,
		metrics: metrics,
		config:  config,
		limiter: rate.NewLimiter(config.DeleteRate, 1),
		now:     time.Now,
	}
}

// Start はスイープをティッカーで定期実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *SweepJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("アセットスイープジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("grace_period", j.config.GracePeriod),
		slog.Float64("delete_rate", float64(j.config.DeleteRate)),
	)

	j.runAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("アセットスイープジョブを停止しました")
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *SweepJob) runAndLog(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("アセットスイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}

// Run は1回のスイープを実行する。
// アセット一覧を先に取得してから参照パスを取得するため、
// 途中で登録された楽曲のファイルを誤って孤立と判定することはない。
// 個々のファイルの削除失敗はログに記録して続行する。
func (j *SweepJob) Run(ctx context.Context) (*Result, error) {
	start := j.now()

	assets, err := j.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("アセット一覧の取得に失敗: %w", err)
	}

	paths, err := j.songs.ListFilePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("参照パスの取得に失敗: %w", err)
	}
	referenced := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		referenced[p] = struct{}{}
	}

	result := &Result{Scanned: len(assets)}
	cutoff := start.Add(-j.config.GracePeriod)

	for _, a := range assets {
		if _, ok := referenced[a.Path]; ok {
			result.Referenced++
			continue
		}
		if a.ModTime.After(cutoff) {
			continue
		}

		if err := j.limiter.Wait(ctx); err != nil {
			j.record(result)
			return result, fmt.Errorf("スイープが中断されました: %w", err)
		}
		if err := j.store.Remove(ctx, a.Path); err != nil {
			result.Failed++
			j.logger.Warn("孤立アセットの削除に失敗しました",
				slog.String("path", a.Path),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Removed++
		j.logger.Debug("孤立アセットを削除しました",
			slog.String("path", a.Path),
			slog.Int64("size", a.Size),
		)
	}

	j.record(result)
	j.logger.Info("アセットスイープが完了しました",
		slog.Int("scanned", result.Scanned),
		slog.Int("referenced", result.Referenced),
		slog.Int("removed_count", result.Removed),
		slog.Int("failed_count", result.Failed),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return result, nil
}

func (j *SweepJob) record(result *Result) {
	if j.metrics != nil && result.Removed > 0 {
		j.metrics.RecordAssetsSwept(result.Removed)
	}
}
