// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordRegistration()
	RecordLogin(success bool)
	RecordSongUploaded()
	RecordPlaylistMutation(op string)
	RecordAssetsSwept(count int)
}

// プレイリスト変更操作のラベル値
const (
	PlaylistOpCreate   = "create"
	PlaylistOpAddSongs = "add_songs"
	PlaylistOpDelete   = "delete"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	registrations     prometheus.Counter
	logins            *prometheus.CounterVec
	songsUploaded     prometheus.Counter
	playlistMutations *prometheus.CounterVec
	assetsSwept       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tunedeck_http_requests_total",
			Help: "ルート・ステータス別のHTTPリクエスト数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tunedeck_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tunedeck_registrations_total",
			Help: "ユーザー登録成功の合計数",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tunedeck_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		songsUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tunedeck_songs_uploaded_total",
			Help: "登録された楽曲の合計数",
		}),
		playlistMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tunedeck_playlist_mutations_total",
			Help: "操作別のプレイリスト変更数",
		}, []string{"op"}),
		assetsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tunedeck_assets_swept_total",
			Help: "スイーパーが削除した孤立アセットの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.registrations,
		c.logins,
		c.songsUploaded,
		c.playlistMutations,
		c.assetsSwept,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターンを渡し、ラベルの種類数を抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRegistration はユーザー登録成功を記録する。
func (c *Collector) RecordRegistration() {
	c.registrations.Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordSongUploaded は楽曲登録を記録する。
func (c *Collector) RecordSongUploaded() {
	c.songsUploaded.Inc()
}

// RecordPlaylistMutation はプレイリスト変更操作を記録する。
func (c *Collector) RecordPlaylistMutation(op string) {
	c.playlistMutations.WithLabelValues(op).Inc()
}

// RecordAssetsSwept は削除した孤立アセット数を記録する。
func (c *Collector) RecordAssetsSwept(count int) {
	c.assetsSwept.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordRegistration()                                {}
func (Nop) RecordLogin(bool)                                   {}
func (Nop) RecordSongUploaded()                                {}
func (Nop) RecordPlaylistMutation(string)                      {}
func (Nop) RecordAssetsSwept(int)                              {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
