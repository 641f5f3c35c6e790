// Package metrics はPrometheusメトリクスの定義と登録を担う
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics は配信サブシステムのPrometheusメトリクスを保持する
type Metrics struct {
	// 配信メトリクス
	FramesServed  prometheus.Counter
	BytesServed   prometheus.Counter
	ActiveViewers prometheus.Gauge

	// 排他制御メトリクス
	StartRejected prometheus.Counter
	Preemptions   prometheus.Counter

	// エラーメトリクス
	StreamErrors prometheus.Counter
}

// New はメトリクスを作成してデフォルトレジストリに登録する
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith は指定したレジストリにメトリクスを登録する
// テストでは独立したレジストリを渡すことで二重登録を避けられる
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesServed: factory.NewCounter(prometheus.CounterOpts{
			Name: "mihari_frames_served_total",
			Help: "視聴者に配信したフレームの総数",
		}),
		BytesServed: factory.NewCounter(prometheus.CounterOpts{
			Name: "mihari_bytes_served_total",
			Help: "視聴者に配信したバイトの総数",
		}),
		ActiveViewers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mihari_active_viewers",
			Help: "現在の視聴者数（単一視聴者ポリシーのため0か1）",
		}),
		StartRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "mihari_start_rejected_total",
			Help: "排他制御により拒否された配信開始要求の総数",
		}),
		Preemptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "mihari_preemptions_total",
			Help: "会議開始による強制プリエンプションの総数",
		}),
		StreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "mihari_stream_errors_total",
			Help: "配信中に発生した操作エラーの総数",
		}),
	}
}
