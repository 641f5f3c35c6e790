package stream

import (
	"context"
	"time"
)

// ProcessSupervisor はフレーム生成プロセスのライフサイクル管理を担うインターフェース
type ProcessSupervisor interface {
	// Start はプロセスを起動する（既に起動済みなら何もしない）
	Start(ctx context.Context) error

	// Stop はプロセスを段階的に終了させ、追跡状態を必ずクリアする
	Stop() error

	// IsRunning はプロセスハンドルを追跡中かどうかを返す
	// OSプロセスの生死そのものは保証しない
	IsRunning() bool
}

// ChannelManager は名前付きパイプのオープン・クローズを担うインターフェース
// フレームバイトの読み出し自体はExtractorの仕事であり、ここでは行わない
type ChannelManager interface {
	// EnsureOpen はパイプを必要なら作成して読み取り用に開く（既に開いていればそのまま）
	EnsureOpen() error

	// Handle は開いている読み取りファイルディスクリプタを返す
	Handle() (fd int, ok bool)

	// Close はパイプを閉じて未オープン状態に戻す（閉じた状態で呼んでも安全）
	Close() error
}

// FrameReader はパイプからフレームを1枚ずつ切り出すインターフェース
type FrameReader interface {
	// Read は上限付きの読み取り可能待ちと1回の読み出しを行い、
	// 完全なフレームが揃っていればそれを返す
	// まだ揃っていない場合は (nil, nil) を返す（エラーではない）
	Read(timeout time.Duration) ([]byte, error)

	// Reset はセッション境界でバッファを破棄する
	Reset()
}
