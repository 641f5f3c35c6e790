package stream

import (
	"errors"
	"fmt"
)

// 排他制御による拒否を表すセンチネルエラー
var (
	// ErrMeetingActive は会議中のため配信開始が拒否されたことを表す
	ErrMeetingActive = errors.New("会議が進行中のため配信できません")
	// ErrStreamBusy は別の視聴者が配信中のため拒否されたことを表す
	ErrStreamBusy = errors.New("別の視聴者が既に配信中です")
)

// ConfigError は設定起因の回復不能なエラーを表す
// （デバイスが存在しない、ffmpegが見つからない、FIFOを作成できない等）
// オペレーターの介入なしには回復できない
type ConfigError struct {
	Op  string // 失敗した操作
	Err error  // 元のエラー
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("設定エラー（%s）: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// OpError は実行時の回復可能なエラーを表す
// （プロセス起動失敗、パイプ読み取り失敗、フレームバッファ溢れ等）
// コンポーネントは自身の状態をリセットした上でこれを返すため、呼び出し側は再試行できる
type OpError struct {
	Op  string // 失敗した操作
	Err error  // 元のエラー
}

func (e *OpError) Error() string {
	return fmt.Sprintf("操作エラー（%s）: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsConfigError はエラーが設定起因かどうかを判定する
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsOpError はエラーが回復可能な操作エラーかどうかを判定する
func IsOpError(err error) bool {
	var oe *OpError
	return errors.As(err, &oe)
}
