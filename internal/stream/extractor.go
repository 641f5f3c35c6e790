package stream

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	// DefaultReadChunkSize は1回の読み出しで取得する最大バイト数
	DefaultReadChunkSize = 4096
	// DefaultMaxBufferSize はフレームバッファの上限
	// 終了マーカーが来ないままこれを超えた場合は操作エラーとしてセッションをリセットする
	DefaultMaxBufferSize = 2 * 1024 * 1024
)

// JPEGフレームの境界マーカー
var (
	jpegSOI = []byte{0xFF, 0xD8} // 開始マーカー
	jpegEOI = []byte{0xFF, 0xD9} // 終了マーカー
)

// errBufferOverflow は終了マーカーが届かないままバッファ上限を超えたことを表す
var errBufferOverflow = errors.New("終了マーカーが届かないままバッファ上限を超えました")

// Extractor はパイプの生バイト列からJPEGフレームを1枚ずつ切り出す
// パイプのハンドルはChannelManagerから借りるだけで、所有はしない
type Extractor struct {
	pipe      ChannelManager
	chunkSize int
	maxBuffer int

	mu    sync.Mutex
	buf   []byte // セッション単位のフレームバッファ
	chunk []byte // 読み出し用スクラッチ
}

// NewExtractor は新しいExtractorを作成する
// chunkSize・maxBufferに0を渡すとデフォルト値を使う
func NewExtractor(pipe ChannelManager, chunkSize, maxBuffer int) *Extractor {
	if chunkSize <= 0 {
		chunkSize = DefaultReadChunkSize
	}
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBufferSize
	}
	return &Extractor{
		pipe:      pipe,
		chunkSize: chunkSize,
		maxBuffer: maxBuffer,
		chunk:     make([]byte, chunkSize),
	}
}

// Read は上限付きの読み取り可能待ちを1回行い、データがあれば1チャンクだけ読み出して
// バッファに追加し、完全なフレームが揃っていればそれを返す
// まだ揃っていない場合は (nil, nil) を返す（エラーではないので呼び出し側は再試行できる）
// 書き込み側のクローズ（EOF）は上流プロセスの死を意味するため操作エラーとして報告する
func (e *Extractor) Read(timeout time.Duration) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fd, ok := e.pipe.Handle()
	if !ok {
		return nil, &OpError{Op: "フレーム読み出し", Err: errors.New("パイプが開いていません")}
	}

	ms := int(timeout.Milliseconds())
	if ms < 0 {
		ms = 0
	}

	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, ms)
	if err != nil && err != unix.EINTR {
		return nil, &OpError{Op: "フレーム読み出し", Err: fmt.Errorf("poll失敗: %w", err)}
	}

	if n > 0 && pfd[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
		rn, rerr := unix.Read(fd, e.chunk)
		switch {
		case rerr == unix.EAGAIN:
			// 書き込み側が未接続のノンブロッキングFIFOでは起こりうる
		case rerr != nil:
			e.buf = e.buf[:0]
			return nil, &OpError{Op: "フレーム読み出し", Err: fmt.Errorf("パイプ読み取り失敗: %w", rerr)}
		case rn == 0:
			// EOF: 書き込み側が閉じた = 上流プロセスが死んだ
			e.buf = e.buf[:0]
			return nil, &OpError{Op: "フレーム読み出し", Err: errors.New("上流プロセスがパイプを閉じました")}
		default:
			e.buf = append(e.buf, e.chunk[:rn]...)
		}
	}

	return e.extractFrame()
}

// extractFrame はバッファを走査して完全なフレームを1枚切り出す（ロック済み前提）
func (e *Extractor) extractFrame() ([]byte, error) {
	start := bytes.Index(e.buf, jpegSOI)
	if start == -1 {
		// 開始マーカーなし: マーカーがチャンク境界を跨ぐ場合に備えて末尾1バイトだけ残す
		if len(e.buf) > 1 {
			e.buf = append(e.buf[:0], e.buf[len(e.buf)-1])
		}
		return nil, nil
	}

	rel := bytes.Index(e.buf[start+2:], jpegEOI)
	if rel == -1 {
		if len(e.buf) > e.maxBuffer {
			e.buf = e.buf[:0]
			return nil, &OpError{Op: "フレーム切り出し", Err: errBufferOverflow}
		}
		// 開始マーカーより前は有効なフレームを含まないので捨てる
		if start > 0 {
			e.buf = append(e.buf[:0], e.buf[start:]...)
		}
		return nil, nil
	}

	end := start + 2 + rel + 2 // 終了マーカーを含む
	frame := make([]byte, end-start)
	copy(frame, e.buf[start:end])

	// 消費した区間とそれ以前はすべて破棄する
	e.buf = append(e.buf[:0], e.buf[end:]...)

	return frame, nil
}

// Reset はセッション境界でバッファを破棄する
// 前セッションの残骸が次のセッションに混入しないことを保証する
func (e *Extractor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buf = e.buf[:0]
}

// MockFrameReader はテスト用のモックFrameReader実装
// 設定したフレーム列を1枚ずつ返し、尽きたら (nil, nil) を返す
type MockFrameReader struct {
	mu       sync.Mutex
	frames   [][]byte
	readErr  error
	ResetCnt int
}

// NewMockFrameReader は新しいMockFrameReaderを作成する
func NewMockFrameReader(frames ...[]byte) *MockFrameReader {
	return &MockFrameReader{frames: frames}
}

// Read は次のフレームを返す
func (m *MockFrameReader) Read(_ time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(m.frames) == 0 {
		return nil, nil
	}
	frame := m.frames[0]
	m.frames = m.frames[1:]
	return frame, nil
}

// Reset はバッファ破棄の呼び出しを記録する
func (m *MockFrameReader) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCnt++
}

// SetReadError はテスト用にRead失敗を設定する
func (m *MockFrameReader) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}
