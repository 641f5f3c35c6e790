package stream

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// PipeManager は名前付きパイプ（FIFO）の作成とオープン・クローズを管理する
// 「パイプが存在しない」ことと「データがまだ来ていない」ことを混同しないため、
// リソースのライフサイクル管理だけを担い、読み出しはExtractorに任せる
type PipeManager struct {
	path string
	fd   int
	open bool
	mu   sync.Mutex
}

// NewPipeManager は新しいPipeManagerを作成する
func NewPipeManager(path string) *PipeManager {
	return &PipeManager{
		path: path,
		fd:   -1,
	}
}

// EnsureOpen はFIFOを必要なら作成し、読み取り用に開く
// 既に開いている場合は何もしない（冪等）
// FIFOの作成失敗は設定エラー、オープン失敗は操作エラーとして区別される
func (p *PipeManager) EnsureOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		return nil
	}

	// FIFOが存在しなければ作成する
	if _, err := os.Stat(p.path); err != nil {
		if !os.IsNotExist(err) {
			return &ConfigError{Op: "FIFOの確認", Err: err}
		}
		if err := unix.Mkfifo(p.path, 0o600); err != nil {
			return &ConfigError{Op: "FIFOの作成", Err: fmt.Errorf("%s: %w", p.path, err)}
		}
	}

	// ノンブロッキングで開く（書き込み側がまだいなくてもブロックしない）
	fd, err := unix.Open(p.path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return &OpError{Op: "FIFOのオープン", Err: fmt.Errorf("%s: %w", p.path, err)}
	}

	p.fd = fd
	p.open = true
	return nil
}

// Handle は開いている読み取りファイルディスクリプタを返す
func (p *PipeManager) Handle() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return -1, false
	}
	return p.fd, true
}

// Close はパイプを閉じて未オープン状態に戻す
// 既に閉じている場合は何もしない（二重クローズは発生しない）
func (p *PipeManager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return nil
	}

	err := unix.Close(p.fd)
	p.fd = -1
	p.open = false

	if err != nil {
		return &OpError{Op: "FIFOのクローズ", Err: err}
	}
	return nil
}

// Path はFIFOのパスを返す
func (p *PipeManager) Path() string {
	return p.path
}

// MockChannelManager はテスト用のモックChannelManager実装
type MockChannelManager struct {
	mu       sync.Mutex
	open     bool
	fd       int
	openErr  error
	closeErr error
	OpenCnt  int
	CloseCnt int // 実際にクローズまで到達した回数
}

// NewMockChannelManager は新しいMockChannelManagerを作成する
func NewMockChannelManager() *MockChannelManager {
	return &MockChannelManager{fd: -1}
}

// EnsureOpen はモックパイプを開く
func (m *MockChannelManager) EnsureOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.OpenCnt++
	if m.openErr != nil {
		return m.openErr
	}
	if !m.open {
		m.open = true
		m.fd = 99 // ダミーのディスクリプタ
	}
	return nil
}

// Handle はモックのディスクリプタを返す
func (m *MockChannelManager) Handle() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return -1, false
	}
	return m.fd, true
}

// Close はモックパイプを閉じる
func (m *MockChannelManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.open {
		m.CloseCnt++
	}
	m.open = false
	m.fd = -1
	return m.closeErr
}

// IsOpen はモックパイプが開いているかを返す
func (m *MockChannelManager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// SetOpenError はテスト用にEnsureOpen失敗を設定する
func (m *MockChannelManager) SetOpenError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}
