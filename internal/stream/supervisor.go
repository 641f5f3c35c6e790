package stream

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// launchProbeWait は起動直後の生存確認に使う待ち時間
const launchProbeWait = 200 * time.Millisecond

// errSweepFallback はSIGKILLでも終了しなかったプロセスを名前一致で掃討したことを表す
var errSweepFallback = errors.New("SIGKILLでも終了せず、名前一致の掃討にフォールバックしました")

// Supervisor はフレーム生成プロセス（ffmpeg）の起動・停止・監視を担う
// プロセスハンドルは本構造体だけが所有し、他のコンポーネントは直接触らない
type Supervisor struct {
	command     string
	args        []string
	processName string // 掃討フォールバックで名前一致させる文字列
	termGrace   time.Duration
	killGrace   time.Duration

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{} // cmd.Wait完了でクローズされる
}

// NewCommandSupervisor は任意のコマンドを監督するSupervisorを作成する
func NewCommandSupervisor(command string, args []string, processName string, termGrace, killGrace time.Duration) *Supervisor {
	return &Supervisor{
		command:     command,
		args:        args,
		processName: processName,
		termGrace:   termGrace,
		killGrace:   killGrace,
	}
}

// NewFFmpegSupervisor はカメラ映像をMJPEGとしてFIFOへ書き出すffmpegを監督するSupervisorを作成する
func NewFFmpegSupervisor(device, pipePath string, width, height, fps int, termGrace, killGrace time.Duration) *Supervisor {
	args := []string{
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", device,
		"-an",
		"-f", "mjpeg",
		"-y", pipePath,
	}
	return NewCommandSupervisor("ffmpeg", args, "ffmpeg", termGrace, killGrace)
}

// Start はプロセスを起動する
// 既にプロセスを追跡中の場合は何もしない（冪等）
// 起動直後の生存確認に失敗した場合は操作エラーを返し、ハンドルは残さない
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	// 終了はStop()の段階的プロトコルが担うため、CommandContextは使わない
	cmd := exec.Command(s.command, s.args...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return &ConfigError{Op: "プロセス起動", Err: fmt.Errorf("%s が見つかりません: %w", s.command, err)}
		}
		return &OpError{Op: "プロセス起動", Err: err}
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	// 起動直後の生存確認
	select {
	case <-exited:
		return &OpError{Op: "プロセス起動", Err: fmt.Errorf("%s が起動直後に終了しました", s.command)}
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-exited
		return &OpError{Op: "プロセス起動", Err: ctx.Err()}
	case <-time.After(launchProbeWait):
	}

	s.cmd = cmd
	s.exited = exited
	return nil
}

// Stop はプロセスを段階的に終了させる
//  1. SIGTERMを送り、猶予期間内の終了を待つ
//  2. 生きていればSIGKILLを送り、より短い猶予期間を待つ
//  3. それでも生きていれば名前一致の掃討にフォールバックし、回復可能な操作エラーとして報告する
//
// どの経路を通っても追跡状態は必ずクリアされる
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}

	cmd := s.cmd
	exited := s.exited
	defer func() {
		s.cmd = nil
		s.exited = nil
	}()

	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-exited:
		return nil
	case <-time.After(s.termGrace):
	}

	_ = cmd.Process.Kill()
	select {
	case <-exited:
		return nil
	case <-time.After(s.killGrace):
	}

	// 最終手段: 名前一致で全プロセスを掃討する
	if err := exec.Command("pkill", "-9", "-f", s.processName).Run(); err != nil {
		return &OpError{Op: "プロセス停止", Err: fmt.Errorf("名前一致の掃討にも失敗しました (%s): %w", s.processName, err)}
	}
	return &OpError{Op: "プロセス停止", Err: errSweepFallback}
}

// IsRunning はプロセスハンドルを追跡中かどうかを返す
// OSプロセスが実際に生きているかは保証しない（確実性が必要ならStopの検証に頼ること）
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// MockSupervisor はテスト用のモックProcessSupervisor実装
type MockSupervisor struct {
	mu        sync.Mutex
	running   bool
	startErr  error
	stopErr   error
	StartCnt  int
	StopCnt   int
	TornDowns int // 実際に停止まで到達した回数
}

// NewMockSupervisor は新しいMockSupervisorを作成する
func NewMockSupervisor() *MockSupervisor {
	return &MockSupervisor{}
}

// Start はモックプロセスを起動する
func (m *MockSupervisor) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartCnt++
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	return nil
}

// Stop はモックプロセスを停止する
func (m *MockSupervisor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StopCnt++
	if m.running {
		m.TornDowns++
	}
	m.running = false
	return m.stopErr
}

// IsRunning はモックプロセスの追跡状態を返す
func (m *MockSupervisor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// SetStartError はテスト用にStart失敗を設定する
func (m *MockSupervisor) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// SetStopError はテスト用にStop失敗を設定する
func (m *MockSupervisor) SetStopError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopErr = err
}
