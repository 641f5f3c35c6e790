package meeting

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// browserStopGrace はブラウザのSIGTERM後に終了を待つ上限
const browserStopGrace = 3 * time.Second

// Preemptor は配信の強制プリエンプションを受け付けるインターフェース
// 実体はstream.Arbitratorが担う
type Preemptor interface {
	// ForcePreempt は会議フラグを立て、配信中のオーナーにキャンセルを届ける
	ForcePreempt(reason string)

	// ReleaseMeeting は会議フラグを解除する
	ReleaseMeeting()
}

// Service はビデオ会議セッションを管理する
// 会議はカメラを占有するため、開始時に配信を強制プリエンプションし、
// 終了時に会議フラグを解除する
type Service struct {
	preemptor Preemptor
	browser   string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewService は新しいServiceを作成する
func NewService(preemptor Preemptor, browser string) *Service {
	return &Service{
		preemptor: preemptor,
		browser:   browser,
	}
}

// Start は会議セッションを開始する
// まず配信を強制プリエンプションし、その後キオスクモードのブラウザを起動する
// ブラウザの起動に失敗した場合は会議フラグを戻す
func (s *Service) Start(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return fmt.Errorf("会議は既に進行中です")
	}
	if url == "" {
		return fmt.Errorf("会議URLが指定されていません")
	}

	// 配信中の視聴者を強制的に立ち退かせる
	s.preemptor.ForcePreempt("会議開始")

	cmd := exec.Command(s.browser, "--kiosk", url)
	if err := cmd.Start(); err != nil {
		s.preemptor.ReleaseMeeting()
		return fmt.Errorf("会議ブラウザの起動に失敗: %w", err)
	}

	log.Printf("会議を開始しました: %s (pid %d)", url, cmd.Process.Pid)
	s.cmd = cmd
	return nil
}

// Stop は会議セッションを終了する
// ブラウザを終了させてから会議フラグを解除する
// 会議中でない場合は何もしない
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}

	cmd := s.cmd
	s.cmd = nil

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-exited:
	case <-time.After(browserStopGrace):
		_ = cmd.Process.Kill()
		<-exited
	}

	s.preemptor.ReleaseMeeting()
	log.Printf("会議を終了しました")
	return nil
}

// InMeeting は会議中かどうかを返す
func (s *Service) InMeeting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}
