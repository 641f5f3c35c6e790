package stream

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Session は配信を所有している実行コンテキストを表す
// 強制プリエンプション時はこのコンテキストがキャンセルされ、
// 所有者自身がStop経路を通って後始末する
type Session struct {
	ID     string
	ctx    context.Context
	cancel context.CancelFunc
}

// Context はセッションのコンテキストを返す
// 会議開始によるプリエンプションでキャンセルされる
func (s *Session) Context() context.Context {
	return s.ctx
}

// Done はプリエンプション通知用のチャンネルを返す
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// streamState はArbitratorが単独で所有する状態
// 必ずArbitratorのロックを保持した状態でのみ読み書きする
type streamState struct {
	viewerCount   int      // 0または1（単一視聴者ポリシー）
	meetingActive bool     // trueのときviewerCountは必ず0
	owner         *Session // 配信を所有する実行コンテキスト（なければnil）
}

// Arbitrator は配信アクセスの排他制御を担う
// 「視聴者は常に1人まで・会議中は配信不可」を単一ロック下の状態遷移で強制する
// ロックは状態遷移と冪等なSupervisor/Pipe起動・停止の呼び出しの間だけ保持し、
// フレーム転送中には決して保持しない
type Arbitrator struct {
	supervisor ProcessSupervisor
	pipe       ChannelManager

	mu    sync.Mutex
	state streamState
}

// NewArbitrator は新しいArbitratorを作成する
func NewArbitrator(supervisor ProcessSupervisor, pipe ChannelManager) *Arbitrator {
	return &Arbitrator{
		supervisor: supervisor,
		pipe:       pipe,
	}
}

// RequestStart は配信開始を要求する
// 会議中はErrMeetingActive、既に視聴者がいる場合はErrStreamBusyで拒否する
// 許可された場合はSupervisorとパイプを起動し、呼び出し元をオーナーとして記録する
func (a *Arbitrator) RequestStart(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.meetingActive {
		return nil, ErrMeetingActive
	}
	if a.state.viewerCount >= 1 {
		return nil, ErrStreamBusy
	}

	if err := a.supervisor.Start(ctx); err != nil {
		return nil, err
	}
	if err := a.pipe.EnsureOpen(); err != nil {
		// パイプを開けなければプロセスも戻す
		if stopErr := a.supervisor.Stop(); stopErr != nil {
			log.Printf("パイプオープン失敗後のプロセス停止でエラー: %v", stopErr)
		}
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	session := &Session{
		ID:     uuid.New().String(),
		ctx:    sessCtx,
		cancel: cancel,
	}

	a.state.viewerCount = 1
	a.state.owner = session

	return session, nil
}

// RequestStop は配信停止を要求する
// 視聴者数が0になったときだけSupervisorとパイプを閉じる
// 既に停止済みでも安全に呼べる（減算は0で止まり、後始末は冪等）
// 戻り値は残りの視聴者数
func (a *Arbitrator) RequestStop() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.viewerCount == 0 {
		return 0, nil
	}

	a.state.viewerCount--
	if a.state.viewerCount > 0 {
		return a.state.viewerCount, nil
	}

	// 最後の視聴者が抜けたのでリソースを畳む
	if a.state.owner != nil {
		a.state.owner.cancel()
		a.state.owner = nil
	}

	var errs []error
	if err := a.pipe.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.supervisor.Stop(); err != nil {
		errs = append(errs, err)
	}

	return 0, errors.Join(errs...)
}

// ForcePreempt は会議開始による強制プリエンプションを実行する
// 会議フラグを立て、オーナーがいればそのコンテキストをキャンセルする
// リソースの直接的な後始末はしない（オーナー自身がStop経路で畳むことで、
// 後始末を実行する主体が常に1つであることを保証する）
func (a *Arbitrator) ForcePreempt(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.meetingActive = true

	if a.state.owner != nil {
		log.Printf("配信を強制プリエンプションします: %s (セッション %s)", reason, a.state.owner.ID)
		a.state.owner.cancel()
	}
}

// ReleaseMeeting は会議フラグを解除する
// 配信は自動では再開されず、新しい視聴者のリクエストが必要になる
func (a *Arbitrator) ReleaseMeeting() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.meetingActive = false
}

// ViewerCount は現在の視聴者数を返す
func (a *Arbitrator) ViewerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.viewerCount
}

// MeetingActive は会議中かどうかを返す
func (a *Arbitrator) MeetingActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.meetingActive
}
