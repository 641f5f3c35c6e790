package stream

import (
	"context"
	"sync"
	"time"
)

// DefaultPollTimeout はNextFrameの読み取り可能待ちのデフォルト上限
const DefaultPollTimeout = 100 * time.Millisecond

// Livestream はライブストリームサブシステムの窓口となるファサード
// HTTPレイヤーが触るのはこの型だけで、Supervisor・PipeManager・
// Extractor・Arbitratorの組み合わせ方はここに閉じる
type Livestream struct {
	arbitrator *Arbitrator
	reader     FrameReader
	pollWait   time.Duration

	mu      sync.Mutex
	session *Session
}

// NewLivestream は新しいLivestreamを作成する
// pollWaitに0を渡すとデフォルト値を使う
func NewLivestream(arbitrator *Arbitrator, reader FrameReader, pollWait time.Duration) *Livestream {
	if pollWait <= 0 {
		pollWait = DefaultPollTimeout
	}
	return &Livestream{
		arbitrator: arbitrator,
		reader:     reader,
		pollWait:   pollWait,
	}
}

// Start は配信セッションの開始を要求する
// 会議中・使用中の場合はそれぞれErrMeetingActive・ErrStreamBusyを返す
func (l *Livestream) Start(ctx context.Context) error {
	session, err := l.arbitrator.RequestStart(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.session = session
	l.mu.Unlock()

	// 前セッションの残骸を持ち込まない
	l.reader.Reset()

	return nil
}

// Stop は配信セッションを終了する
// 既に停止済みでも安全に呼べる
// 戻り値は残りの視聴者数
func (l *Livestream) Stop() (int, error) {
	l.mu.Lock()
	l.session = nil
	l.mu.Unlock()

	return l.arbitrator.RequestStop()
}

// NextFrame は次の完全なフレームを返す
// まだ揃っていない場合は (nil, nil) を返す（呼び出し側は少し待って再試行する）
func (l *Livestream) NextFrame() ([]byte, error) {
	return l.reader.Read(l.pollWait)
}

// IsActive は配信中かどうかを返す
func (l *Livestream) IsActive() bool {
	return l.arbitrator.ViewerCount() > 0
}

// Done は現在のセッションのプリエンプション通知チャンネルを返す
// セッションがない場合はnilを返す（selectでは永遠に発火しない）
func (l *Livestream) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.session == nil {
		return nil
	}
	return l.session.Done()
}
