package stream

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func newTestLivestream(frames ...[]byte) (*Livestream, *Arbitrator, *MockFrameReader) {
	arb, _, _ := newTestArbitrator()
	reader := NewMockFrameReader(frames...)
	return NewLivestream(arb, reader, 10*time.Millisecond), arb, reader
}

func TestLivestream_StartNextFrameStop(t *testing.T) {
	ctx := context.Background()
	frame := buildFrame([]byte("hello"))
	live, _, reader := newTestLivestream(frame)

	if live.IsActive() {
		t.Fatal("Expected inactive before start")
	}

	if err := live.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !live.IsActive() {
		t.Fatal("Expected active after start")
	}

	// セッション開始時にバッファがリセットされる
	if reader.ResetCnt != 1 {
		t.Errorf("Expected 1 reset, got %d", reader.ResetCnt)
	}

	got, err := live.NextFrame()
	if err != nil {
		t.Fatalf("NextFrame failed: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("Frame mismatch: got %v, want %v", got, frame)
	}

	// フレームが尽きたら「まだない」が返る
	got, err = live.NextFrame()
	if err != nil {
		t.Fatalf("NextFrame failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected no frame, got %d bytes", len(got))
	}

	remaining, err := live.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining viewers, got %d", remaining)
	}
	if live.IsActive() {
		t.Error("Expected inactive after stop")
	}
}

func TestLivestream_SecondViewerRejected(t *testing.T) {
	ctx := context.Background()
	live, _, _ := newTestLivestream()

	if err := live.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _, _ = live.Stop() }()

	err := live.Start(ctx)
	if !errors.Is(err, ErrStreamBusy) {
		t.Fatalf("Expected ErrStreamBusy, got %v", err)
	}
}

func TestLivestream_PreemptionObservableViaDone(t *testing.T) {
	ctx := context.Background()
	live, arb, _ := newTestLivestream()

	// セッションがないうちはdoneチャンネルもない
	if live.Done() != nil {
		t.Error("Expected nil done channel before start")
	}

	if err := live.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := live.Done()
	if done == nil {
		t.Fatal("Expected done channel after start")
	}

	// 会議開始でオーナーに非同期キャンセルが届く
	arb.ForcePreempt("会議開始")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Expected done channel to fire on preemption")
	}

	// オーナーが自分のStop経路で畳むと全リソースが解放される
	remaining, err := live.Stop()
	if err != nil {
		t.Fatalf("Stop after preemption failed: %v", err)
	}
	if remaining != 0 {
		t.Errorf("Expected 0 remaining viewers, got %d", remaining)
	}
	if arb.ViewerCount() != 0 {
		t.Errorf("Expected viewer count 0, got %d", arb.ViewerCount())
	}
}

func TestLivestream_StopTwice(t *testing.T) {
	ctx := context.Background()
	live, _, _ := newTestLivestream()

	if err := live.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := live.Stop(); err != nil {
		t.Fatalf("First stop failed: %v", err)
	}
	if _, err := live.Stop(); err != nil {
		t.Fatalf("Second stop failed: %v", err)
	}
}

func TestLivestream_ReadErrorPropagates(t *testing.T) {
	ctx := context.Background()
	live, _, reader := newTestLivestream()

	if err := live.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _, _ = live.Stop() }()

	reader.SetReadError(&OpError{Op: "フレーム読み出し", Err: errors.New("mock failure")})

	_, err := live.NextFrame()
	if err == nil {
		t.Fatal("Expected read error to propagate")
	}
	if !IsOpError(err) {
		t.Errorf("Expected OpError, got %T: %v", err, err)
	}
}
