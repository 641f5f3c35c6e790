package stream

import (
	"context"
	"testing"
	"time"
)

func TestSupervisor_StartStop(t *testing.T) {
	ctx := context.Background()
	sup := NewCommandSupervisor("sleep", []string{"30"}, "mihari-test-sleep", 2*time.Second, time.Second)

	if sup.IsRunning() {
		t.Fatal("Expected not running initially")
	}

	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sup.IsRunning() {
		t.Fatal("Expected running after start")
	}

	// 2回目のStartは何もしない（冪等）
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	// sleepはSIGTERMで素直に終了する
	if err := sup.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if sup.IsRunning() {
		t.Error("Expected no tracked process after stop")
	}
}

func TestSupervisor_StopWhenNotRunning(t *testing.T) {
	sup := NewCommandSupervisor("sleep", []string{"30"}, "mihari-test-sleep", time.Second, time.Second)

	// 起動していない状態でのStopは安全
	if err := sup.Stop(); err != nil {
		t.Fatalf("Stop without start failed: %v", err)
	}
	if err := sup.Stop(); err != nil {
		t.Fatalf("Second stop failed: %v", err)
	}
}

func TestSupervisor_EscalatesToKill(t *testing.T) {
	ctx := context.Background()

	// SIGTERMを無視するプロセスを起動する
	script := `trap "" TERM; sleep 30`
	sup := NewCommandSupervisor("sh", []string{"-c", script}, "mihari-test-ignore-term", 500*time.Millisecond, 2*time.Second)

	if err := sup.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 猶予期間内にSIGTERMが効かず、SIGKILLへのエスカレーションで決着する
	start := time.Now()
	if err := sup.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed < 500*time.Millisecond {
		t.Errorf("Stop returned before the SIGTERM grace elapsed: %v", elapsed)
	}
	if elapsed > 4*time.Second {
		t.Errorf("Stop took too long: %v", elapsed)
	}
	if sup.IsRunning() {
		t.Error("Expected no tracked process after escalated stop")
	}
}

func TestSupervisor_LaunchFailure(t *testing.T) {
	ctx := context.Background()

	// 起動直後に終了するプロセスは起動失敗として扱う
	sup := NewCommandSupervisor("false", nil, "mihari-test-false", time.Second, time.Second)

	err := sup.Start(ctx)
	if err == nil {
		t.Fatal("Expected launch failure")
	}
	if !IsOpError(err) {
		t.Errorf("Expected OpError, got %T: %v", err, err)
	}

	// 中途半端なハンドルは残らない
	if sup.IsRunning() {
		t.Error("Expected no tracked process after launch failure")
	}
}

func TestSupervisor_CommandNotFound(t *testing.T) {
	ctx := context.Background()
	sup := NewCommandSupervisor("mihari-no-such-command", nil, "mihari-no-such-command", time.Second, time.Second)

	err := sup.Start(ctx)
	if err == nil {
		t.Fatal("Expected error for missing command")
	}
	if !IsConfigError(err) {
		t.Errorf("Expected ConfigError, got %T: %v", err, err)
	}
	if sup.IsRunning() {
		t.Error("Expected no tracked process")
	}
}

func TestFFmpegSupervisor_Arguments(t *testing.T) {
	sup := NewFFmpegSupervisor("/dev/video0", "/tmp/stream.mjpeg", 640, 480, 24, 5*time.Second, 2*time.Second)

	want := []string{
		"-f", "v4l2",
		"-video_size", "640x480",
		"-r", "24",
		"-i", "/dev/video0",
		"-an",
		"-f", "mjpeg",
		"-y", "/tmp/stream.mjpeg",
	}
	if len(sup.args) != len(want) {
		t.Fatalf("Argument count mismatch: got %d, want %d", len(sup.args), len(want))
	}
	for i := range want {
		if sup.args[i] != want[i] {
			t.Errorf("Argument %d mismatch: got %s, want %s", i, sup.args[i], want[i])
		}
	}
	if sup.command != "ffmpeg" {
		t.Errorf("Expected ffmpeg command, got %s", sup.command)
	}
}
