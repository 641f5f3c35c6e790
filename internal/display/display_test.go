package display

import (
	"context"
	"testing"
)

func TestDriver_PowerOnOff(t *testing.T) {
	ctx := context.Background()

	// テストではxsetの代わりに常に成功するコマンドを使う
	d := NewDriver("true")

	if err := d.PowerOn(ctx); err != nil {
		t.Errorf("PowerOn failed: %v", err)
	}
	if err := d.PowerOff(ctx); err != nil {
		t.Errorf("PowerOff failed: %v", err)
	}
}

func TestDriver_CommandFailure(t *testing.T) {
	ctx := context.Background()
	d := NewDriver("false")

	if err := d.PowerOn(ctx); err == nil {
		t.Error("Expected error from failing command")
	}
	if err := d.PowerOff(ctx); err == nil {
		t.Error("Expected error from failing command")
	}
}

func TestNewDriver_DefaultCommand(t *testing.T) {
	d := NewDriver("")
	if d.command != "xset" {
		t.Errorf("Expected default command xset, got %s", d.command)
	}
}
