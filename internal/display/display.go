// Package display はキオスクのディスプレイ電源制御を担う
// 共有状態を持たない単純なリクエスト/レスポンス型のドライバー
package display

import (
	"context"
	"fmt"
	"os/exec"
)

// Driver はディスプレイ電源のオン・オフを実行する
type Driver struct {
	command string // 電源制御コマンド（通常はxset）
}

// NewDriver は新しいDriverを作成する
// commandが空の場合はxsetを使う
func NewDriver(command string) *Driver {
	if command == "" {
		command = "xset"
	}
	return &Driver{command: command}
}

// PowerOn はディスプレイの電源を入れる
func (d *Driver) PowerOn(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.command, "dpms", "force", "on")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ディスプレイの電源オンに失敗: %w", err)
	}
	return nil
}

// PowerOff はディスプレイの電源を切る
func (d *Driver) PowerOff(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, d.command, "dpms", "force", "off")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ディスプレイの電源オフに失敗: %w", err)
	}
	return nil
}
