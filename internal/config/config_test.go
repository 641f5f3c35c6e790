package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestConfigLoadDefaults はデフォルト設定の読み込みをテストする
func TestConfigLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg == nil {
		t.Fatal("設定がnilです")
	}

	// サーバー設定の検証
	if cfg.Server.Host == "" {
		t.Error("サーバーホストが設定されていません")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		t.Errorf("無効なポート番号: %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout <= 0 {
		t.Error("読み込みタイムアウトが設定されていません")
	}
	// WriteTimeout は 0（無効）でも正常
	if cfg.Server.WriteTimeout < 0 {
		t.Error("書き込みタイムアウトが負の値です")
	}

	// ストリーム設定の検証
	if cfg.Stream.Device != "/dev/video0" {
		t.Errorf("デフォルトのカメラデバイスが不正: %s", cfg.Stream.Device)
	}
	if cfg.Stream.Width != 640 || cfg.Stream.Height != 480 {
		t.Errorf("デフォルトの解像度が不正: %dx%d", cfg.Stream.Width, cfg.Stream.Height)
	}
	if cfg.Stream.FPS != 24 {
		t.Errorf("デフォルトのFPSが不正: %d", cfg.Stream.FPS)
	}
	if cfg.Stream.PipePath == "" {
		t.Error("FIFOパスが設定されていません")
	}
	if cfg.Stream.MaxBufferSize != 2*1024*1024 {
		t.Errorf("デフォルトのバッファ上限が不正: %d", cfg.Stream.MaxBufferSize)
	}
	if cfg.Stream.TermGrace != 5*time.Second {
		t.Errorf("デフォルトのSIGTERM猶予が不正: %v", cfg.Stream.TermGrace)
	}
	if cfg.Stream.KillGrace != 2*time.Second {
		t.Errorf("デフォルトのSIGKILL猶予が不正: %v", cfg.Stream.KillGrace)
	}
}

// TestConfigLoadFromFile はYAMLファイルからの読み込みをテストする
func TestConfigLoadFromFile(t *testing.T) {
	yamlContent := `
server:
  host: "127.0.0.1"
  port: 9090
stream:
  device: "/dev/video2"
  fps: 30
meeting:
  url: "https://meet.example.com/room"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("テスト用設定ファイルの作成に失敗: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// ファイルの値が反映されている
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("ホストが不正: %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("ポートが不正: %d", cfg.Server.Port)
	}
	if cfg.Stream.Device != "/dev/video2" {
		t.Errorf("デバイスが不正: %s", cfg.Stream.Device)
	}
	if cfg.Stream.FPS != 30 {
		t.Errorf("FPSが不正: %d", cfg.Stream.FPS)
	}
	if cfg.Meeting.URL != "https://meet.example.com/room" {
		t.Errorf("会議URLが不正: %s", cfg.Meeting.URL)
	}

	// ファイルにないキーはデフォルトのまま
	if cfg.Stream.Width != 640 {
		t.Errorf("幅がデフォルト値ではありません: %d", cfg.Stream.Width)
	}
}

// TestConfigEnvOverride は環境変数による上書きをテストする
func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("SERVER_HOST", "192.168.1.10")
	t.Setenv("PORT", "8888")
	t.Setenv("CAMERA_DEVICE", "/dev/video1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	if cfg.Server.Host != "192.168.1.10" {
		t.Errorf("環境変数のホストが反映されていません: %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8888 {
		t.Errorf("環境変数のポートが反映されていません: %d", cfg.Server.Port)
	}
	if cfg.Stream.Device != "/dev/video1" {
		t.Errorf("環境変数のデバイスが反映されていません: %s", cfg.Stream.Device)
	}
}

// TestConfigLoadMissingFile は存在しないファイルの読み込みをテストする
func TestConfigLoadMissingFile(t *testing.T) {
	_, err := Load("/no/such/config.yaml")
	if err == nil {
		t.Fatal("存在しないファイルでエラーになりませんでした")
	}
}

// TestConfigValidation は設定の検証をテストする
func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("設定の読み込みに失敗しました: %v", err)
		}
		return cfg
	}

	testCases := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{"正常な設定", func(*Config) {}, false},
		{"無効なポート番号（0）", func(c *Config) { c.Server.Port = 0 }, true},
		{"無効なポート番号（範囲外）", func(c *Config) { c.Server.Port = 70000 }, true},
		{"デバイス未指定", func(c *Config) { c.Stream.Device = "" }, true},
		{"FIFOパス未指定", func(c *Config) { c.Stream.PipePath = "" }, true},
		{"無効なFPS", func(c *Config) { c.Stream.FPS = 0 }, true},
		{"無効な解像度", func(c *Config) { c.Stream.Width = -1 }, true},
		{"無効なバッファ上限", func(c *Config) { c.Stream.MaxBufferSize = 0 }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.expectErr && err == nil {
				t.Error("エラーが期待されましたが発生しませんでした")
			}
			if !tc.expectErr && err != nil {
				t.Errorf("予期しないエラー: %v", err)
			}
		})
	}
}

// TestServerAddress はリッスンアドレスの生成をテストする
func TestServerAddress(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8080},
	}

	want := "127.0.0.1:8080"
	if got := cfg.ServerAddress(); got != want {
		t.Errorf("アドレスが不正: got %s, want %s", got, want)
	}
}
