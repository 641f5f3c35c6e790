package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Stream  StreamConfig  `yaml:"stream"`
	Meeting MeetingConfig `yaml:"meeting"`
	Display DisplayConfig `yaml:"display"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト
}

// StreamConfig はライブストリームサブシステムの設定
type StreamConfig struct {
	Device string `yaml:"device"` // カメラデバイスパス（例: /dev/video0）
	Width  int    `yaml:"width"`  // 画像幅
	Height int    `yaml:"height"` // 画像高さ
	FPS    int    `yaml:"fps"`    // フレームレート

	PipePath string `yaml:"pipe_path"` // ffmpegが書き込むFIFOのパス

	ReadChunkSize int `yaml:"read_chunk_size"` // 1回の読み出しで取得する最大バイト数
	MaxBufferSize int `yaml:"max_buffer_size"` // フレームバッファの上限

	PollTimeout time.Duration `yaml:"poll_timeout"` // 読み取り可能待ちの上限
	IdleSleep   time.Duration `yaml:"idle_sleep"`   // フレームがないときの待機時間
	TermGrace   time.Duration `yaml:"term_grace"`   // SIGTERM後の猶予期間
	KillGrace   time.Duration `yaml:"kill_grace"`   // SIGKILL後の猶予期間
}

// MeetingConfig はビデオ会議の設定
type MeetingConfig struct {
	URL     string `yaml:"url"`     // 会議室のURL
	Browser string `yaml:"browser"` // キオスクモードで起動するブラウザ
}

// DisplayConfig はディスプレイ電源制御の設定
type DisplayConfig struct {
	Command string `yaml:"command"` // 電源制御コマンド（デフォルト: xset）
}

// Load は設定を読み込む
// pathが空でなければYAMLファイルを読み、その上に環境変数を上書きする
func Load(path string) (*Config, error) {
	// デフォルト設定を作成
	cfg := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Stream: StreamConfig{
			Device:        "/dev/video0",
			Width:         640,
			Height:        480,
			FPS:           24,
			PipePath:      "/tmp/mihari-stream.mjpeg",
			ReadChunkSize: 4096,
			MaxBufferSize: 2 * 1024 * 1024,
			PollTimeout:   100 * time.Millisecond,
			IdleSleep:     100 * time.Millisecond,
			TermGrace:     5 * time.Second,
			KillGrace:     2 * time.Second,
		},
		Meeting: MeetingConfig{
			Browser: "chromium-browser",
		},
		Display: DisplayConfig{
			Command: "xset",
		},
	}

	// 設定ファイルがあれば読み込む
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	// 環境変数で上書き
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvAsIntOrDefault("PORT", cfg.Server.Port)
	cfg.Stream.Device = getEnvOrDefault("CAMERA_DEVICE", cfg.Stream.Device)
	cfg.Meeting.URL = getEnvOrDefault("MEETING_URL", cfg.Meeting.URL)

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	if c.Stream.Device == "" {
		return fmt.Errorf("カメラデバイスが指定されていません")
	}
	if c.Stream.PipePath == "" {
		return fmt.Errorf("FIFOパスが指定されていません")
	}
	if c.Stream.FPS <= 0 || c.Stream.FPS > 60 {
		return fmt.Errorf("無効なFPS値: %d", c.Stream.FPS)
	}
	if c.Stream.Width <= 0 || c.Stream.Height <= 0 {
		return fmt.Errorf("無効な解像度: %dx%d", c.Stream.Width, c.Stream.Height)
	}
	if c.Stream.MaxBufferSize <= 0 {
		return fmt.Errorf("無効なバッファ上限: %d", c.Stream.MaxBufferSize)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
