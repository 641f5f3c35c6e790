// Package main はMihariサーバーの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"mihari/internal/config"
	"mihari/internal/display"
	"mihari/internal/meeting"
	"mihari/internal/metrics"
	"mihari/internal/server"
	"mihari/internal/stream"
)

func main() {
	// コマンドラインオプション
	var (
		configPath = flag.String("config", "", "設定ファイルのパス（YAML）")
		host       = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port       = flag.Int("port", 0, "サーバーのポート (デフォルト: 8080)")
		device     = flag.String("device", "", "カメラデバイス (デフォルト: /dev/video0)")
		help       = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Mihari")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  mihari [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *device != "" {
		cfg.Stream.Device = *device
	}

	// 長寿命のコンポーネントを一度だけ構築して参照で渡す
	supervisor := stream.NewFFmpegSupervisor(
		cfg.Stream.Device,
		cfg.Stream.PipePath,
		cfg.Stream.Width,
		cfg.Stream.Height,
		cfg.Stream.FPS,
		cfg.Stream.TermGrace,
		cfg.Stream.KillGrace,
	)
	pipe := stream.NewPipeManager(cfg.Stream.PipePath)
	arbitrator := stream.NewArbitrator(supervisor, pipe)
	extractor := stream.NewExtractor(pipe, cfg.Stream.ReadChunkSize, cfg.Stream.MaxBufferSize)
	livestream := stream.NewLivestream(arbitrator, extractor, cfg.Stream.PollTimeout)

	meetingSvc := meeting.NewService(arbitrator, cfg.Meeting.Browser)
	displayDrv := display.NewDriver(cfg.Display.Command)
	m := metrics.New()

	// サーバーを作成
	srv := server.New(cfg, livestream, meetingSvc, displayDrv, m)

	// コンテキストを作成
	ctx := context.Background()

	// サーバーを起動
	log.Printf("Mihari サーバーを起動します: %s", cfg.ServerAddress())
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}
