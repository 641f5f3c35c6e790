package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mihari/internal/config"
	"mihari/internal/metrics"
)

// Streamer はライブストリームサブシステムの窓口
// 実体はstream.Livestreamが担う
type Streamer interface {
	// Start は配信セッションの開始を要求する
	Start(ctx context.Context) error

	// Stop は配信セッションを終了し、残りの視聴者数を返す
	Stop() (int, error)

	// NextFrame は次の完全なフレームを返す（まだなければ nil, nil）
	NextFrame() ([]byte, error)

	// IsActive は配信中かどうかを返す
	IsActive() bool

	// Done はプリエンプション通知用のチャンネルを返す
	Done() <-chan struct{}
}

// Meeting は会議セッションの窓口
type Meeting interface {
	// Start は会議を開始する（配信は強制プリエンプションされる）
	Start(ctx context.Context, url string) error

	// Stop は会議を終了する
	Stop() error

	// InMeeting は会議中かどうかを返す
	InMeeting() bool
}

// Display はディスプレイ電源制御の窓口
type Display interface {
	// PowerOn はディスプレイの電源を入れる
	PowerOn(ctx context.Context) error

	// PowerOff はディスプレイの電源を切る
	PowerOff(ctx context.Context) error
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	engine     *gin.Engine
	httpServer *http.Server

	streamer Streamer
	meeting  Meeting
	display  Display
	metrics  *metrics.Metrics
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, streamer Streamer, meeting Meeting, display Display, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		config:   cfg,
		engine:   engine,
		streamer: streamer,
		meeting:  meeting,
		display:  display,
		metrics:  m,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// ヘルスチェックエンドポイント
	s.engine.GET("/health", s.handleHealth)

	// APIエンドポイント
	s.engine.GET("/api/status", s.handleStatus)
	s.engine.GET("/api/stream", s.handleStream)
	s.engine.POST("/api/meeting/start", s.handleMeetingStart)
	s.engine.POST("/api/meeting/stop", s.handleMeetingStop)
	s.engine.POST("/api/display/power", s.handleDisplayPower)

	// Prometheusメトリクス
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ルートハンドラ（簡単な確認用）
	s.engine.GET("/", s.handleRoot)
}

// Start はサーバーを起動する
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}
