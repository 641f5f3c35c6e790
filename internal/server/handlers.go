package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mihari/internal/stream"
)

// HealthResponse はヘルスチェックのレスポンス
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusResponse はシステム状態のレスポンス
type StatusResponse struct {
	Status    string     `json:"status"`
	Server    ServerInfo `json:"server"`
	Streaming bool       `json:"streaming"`
	Meeting   bool       `json:"meeting"`
	Timestamp time.Time  `json:"timestamp"`
}

// ServerInfo はサーバー情報
type ServerInfo struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ErrorResponse はエラーレスポンス
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MeetingStartRequest は会議開始リクエスト
// URLが空の場合は設定のデフォルトURLを使う
type MeetingStartRequest struct {
	URL string `json:"url"`
}

// DisplayPowerRequest はディスプレイ電源操作リクエスト
type DisplayPowerRequest struct {
	On bool `json:"on"`
}

// handleHealth はヘルスチェックエンドポイントの実装
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// handleStatus はシステム状態取得エンドポイントの実装
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{
		Status: "running",
		Server: ServerInfo{
			Host: s.config.Server.Host,
			Port: s.config.Server.Port,
		},
		Streaming: s.streamer.IsActive(),
		Meeting:   s.meeting.InMeeting(),
		Timestamp: time.Now(),
	})
}

// handleStream はMJPEGストリーミングエンドポイントの実装
// 視聴者の切断・配信エラー・会議によるプリエンプションのいずれでも
// deferで必ずStopが呼ばれる
func (s *Server) handleStream(c *gin.Context) {
	ctx := c.Request.Context()

	if err := s.streamer.Start(ctx); err != nil {
		s.writeStartError(c, err)
		return
	}

	s.metrics.ActiveViewers.Set(1)
	defer func() {
		if _, err := s.streamer.Stop(); err != nil {
			log.Printf("配信停止でエラー: %v", err)
		}
		s.metrics.ActiveViewers.Set(0)
	}()

	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Status(http.StatusOK)

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	clientGone := ctx.Done()
	preempted := s.streamer.Done()

	// ストリーミングループ
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return
		case <-preempted:
			// 会議開始によるプリエンプション
			log.Println("配信がプリエンプションされました")
			return
		default:
		}

		frame, err := s.streamer.NextFrame()
		if err != nil {
			// 操作エラーは配信終了として扱う（視聴者は再試行できる）
			s.metrics.StreamErrors.Inc()
			log.Printf("フレーム取得でエラー: %v", err)
			return
		}

		if frame == nil {
			// フレームがまだない: 中断可能な待機を挟んで再試行
			select {
			case <-clientGone:
				return
			case <-preempted:
				log.Println("配信がプリエンプションされました")
				return
			case <-time.After(s.config.Stream.IdleSleep):
			}
			continue
		}

		// MJPEGフレームを書き込み
		if _, err := writer.Write([]byte("--frame\r\n")); err != nil {
			return
		}
		if _, err := writer.Write([]byte("Content-Type: image/jpeg\r\n\r\n")); err != nil {
			return
		}
		if _, err := writer.Write(frame); err != nil {
			return
		}
		if _, err := writer.Write([]byte("\r\n")); err != nil {
			return
		}

		// バッファをフラッシュ
		flusher.Flush()

		s.metrics.FramesServed.Inc()
		s.metrics.BytesServed.Add(float64(len(frame)))
	}
}

// writeStartError は配信開始の失敗をHTTPステータスに変換する
func (s *Server) writeStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, stream.ErrMeetingActive):
		s.metrics.StartRejected.Inc()
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:     "meeting_in_progress",
			Message:   "会議が進行中のため配信できません",
			Timestamp: time.Now(),
		})
	case errors.Is(err, stream.ErrStreamBusy):
		s.metrics.StartRejected.Inc()
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:     "stream_occupied",
			Message:   "別の視聴者が既に配信中です",
			Timestamp: time.Now(),
		})
	case stream.IsConfigError(err):
		// 設定エラーはオペレーターの介入が必要
		log.Printf("配信開始で設定エラー: %v", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "service_unavailable",
			Message:   "配信サービスを利用できません",
			Timestamp: time.Now(),
		})
	default:
		// 操作エラーは再試行を促す
		log.Printf("配信開始で操作エラー: %v", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:     "stream_start_failed",
			Message:   "配信を開始できませんでした。しばらくしてから再試行してください",
			Timestamp: time.Now(),
		})
	}
}

// handleMeetingStart は会議開始エンドポイントの実装
func (s *Server) handleMeetingStart(c *gin.Context) {
	var req MeetingStartRequest
	_ = c.ShouldBindJSON(&req) // ボディなしも許容する

	url := req.URL
	if url == "" {
		url = s.config.Meeting.URL
	}

	if err := s.meeting.Start(c.Request.Context(), url); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:     "meeting_start_failed",
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	s.metrics.Preemptions.Inc()
	c.JSON(http.StatusOK, gin.H{"status": "meeting_started"})
}

// handleMeetingStop は会議終了エンドポイントの実装
func (s *Server) handleMeetingStop(c *gin.Context) {
	if err := s.meeting.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "meeting_stop_failed",
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "meeting_stopped"})
}

// handleDisplayPower はディスプレイ電源操作エンドポイントの実装
func (s *Server) handleDisplayPower(c *gin.Context) {
	var req DisplayPowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:     "invalid_request",
			Message:   "リクエストボディが不正です",
			Timestamp: time.Now(),
		})
		return
	}

	var err error
	if req.On {
		err = s.display.PowerOn(c.Request.Context())
	} else {
		err = s.display.PowerOff(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "display_power_failed",
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRoot はルートパスのハンドラ
func (s *Server) handleRoot(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <title>Mihari - カメラキオスク</title>
</head>
<body>
    <h1>Mihari カメラキオスク</h1>
    <p>ライブストリーム: <img src="/api/stream" alt="live stream"></p>
    <p>ステータス: <a href="/api/status">/api/status</a></p>
    <p>ヘルスチェック: <a href="/health">/health</a></p>
</body>
</html>`)
}
