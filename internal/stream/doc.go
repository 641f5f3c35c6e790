// Package stream は単一カメラのライブストリーム配信コアを担う
//
// # 責務
// - フレーム生成プロセス（ffmpeg）の起動・停止・監視
// - 名前付きパイプ（FIFO）のライフサイクル管理
// - MJPEGバイト列からのフレーム切り出し
// - 「視聴者は常に1人まで・会議中は配信不可」の排他制御
// - 会議開始による強制プリエンプションの伝搬
//
// # 仕様
// - Supervisor: ffmpegプロセスの段階的終了（SIGTERM → SIGKILL → 名前掃討）
// - PipeManager: FIFOの作成・ノンブロッキングオープン・クローズ
// - Extractor: タイムアウト付きポーリング読み出しとJPEGマーカー走査
// - Arbitrator: 単一ロック下の状態遷移とオーナーコンテキストのキャンセル
// - Livestream: HTTPレイヤーが触る唯一の窓口（Start/Stop/NextFrame/IsActive）
// - すべてのブロッキング待機は上限付き（無限待ちは存在しない）
//
// # 前提要件
//   - ffmpeg: カメラ映像のMJPEGエンコードに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package stream
