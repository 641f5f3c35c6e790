// Package server は、HTTPサーバーとリクエスト処理を管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// MJPEGストリーミング配信、会議・ディスプレイ操作の受け付けを担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - MJPEGストリームのmultipart配信（視聴者切断時の確実な後始末を含む）
//   - 会議の開始・終了リクエストの処理
//   - ディスプレイ電源操作の受け付け
//   - Prometheusメトリクスの公開
//
// 仕様:
//   - ルーティングはgin-gonic/ginを使用
//   - 配信はmultipart/x-mixed-replaceで1フレーム1パート
//   - 排他制御による拒否は409、操作エラーは503として返す
//   - グレースフルシャットダウンに対応
package server
