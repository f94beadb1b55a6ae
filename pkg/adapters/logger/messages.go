package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Experiment level messages (info)
		"Starting experiment: %d strategies": "実験を開始します: %d 戦略",
		"Sample count %d: %d strategies":     "サンプル数 %d: %d 戦略",
		"Strategy %d of %d failed: %v":       "戦略 %d/%d が失敗しました: %v",
		"Interrupted, shutting down...":      "中断されました。シャットダウン中...",

		// Compilation and materialization
		"Compiled %d steps into %d nodes":          "%d ステップを %d ノードにコンパイルしました",
		"Writing %d shards to %s (%s)":             "%d シャードを %s に書き込み中 (%s)",
		"Wrote %d records":                         "%d レコードを書き込みました",
		"Materialized %d records (%d bytes) in %s": "%d レコード (%d バイト) を %s で生成しました",
		"Could not remove shards in %s: %v":        "%s のシャードを削除できませんでした: %v",

		// Profiling
		"Profiling strategy %s":                     "戦略 %s を計測中",
		"Run %d: %.1f samples/s online, %s offline": "実行 %d: オンライン %.1f サンプル/秒, オフライン %s",
		"Run finished: #%d":                         "実行完了: #%d",
		"Could not drop caches: %v":                 "キャッシュを破棄できませんでした: %v",

		// Telemetry
		"Telemetry disabled: %v":                     "テレメトリを無効にしました: %v",
		"Telemetry sampler failed to start: %v":      "テレメトリの記録を開始できませんでした: %v",
		"Telemetry sampler did not stop cleanly: %v": "テレメトリの記録が正常に停止しませんでした: %v",
		"Telemetry disabled for run %d":              "実行 %d のテレメトリは無効です",
		"Telemetry could not be loaded: %v":          "テレメトリを読み込めませんでした: %v",
		"Telemetry of run %d is unusable: %v":        "実行 %d のテレメトリは使用できません: %v",

		// Statistics
		"Strategy %s": "戦略 %s",
		"  - ueid = %s, split = %s, created = %s":                                  "  - ueid = %s, 分割 = %s, 作成 = %s",
		"  - shards = %d, threads = %d, compression = %s, storage = %s":            "  - シャード = %d, スレッド = %d, 圧縮 = %s, ストレージ = %s",
		"  - system cache = %v, application cache = %v, batch = %d, prefetch = %d": "  - システムキャッシュ = %v, アプリケーションキャッシュ = %v, バッチ = %d, 先読み = %d",
		"  - runs = %d of %d":    "  - 実行 = %d/%d",
		"  - %s = %.3f +/- %.2f": "  - %s = %.3f +/- %.2f",

		// Export
		"No runs recorded, nothing to export": "記録された実行がないため、出力しません",
		"Exported runs to %s":                 "実行結果を %s に出力しました",
		"Report saved to %s":                  "レポートを %s に保存しました",
		"Chart saved to %s":                   "グラフを %s に保存しました",
		"Rank %d: %s (%.3f)":                  "順位 %d: %s (%.3f)",
	})
}
