// Package main provides localization for the shardbench CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Strategies": "戦略",
		"Runs":       "実行",
		"Profiling":  "計測",
		"Output":     "出力先",
		"Logging":    "ログ",

		// Commands
		"Benchmark where to split a preprocessing pipeline into offline and online phases": "前処理パイプラインのオフライン/オンライン分割位置をベンチマーク",
		"Profile every strategy of an experiment":                                          "実験のすべての戦略を計測",
		"Summarize and rank a previously exported runs CSV":                                "出力済みの実行結果CSVを集計し順位付け",
		"Show version information":                                                         "バージョン情報を表示",
		"shardbench version %s":                                                            "shardbench バージョン %s",

		// Run flags
		"Pipeline catalog (synthetic-tensor, synthetic-image)":  "パイプラインカタログ (synthetic-tensor, synthetic-image)",
		"Split positions, 0 is fully online":                    "分割位置 (0 は完全オンライン)",
		"Shard counts":                                          "シャード数",
		"Thread counts":                                         "スレッド数",
		"Pair shard and thread counts instead of crossing them": "シャード数とスレッド数を組み合わせず対にする",
		"Prefix of shard directories":                           "シャードディレクトリの接頭辞",
		"Do not fuse adjacent element transforms":               "隣接する要素変換を融合しない",
		"Sample counts":                                         "サンプル数",
		"Runs per strategy":                                     "戦略ごとの実行回数",
		"Materialize and drop caches only before the first run": "最初の実行前にのみ生成とキャッシュ破棄を行う",
		"Cache elements in memory and time the second pass":     "要素をメモリにキャッシュし2回目を計測",
		"Online batch size, 0 disables batching":                "オンラインのバッチサイズ (0 で無効)",
		"Batches to prefetch":                                   "先読みするバッチ数",
		"Pause after each run before the next one":              "各実行後、次の実行までの待機時間",
		"Abort a run that takes longer, 0 disables":             "これより長い実行を中止 (0 で無効)",
		"Kernel drop_caches control file":                       "カーネルの drop_caches 制御ファイル",
		"Also drop dentries and inodes":                         "dentry と inode も破棄",
		"Path to dstat (falls back to DSTAT_PATH, then PATH)":   "dstat のパス (未指定時は DSTAT_PATH、次に PATH)",
		"Do not record telemetry":                               "テレメトリを記録しない",
		"Directory for exported results":                        "結果の出力ディレクトリ",
		"Prefix of exported file names":                         "出力ファイル名の接頭辞",
		"SQLite database receiving all rows":                    "全行を保存する SQLite データベース",
		"PNG chart of throughput per strategy":                  "戦略ごとのスループットの PNG グラフ",
		"Suppress all log output":                               "すべてのログ出力を抑制",

		// Summarize flags
		"Rank weight of offline preprocessing time":        "オフライン前処理時間の順位付け重み",
		"Rank weight of storage consumption":               "ストレージ消費量の順位付け重み",
		"Rank weight of online throughput":                 "オンラインスループットの順位付け重み",
		"Extrapolate to a dataset of this size in GB":      "このサイズ (GB) のデータセットに外挿",
		"Size of one sample in KB, used for extrapolation": "外挿に使う1サンプルのサイズ (KB)",
		"Confidence level of throughput intervals":         "スループット区間の信頼水準",
		"Report path (defaults to the CSV name with .md)":  "レポートのパス (既定は CSV 名の .md)",
		"Also write the runs in Go benchmark format":       "実行結果を Go ベンチマーク形式でも出力",

		// Errors
		"Configuration error: %v": "設定エラー: %v",
		"A runs CSV is required":  "実行結果 CSV を指定してください",
	})
}
