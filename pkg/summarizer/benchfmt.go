package summarizer

import (
	"fmt"
	"io"

	"golang.org/x/perf/benchfmt"

	"github.com/user/shardbench/pkg/ports"
)

// WriteBenchfmt writes the run table in the Go benchmark format, one
// result per run, so that runs can be compared with benchstat. Storage
// and compression become file configuration keys.
func WriteBenchfmt(w io.Writer, runs ports.Table) error {
	a, err := newAccessor(runs, ColSplitName, ColShardCount, ColThreadCount, ColSampleCount,
		ColOfflineTime, ColOnlineTime, ColShardSize, ColThroughput, ColStorage, ColCompression)
	if err != nil {
		return err
	}

	bw := benchfmt.NewWriter(w)
	for i := range runs.Rows {
		res := &benchfmt.Result{
			Config: []benchfmt.Config{
				{Key: "storage", Value: []byte(a.text(i, ColStorage)), File: true},
				{Key: "compression", Value: []byte(a.text(i, ColCompression)), File: true},
			},
			Name: benchfmt.Name(fmt.Sprintf("Strategy/split=%s/shards=%d/threads=%d/samples=%d",
				a.text(i, ColSplitName), a.int(i, ColShardCount), a.int(i, ColThreadCount), a.int(i, ColSampleCount))),
			Iters: int(a.int(i, ColSampleCount)),
			Values: []benchfmt.Value{
				{Value: a.float(i, ColOnlineTime), Unit: "online-sec"},
				{Value: a.float(i, ColOfflineTime), Unit: "offline-sec"},
				{Value: a.float(i, ColShardSize) * 1000 * 1000, Unit: "shard-B"},
				{Value: a.float(i, ColThroughput), Unit: "samples/sec"},
			},
		}
		if err := bw.Write(res); err != nil {
			return err
		}
	}
	return nil
}
