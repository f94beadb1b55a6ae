package telemetry

import (
	"errors"
	"strings"
	"testing"

	"github.com/user/shardbench/pkg/mocks"
)

const dstatCSV = `"Dstat 0.7.4 CSV output"
"Author:","Dag Wieers <dag@wieers.com>",,,,"URL:","http://dag.wieers.com/home-made/dstat/"
"Host:","bench-01",,,,"User:","root"
"Cmdline:","dstat -T -ay -m --vm --fs --lock --output out.csv",,,,"Date:","17 Oct 2026 10:00:00 UTC"

"epoch","dsk/total",,"net/total",,"total cpu usage",,,,,,"system",,"memory usage",,,,"virtual memory",,,,"filesystem",,"file locks",,,
"epoch","read","writ","recv","send","usr","sys","idl","wai","hiq","siq","int","csw","used","buff","cach","free","majpf","minpf","alloc","free","files","inodes","pos","lck","rea","wri"
1791280800.120,2500000,0,1000,2000,10.0,5.0,80.0,5.0,0,0,900,1500,4000000000,123456789,2000000000,8000000000,0,120,52000000,51000000,3200,41000,4,1,2,3
1791280800.950,9999999,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0,0
1791280801.130,0,1000000,0,0,1.5,0.5,98.0,0,0,0,100,200,4000000000,0,0,0,0,0,0,0,0,0,0,0,0,0
1791280803.010,,,,,,,,,,,,,,,,,,,,,,,,,,
`

func TestParse(t *testing.T) {
	records, err := Parse(strings.NewReader(dstatCSV), 2, 500)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3 (duplicate epoch dropped)", len(records))
	}

	r := records[0]
	checks := []struct {
		name      string
		got, want float64
	}{
		{"rel time", r.RelTime, 0},
		{"disk read", r.DiskReadMBs, 2.5},
		{"net send", r.NetSendMBs, 0.002},
		{"cpu usr", r.CPUUser, 10},
		{"cpu wai", r.CPUWait, 5},
		{"interrupts", r.Interrupts, 900},
		{"memory used", r.MemUsedMB, 4000},
		{"memory buffered", r.MemBufferedMB, 123.46},
		{"memory free", r.MemFreeMB, 8000},
		{"vm free", r.VMFreeMB, 51},
		{"vm minor faults", r.VMMinorFaults, 120},
		{"inodes", r.FSInodes, 41000},
		{"lock write", r.LocksWrite, 3},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if r.Run != 2 || r.SampleCount != 500 {
		t.Errorf("run/samples = %d/%d, want 2/500", r.Run, r.SampleCount)
	}

	if records[1].RelTime != 1 || records[1].DiskWriteMBs != 1 {
		t.Errorf("second record = %+v", records[1])
	}
	if records[2].RelTime != 3 || records[2].CPUIdle != 0 {
		t.Errorf("empty cells should parse as zero: %+v", records[2])
	}
}

func TestParse_Truncated(t *testing.T) {
	records, err := Parse(strings.NewReader("\"Dstat 0.7.4 CSV output\"\n"), 0, 10)
	if err != nil || records != nil {
		t.Errorf("Parse() = %v, %v, want no records and no error", records, err)
	}
}

func TestParse_CutOffLastRow(t *testing.T) {
	tests := []struct {
		name string
		tail string
	}{
		{"short row", "1791280804.0,10\n"},
		{"short row without newline", "1791280804.0,10"},
		{"unparsable cell", "1791280805.0,1.2e" + strings.Repeat(",0", 25) + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := Parse(strings.NewReader(dstatCSV+tt.tail), 0, 10)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if len(records) != 3 {
				t.Errorf("got %d records, want 3", len(records))
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no epoch", "a\nb\nc\nd\n\"x\",\"y\"\n\"x\",\"y\"\n1,2\n"},
		{"bad number", "a\nb\nc\nd\n\"epoch\"\n\"epoch\"\nnope\n2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input), 0, 1)
			if !errors.Is(err, ErrMalformedTelemetry) {
				t.Errorf("Parse() error = %v, want ErrMalformedTelemetry", err)
			}
		})
	}
}

func TestParseFileName(t *testing.T) {
	tests := []struct {
		path    string
		run     int
		samples int
		ok      bool
	}{
		{"/shards/x/dstat_run-0_samples-1000.csv", 0, 1000, true},
		{"dstat_run-12_samples-5.csv", 12, 5, true},
		{"dstat_run-a_samples-5.csv", 0, 0, false},
		{"shard-0.tfrecord", 0, 0, false},
	}
	for _, tt := range tests {
		run, samples, ok := ParseFileName(tt.path)
		if run != tt.run || samples != tt.samples || ok != tt.ok {
			t.Errorf("ParseFileName(%q) = %d, %d, %v", tt.path, run, samples, ok)
		}
	}
}

func TestLoadDir(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFile("/d/dstat_run-10_samples-8.csv", []byte(dstatCSV))
	fs.WriteFile("/d/dstat_run-2_samples-8.csv", []byte(dstatCSV))
	fs.WriteFile("/d/dstat_run-3_samples-8.csv", []byte("\"Dstat 0.7.4 CSV output\"\n"))
	fs.WriteFile("/d/dstat_run-4_samples-8.csv", []byte("a\nb\nc\nd\n\"epoch\"\n\"epoch\"\nnope\n2\n"))
	fs.WriteFile("/d/shard-0.tfrecord", []byte("not csv"))

	records, failed, err := LoadDir(fs, "/d")
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(failed) != 1 || failed[0].Run != 4 || !errors.Is(failed[0], ErrMalformedTelemetry) {
		t.Errorf("failed = %v, want run 4 malformed", failed)
	}
	if len(records) != 6 {
		t.Fatalf("got %d records, want 6", len(records))
	}
	if records[0].Run != 2 || records[5].Run != 10 {
		t.Errorf("runs = %d..%d, want 2..10", records[0].Run, records[5].Run)
	}
}
