package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/garyburd/redigo/redis"

	"jordanella.com/runner-collector/internal/cv"
	"jordanella.com/runner-collector/internal/database"
)

func testGrid(rows ...[]uint8) cv.OccupancyGrid {
	return cv.OccupancyGrid(rows)
}

func newTestRecorder() *Recorder {
	r := NewRecorder("test-session", cv.NewRegion(10, 20, 480, 840), 2)
	r.Append(Sample{Grid: testGrid([]uint8{1, 1}, []uint8{0, 0}, []uint8{0, 0}), Action: 0, PlayerFound: true})
	r.Append(Sample{Grid: testGrid([]uint8{0, 1}, []uint8{1, 0}, []uint8{0, 0}), Action: 1, PlayerFound: true})
	r.Append(Sample{Grid: cv.NewOccupancyGrid(3, 2), Action: 0, GameOver: true})
	return r
}

func TestRecorderAssignsSequence(t *testing.T) {
	r := newTestRecorder()

	if r.Len() != 3 {
		t.Fatalf("Expected 3 samples, got %d", r.Len())
	}
	for i, s := range r.Samples() {
		if s.Seq != i {
			t.Errorf("Sample %d has seq %d", i, s.Seq)
		}
		if s.CapturedAt.IsZero() {
			t.Errorf("Sample %d has no capture time", i)
		}
	}

	ds := r.Dataset(time.Now())
	if ds.Actions() != 1 || ds.Columns != 2 || ds.SessionID != "test-session" {
		t.Errorf("Unexpected dataset %+v", ds)
	}

	// Samples returns a copy
	samples := r.Samples()
	samples[0].Action = 1
	if r.Samples()[0].Action != 0 {
		t.Error("Samples should not alias recorder storage")
	}
}

func TestActionLabel(t *testing.T) {
	if ActionLabel(true) != 1 || ActionLabel(false) != 0 {
		t.Error("Unexpected action labels")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, newTestRecorder().Samples()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header and 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "input,output" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if lines[2] != `"[[0,1],[1,0],[0,0]]",1` {
		t.Errorf("Unexpected row %q", lines[2])
	}
}

func TestCSVSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "data.csv")
	r := newTestRecorder()

	if err := r.Export(context.Background(), NewCSVSink(path)); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	loaded, err := LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV failed: %v", err)
	}
	original := r.Samples()
	if len(loaded) != len(original) {
		t.Fatalf("Expected %d samples, got %d", len(original), len(loaded))
	}
	for i := range loaded {
		if !loaded[i].Grid.Equal(original[i].Grid) || loaded[i].Action != original[i].Action {
			t.Errorf("Sample %d mismatch: got %v/%d", i, loaded[i].Grid, loaded[i].Action)
		}
	}
}

func TestEmptySessionExportsHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	r := NewRecorder("empty", cv.NewRegion(0, 0, 10, 10), 8)

	if err := r.Export(context.Background(), NewCSVSink(path)); err != nil {
		t.Fatalf("Empty export should not fail: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	if string(data) != "input,output\n" {
		t.Errorf("Expected header only, got %q", data)
	}

	samples, err := LoadCSV(path)
	if err != nil || len(samples) != 0 {
		t.Errorf("Expected no samples, got %d, %v", len(samples), err)
	}
}

func TestReadCSVRejectsBadRows(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad header", "a,b\n"},
		{"bad grid", "input,output\n\"[[2]]\",0\n"},
		{"bad action", "input,output\n\"[[1]]\",3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

type failingSink struct{ calls int }

func (s *failingSink) Name() string { return "failing" }

func (s *failingSink) Write(ctx context.Context, ds Dataset) error {
	s.calls++
	return errors.New("disk full")
}

type memorySink struct{ got *Dataset }

func (s *memorySink) Name() string { return "memory" }

func (s *memorySink) Write(ctx context.Context, ds Dataset) error {
	s.got = &ds
	return nil
}

func TestExportContinuesAfterSinkFailure(t *testing.T) {
	failing := &failingSink{}
	mem := &memorySink{}

	err := newTestRecorder().Export(context.Background(), failing, mem)
	if err == nil {
		t.Fatal("Expected export error")
	}

	var exportErr *ExportError
	if !errors.As(err, &exportErr) || exportErr.Sink != "failing" {
		t.Errorf("Expected ExportError for failing sink, got %v", err)
	}
	if failing.calls != 1 {
		t.Errorf("Expected one call to failing sink, got %d", failing.calls)
	}
	if mem.got == nil || len(mem.got.Samples) != 3 {
		t.Error("Memory sink should still receive the dataset")
	}
}

func TestSQLSink(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "samples.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	if err := newTestRecorder().Export(context.Background(), NewSQLSink(db)); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	session, err := db.GetSession("test-session")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.SampleCount != 3 || session.ActionCount != 1 || session.RegionWidth != 480 {
		t.Errorf("Unexpected session row %+v", session)
	}

	rows, err := db.ListSamples("test-session")
	if err != nil {
		t.Fatalf("ListSamples failed: %v", err)
	}
	if rows[1].Grid != "[[0,1],[1,0],[0,0]]" || rows[1].Action != 1 {
		t.Errorf("Unexpected sample row %+v", rows[1])
	}
	if !rows[2].GameOver || rows[2].PlayerFound {
		t.Errorf("Unexpected flags %+v", rows[2])
	}
}

func TestRedisSampleEncoding(t *testing.T) {
	smp := newTestRecorder().Samples()[1]

	data, err := encodeRedisSample("abc", smp)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["session"] != "abc" || decoded["output"] != float64(1) {
		t.Errorf("Unexpected document %s", data)
	}
	if !strings.Contains(string(data), `"input":[[0,1],[1,0],[0,0]]`) {
		t.Errorf("Grid should encode as nested arrays: %s", data)
	}

	sink := NewRedisSink(nil, "runner:samples")
	if sink.ListKey("abc") != "runner:samples:abc" {
		t.Errorf("Unexpected list key %s", sink.ListKey("abc"))
	}
}

func TestRedisSinkLive(t *testing.T) {
	addr := os.Getenv("RUNNER_REDIS_ADDR")
	if addr == "" {
		t.Skip("RUNNER_REDIS_ADDR not set")
	}

	pool := NewRedisPool(addr, 2)
	defer pool.Close()

	r := NewRecorder(fmt.Sprintf("live-%d", time.Now().UnixNano()), cv.NewRegion(0, 0, 1, 1), 2)
	r.Append(Sample{Grid: testGrid([]uint8{1, 0}), Action: 1})
	r.Append(Sample{Grid: testGrid([]uint8{0, 0}), Action: 0})

	sink := NewRedisSink(pool, "runner:test")
	if err := r.Export(context.Background(), sink); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	conn := pool.Get()
	defer conn.Close()
	key := sink.ListKey(r.SessionID())
	defer conn.Do("DEL", key)

	n, err := redis.Int(conn.Do("LLEN", key))
	if err != nil || n != 2 {
		t.Errorf("Expected 2 entries, got %d, %v", n, err)
	}
}
