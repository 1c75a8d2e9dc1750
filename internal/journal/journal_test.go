package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("os.Open(%s) failed: %v", path, err)
	}
	defer f.Close()
	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("json.Unmarshal(%q) failed: %v", sc.Text(), err)
		}
		out = append(out, rec)
	}
	return out
}

func TestPublishWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, "sess", 8, 1)
	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return day }

	if err := w.PublishJSON("state", map[string]string{"symbol": "BTCUSD"}); err != nil {
		t.Fatalf("PublishJSON() = %v", err)
	}
	day = day.Add(2 * time.Minute)
	if err := w.PublishJSON("state", map[string]string{"symbol": "ETHUSD"}); err != nil {
		t.Fatalf("PublishJSON() = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	first := readRecords(t, filepath.Join(dir, "2026-03-01", "sess.jsonl"))
	if len(first) != 1 || first[0].Topic != "state" || string(first[0].Data) != `{"symbol":"BTCUSD"}` {
		t.Fatalf("first day records = %+v", first)
	}
	second := readRecords(t, filepath.Join(dir, "2026-03-02", "sess.jsonl"))
	if len(second) != 1 || string(second[0].Data) != `{"symbol":"ETHUSD"}` {
		t.Fatalf("second day records = %+v", second)
	}
}

func TestPublishAfterClose(t *testing.T) {
	w := New(t.TempDir(), "", 1, 1)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
	if err := w.PublishJSON("state", 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("PublishJSON() after close = %v; want ErrClosed", err)
	}
}

func TestPublishRejectsUnmarshalable(t *testing.T) {
	w := New(t.TempDir(), "x", 1, 1)
	defer w.Close()
	if err := w.PublishJSON("state", make(chan int)); err == nil {
		t.Fatalf("PublishJSON(chan) = nil; want error")
	}
}
