// Package journal appends published session state to date-organised JSONL
// files so annotation history survives restarts.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrClosed is returned by PublishJSON after Close.
var ErrClosed = errors.New("journal: closed")

// ErrBufferFull is returned when the write queue is saturated.
var ErrBufferFull = errors.New("journal: buffer full")

// Record is one journal line.
type Record struct {
	Time  time.Time       `json:"time"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// Writer queues records and writes them on a single goroutine. Files live
// under <dir>/<YYYY-MM-DD>/<name>.jsonl and roll over by size.
type Writer struct {
	dir       string
	name      string
	maxSizeMB int
	now       func() time.Time

	writeCh   chan Record
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

// New starts a writer. name defaults to the start time in unix seconds.
func New(dir, name string, bufferSize, maxSizeMB int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	w := &Writer{
		dir:       dir,
		name:      name,
		maxSizeMB: maxSizeMB,
		now:       func() time.Time { return time.Now().UTC() },
		writeCh:   make(chan Record, bufferSize),
		done:      make(chan struct{}),
	}
	if w.name == "" {
		w.name = fmt.Sprintf("%d", w.now().Unix())
	}

	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// PublishJSON queues v for writing. It never blocks.
func (w *Writer) PublishJSON(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("journal: marshal %s: %w", topic, err)
	}
	rec := Record{Time: w.now(), Topic: topic, Data: data}
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.writeCh <- rec:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "topic", topic)
		return ErrBufferFull
	}
}

// Close stops the writer after flushing queued records.
func (w *Writer) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		return w.logger.Close()
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()

	for {
		select {
		case rec := <-w.writeCh:
			w.writeRecord(rec)
		case <-w.done:
			timeout := time.After(5 * time.Second)
			for {
				select {
				case rec := <-w.writeCh:
					w.writeRecord(rec)
				case <-timeout:
					slog.Warn("journal close timeout, some records may be lost", "dir", w.dir)
					return
				default:
					return
				}
			}
		}
	}
}

func (w *Writer) writeRecord(rec Record) {
	line, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal marshal failed", "topic", rec.Topic, "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := rec.Time.Format("2006-01-02")
	if date != w.currentDate || w.logger == nil {
		if err := w.rotateForDate(date); err != nil {
			slog.Error("journal rotate failed", "date", date, "error", err)
			return
		}
	}
	if _, err := w.logger.Write(append(line, '\n')); err != nil {
		slog.Error("journal write failed", "file", w.logger.Filename, "error", err)
	}
}

func (w *Writer) rotateForDate(date string) error {
	if w.logger != nil {
		if err := w.logger.Close(); err != nil {
			slog.Debug("journal close previous file failed", "error", err)
		}
		w.logger = nil
	}

	dir := filepath.Join(w.dir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	w.logger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, w.name+".jsonl"),
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
	}
	w.currentDate = date
	slog.Info("opened journal file", "file", w.logger.Filename)
	return nil
}
