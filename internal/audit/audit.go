// Package audit records the outcome of every correction decision so that
// runs can be replayed and disputed readings traced back to the evidence
// they were decided on.
//
// Records are written through the [Sink] interface. Sinks for local JSONL
// files, structured logs, and PostgreSQL are provided; [Multi] fans out to
// several at once.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Record is a single audited correction decision. One record is written
// per aggregated risky surface, whether or not the budget let it reach
// the reasoning stage; with verbose auditing enabled, trivially absorbed
// and forbidden-tier tokens get one record each as well.
type Record struct {
	Timestamp time.Time `json:"timestamp"`

	// RunID groups all records of one correction run. It is the trace ID
	// when tracing is active, otherwise a random identifier.
	RunID string `json:"run_id"`

	Surface          string   `json:"surface"`
	Tier             string   `json:"tier"`
	BaselineReadings []string `json:"baseline_readings,omitempty"`
	EngineReadings   []string `json:"engine_readings,omitempty"`
	Verdict          string   `json:"verdict"`
	CorrectedReading string   `json:"corrected_reading,omitempty"`
	Reject           string   `json:"reject,omitempty"`
	Occurrences      int      `json:"occurrences"`
	PatchedAligned   int      `json:"patched_aligned,omitempty"`
	PatchedClipped   int      `json:"patched_clipped,omitempty"`
}

// Sink receives audit records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close(ctx context.Context) error
}

// Nop is a Sink that discards everything.
type Nop struct{}

func (Nop) Write(context.Context, Record) error { return nil }
func (Nop) Close(context.Context) error         { return nil }

// FileSink persists records as append-only JSON lines in a local file,
// one object per line. Thread-safe for concurrent use.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink creates a FileSink that writes to the given path. The file
// is created if it does not exist.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Write appends rec to the file.
func (fs *FileSink) Write(_ context.Context, rec Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("audit: write: %w", err)
	}
	return nil
}

func (fs *FileSink) Close(context.Context) error { return nil }

// SlogSink emits each record as a structured log line at Info level.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Write(ctx context.Context, rec Record) error {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	l.LogAttrs(ctx, slog.LevelInfo, "correction decision",
		slog.String("run_id", rec.RunID),
		slog.String("surface", rec.Surface),
		slog.String("tier", rec.Tier),
		slog.String("verdict", rec.Verdict),
		slog.String("corrected_reading", rec.CorrectedReading),
		slog.String("reject", rec.Reject),
		slog.Int("occurrences", rec.Occurrences),
	)
	return nil
}

func (SlogSink) Close(context.Context) error { return nil }

// Multi fans out each record to every sink, collecting errors.
type Multi []Sink

func (m Multi) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compile-time interface checks.
var (
	_ Sink = Nop{}
	_ Sink = (*FileSink)(nil)
	_ Sink = SlogSink{}
	_ Sink = Multi(nil)
)
