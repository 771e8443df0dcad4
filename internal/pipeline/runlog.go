package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/beatforge/beatforge/pkg/logger"
)

// Record is one run-log line: how far into the run it happened, at what
// level, and what.
type Record struct {
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Level          string  `json:"level"`
	Message        string  `json:"message"`
}

// RunLog accumulates the ordered, timestamped narration of one pipeline run.
// Every message is echoed to the process logger and kept for the durable
// per-run file, which is written regardless of the run's outcome.
type RunLog struct {
	start time.Time
	echo  *logger.Logger

	mu      sync.Mutex
	records []Record
}

func NewRunLog(echo *logger.Logger) *RunLog {
	if echo == nil {
		echo = logger.GetLogger()
	}
	return &RunLog{start: time.Now(), echo: echo}
}

func (r *RunLog) add(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.records = append(r.records, Record{
		ElapsedSeconds: time.Since(r.start).Seconds(),
		Level:          level,
		Message:        msg,
	})
	r.mu.Unlock()
}

func (r *RunLog) Infof(format string, args ...any) {
	r.add("INFO", format, args...)
	r.echo.Infof(format, args...)
}

func (r *RunLog) Warnf(format string, args ...any) {
	r.add("WARNING", format, args...)
	r.echo.Warnf(format, args...)
}

func (r *RunLog) Errorf(format string, args ...any) {
	r.add("ERROR", format, args...)
	r.echo.Errorf(format, args...)
}

func (r *RunLog) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Flush writes the records to path as JSON lines, one record per line.
func (r *RunLog) Flush(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating run log: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range r.Records() {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("writing run log: %w", err)
		}
	}
	return f.Close()
}
