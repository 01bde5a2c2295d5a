package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress while a batch runs. Calls are serialised.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnError(path string, err error)
	OnComplete()
}

// ConsoleProgress draws a one-line progress bar.
type ConsoleProgress struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration

	mu         sync.Mutex
	startTime  time.Time
	lastUpdate time.Time
}

// NewConsoleProgress creates a console progress bar writing to w.
func NewConsoleProgress(w io.Writer, prefix string) *ConsoleProgress {
	return &ConsoleProgress{writer: w, prefix: prefix, width: 40, updateInterval: 100 * time.Millisecond}
}

// WithUpdateInterval sets how frequently the progress bar redraws.
func (c *ConsoleProgress) WithUpdateInterval(d time.Duration) *ConsoleProgress {
	c.updateInterval = d
	return c
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d (0.0%%)\n", c.prefix, total)
}

func (c *ConsoleProgress) OnProgress(current, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now
	if total == 0 {
		return
	}

	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total, float64(current)/float64(total)*100)
	if elapsed := now.Sub(c.startTime); elapsed > 0 && current > 0 {
		status += fmt.Sprintf(" %.1f/s", float64(current)/elapsed.Seconds())
	}
	_, _ = fmt.Fprint(c.writer, status)
}

func (c *ConsoleProgress) OnError(path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sError in %s: %v\n", c.prefix, path, err)
}

func (c *ConsoleProgress) OnComplete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

// LogProgress reports progress through slog every interval images.
type LogProgress struct {
	logger   *slog.Logger
	level    slog.Level
	interval int
	lastLog  int
	start    time.Time
}

// NewLogProgress creates a log-based progress reporter. A nil logger uses slog.Default().
func NewLogProgress(logger *slog.Logger, level slog.Level, interval int) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10
	}
	return &LogProgress{logger: logger, level: level, interval: interval}
}

func (l *LogProgress) OnStart(total int) {
	l.start = time.Now()
	l.lastLog = 0
	l.logger.Log(context.Background(), l.level, "batch started", "total", total)
}

func (l *LogProgress) OnProgress(current, total int) {
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Log(context.Background(), l.level, "batch progress",
		"current", current, "total", total, "elapsed", time.Since(l.start).Round(time.Millisecond))
}

func (l *LogProgress) OnError(path string, err error) {
	l.logger.Warn("batch item failed", "file", path, "error", err)
}

func (l *LogProgress) OnComplete() {
	l.logger.Log(context.Background(), l.level, "batch completed", "duration", time.Since(l.start).Round(time.Millisecond))
}
