// Package xlog is the logging ambient stack: every goroutine in
// femtoex logs through a Logger, which queues structured entries onto
// its own SPSC ring and flushes them from a dedicated logger goroutine
// on a fixed cadence, keeping zap's I/O off the hot path.
package xlog

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/femtoex/femtoex/internal/ring"
)

// entry is one queued log record. level/msg/fields are evaluated by the
// caller; only the write to zap is deferred to the logger goroutine.
type entry struct {
	level  zapLevel
	msg    string
	fields []zap.Field
}

type zapLevel uint8

const (
	levelInfo zapLevel = iota
	levelWarn
	levelError
)

// Logger decouples callers from zap's I/O via its own SPSC ring. Only
// the goroutine launched by Start drains the ring. Info, Warn and Error
// are safe for concurrent use: pushes onto the ring are serialized by a
// mutex, so one Logger handle may be shared by several goroutines while
// the ring still sees a single producer at a time.
type Logger struct {
	ring *ring.Buffer[entry]
	zap  *zap.Logger
	name string
	mu   sync.Mutex
}

// New constructs a Logger backed by a production zap.Logger, tagged
// with name (e.g. "matching-engine", "gateway") so every line is
// attributable to its thread.
func New(name string) (*Logger, error) {
	base, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &Logger{
		ring: ring.New[entry](4096),
		zap:  base.Named(name),
		name: name,
	}, nil
}

// Info queues an informational log line.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.enqueue(levelInfo, msg, fields)
}

// Warn queues a warning log line (protocol violations, packet loss,
// business rejections).
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.enqueue(levelWarn, msg, fields)
}

// Error queues an error log line, typically immediately preceding a
// fatal panic.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.enqueue(levelError, msg, fields)
}

func (l *Logger) enqueue(lvl zapLevel, msg string, fields []zap.Field) {
	l.mu.Lock()
	pushed := l.ring.TryPush(entry{level: lvl, msg: msg, fields: fields})
	l.mu.Unlock()
	if !pushed {
		// The logger's own ring is full: fall back to a direct,
		// synchronous write rather than drop the line, since log loss
		// on the path to a fatal condition would defeat the purpose.
		l.write(entry{level: lvl, msg: msg, fields: fields})
	}
}

func (l *Logger) write(e entry) {
	switch e.level {
	case levelWarn:
		l.zap.Warn(e.msg, e.fields...)
	case levelError:
		l.zap.Error(e.msg, e.fields...)
	default:
		l.zap.Info(e.msg, e.fields...)
	}
}

// Start begins the flush loop on a new goroutine, draining the ring
// every flushCadence. Start returns a stop function that drains the
// ring once more and syncs zap before returning.
func (l *Logger) Start(flushCadence time.Duration) (stop func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(flushCadence)
		defer ticker.Stop()

		buf := make([]entry, 256)
		for {
			select {
			case <-ticker.C:
				l.drain(buf)
			case <-done:
				l.drain(buf)
				return
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
		_ = l.zap.Sync()
	}
}

func (l *Logger) drain(buf []entry) {
	for {
		n := l.ring.Read(buf)
		if n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			l.write(buf[i])
		}
	}
}
