package log

import (
	stdlog "log"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"tentscape.ai/internal/sim/world"
)

const (
	FramesDir      = "frames"
	GenerationsDir = "generations"
)

type LoggerOptions struct {
	Rotate time.Duration
	// QueueSize bounds frames waiting for disk. Frames beyond it are dropped.
	QueueSize int
	Logger    *stdlog.Logger
}

// FrameLogger writes sampled frames off the world loop goroutine.
type FrameLogger struct {
	w   *JSONLZstdWriter
	log *stdlog.Logger

	// mu guards ch against a send racing Close.
	mu      sync.RWMutex
	closed  bool
	ch      chan world.Frame
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
	written atomic.Uint64
}

func NewFrameLogger(dataDir string, opts LoggerOptions) *FrameLogger {
	n := opts.QueueSize
	if n <= 0 {
		n = 256
	}
	l := &FrameLogger{
		w:    NewJSONLZstdWriter(filepath.Join(dataDir, FramesDir), "frames", opts.Rotate),
		log:  opts.Logger,
		ch:   make(chan world.Frame, n),
		done: make(chan struct{}),
	}
	go l.loop()
	return l
}

// WriteFrame never blocks; it reports success even when the frame is dropped.
// Frames written after Close are dropped.
func (l *FrameLogger) WriteFrame(f world.Frame) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.dropped.Add(1)
		return nil
	}
	select {
	case l.ch <- f:
	default:
		l.dropped.Add(1)
	}
	return nil
}

func (l *FrameLogger) loop() {
	defer close(l.done)
	for f := range l.ch {
		if err := l.w.Write(f); err != nil {
			if l.log != nil {
				l.log.Printf("frame log: %v", err)
			}
			continue
		}
		l.written.Add(1)
	}
}

func (l *FrameLogger) Dropped() uint64 { return l.dropped.Load() }
func (l *FrameLogger) Written() uint64 { return l.written.Load() }

// Close drains queued frames and finalizes the current segment.
func (l *FrameLogger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.ch)
		l.mu.Unlock()
	})
	<-l.done
	return l.w.Close()
}

// GenerationLogger records every population generation. Generations are rare
// so entries are written synchronously.
type GenerationLogger struct{ w *JSONLZstdWriter }

func NewGenerationLogger(dataDir string, opts LoggerOptions) *GenerationLogger {
	return &GenerationLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, GenerationsDir), "generations", opts.Rotate)}
}

func (l *GenerationLogger) WriteGeneration(e world.GenerationEntry) error { return l.w.Write(e) }
func (l *GenerationLogger) Close() error                                  { return l.w.Close() }
