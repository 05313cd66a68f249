package compass

import (
	"fmt"
	"io"
	"sync"
	"time"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) prefix() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// LogMonitor is a leveled logger that keeps a bounded history of emitted
// lines and fans raw log bytes out to subscribers. It implements io.Writer
// so monitors can be chained or handed to libraries expecting a writer.
type LogMonitor struct {
	mu        sync.Mutex
	out       io.Writer
	level     LogLevel
	history   [][]byte
	histBytes int
	lastSubID uint64
	subs      map[uint64]func([]byte)
}

const maxHistoryBytes = 64 * 1024

// NewLogMonitor creates a monitor that discards nothing and writes nowhere.
func NewLogMonitor() *LogMonitor {
	return NewLogMonitorWriter(io.Discard)
}

// NewLogMonitorWriter creates a monitor that forwards every line to out.
func NewLogMonitorWriter(out io.Writer) *LogMonitor {
	return &LogMonitor{
		out:   out,
		level: LevelInfo,
		subs:  make(map[uint64]func([]byte)),
	}
}

func (m *LogMonitor) SetLogLevel(level LogLevel) {
	m.mu.Lock()
	m.level = level
	m.mu.Unlock()
}

// Write implements io.Writer. Bytes written directly bypass level filtering,
// they are history-tracked and forwarded as-is.
func (m *LogMonitor) Write(p []byte) (int, error) {
	m.emit(p)
	return len(p), nil
}

// OnLogData registers fn to receive every emitted chunk and returns an
// unsubscribe function.
func (m *LogMonitor) OnLogData(fn func(data []byte)) func() {
	m.mu.Lock()
	m.lastSubID++
	id := m.lastSubID
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// GetHistory returns the retained log tail as one byte slice.
func (m *LogMonitor) GetHistory() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []byte
	for _, chunk := range m.history {
		out = append(out, chunk...)
	}
	return out
}

func (m *LogMonitor) emit(p []byte) {
	chunk := make([]byte, len(p))
	copy(chunk, p)

	m.mu.Lock()
	m.history = append(m.history, chunk)
	m.histBytes += len(chunk)
	for m.histBytes > maxHistoryBytes && len(m.history) > 1 {
		m.histBytes -= len(m.history[0])
		m.history = m.history[1:]
	}
	out := m.out
	subs := make([]func([]byte), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if out != nil {
		out.Write(chunk)
	}
	for _, fn := range subs {
		fn(chunk)
	}
}

func (m *LogMonitor) logf(level LogLevel, format string, args ...interface{}) {
	m.mu.Lock()
	min := m.level
	m.mu.Unlock()
	if level < min {
		return
	}
	line := fmt.Sprintf("[%s] %s %s\n",
		level.prefix(),
		time.Now().Format("2006-01-02 15:04:05"),
		fmt.Sprintf(format, args...))
	m.emit([]byte(line))
}

func (m *LogMonitor) Debug(msg string)                          { m.logf(LevelDebug, "%s", msg) }
func (m *LogMonitor) Debugf(format string, args ...interface{}) { m.logf(LevelDebug, format, args...) }
func (m *LogMonitor) Info(msg string)                           { m.logf(LevelInfo, "%s", msg) }
func (m *LogMonitor) Infof(format string, args ...interface{})  { m.logf(LevelInfo, format, args...) }
func (m *LogMonitor) Warn(msg string)                           { m.logf(LevelWarn, "%s", msg) }
func (m *LogMonitor) Warnf(format string, args ...interface{})  { m.logf(LevelWarn, format, args...) }
func (m *LogMonitor) Errorf(format string, args ...interface{}) { m.logf(LevelError, format, args...) }
