// Package log is the category logger shared by shctl and the hierarchy
// engine. A line carries a level, a category and key=value fields:
//
//	2025-12-06T10:45:00 [WARN] [resolve] owner not registered item=4 owner=Segmentations
//
// Nothing is written until a sink is installed. The CLI opens the debug
// file for --debug and sends warnings to stderr.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Category groups related log messages.
type Category string

const (
	CatTree        Category = "tree"        // Item store mutations
	CatResolve     Category = "resolve"     // Ownership and add/reparent resolution
	CatPlugin      Category = "plugin"      // Plugin effects
	CatConsistency Category = "consistency" // Controller passes and event handling
	CatLegacy      Category = "legacy"      // Legacy hierarchy adapter
	CatDB          Category = "db"
	CatConfig      Category = "config"
	CatWatcher     Category = "watcher"
	CatCache       Category = "cache" // Ownership cache
	CatTrace       Category = "trace"
	CatUI          Category = "ui" // Interactive picker
)

type sink struct {
	w   io.Writer
	min Level
}

var (
	mu       sync.Mutex
	file     *os.File
	fileSink *sink
	console  *sink
)

// Init opens path for appending and logs every level to it. The returned
// func closes the file and removes the sink. The file is opened through
// bubbletea so an interactive picker never draws over log output.
func Init(path string) (func(), error) {
	f, err := tea.LogToFile(path, "")
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	mu.Lock()
	if file != nil {
		_ = file.Close()
	}
	file, fileSink = f, &sink{w: f, min: LevelDebug}
	mu.Unlock()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		if file == f {
			_ = f.Close()
			file, fileSink = nil, nil
		}
	}, nil
}

// SetConsole sends lines at lowest or above to w, typically stderr. A nil
// w removes the console sink.
func SetConsole(w io.Writer, lowest Level) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		console = nil
		return
	}
	console = &sink{w: w, min: lowest}
}

func Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, fields)
}

func Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, fields)
}

func Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, fields)
}

func Error(cat Category, msg string, fields ...any) {
	write(LevelError, cat, msg, fields)
}

// ErrorErr logs msg at error level with err as the "error" field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	errText := "<nil>"
	if err != nil {
		errText = err.Error()
	}
	write(LevelError, cat, msg, append(fields, "error", errText))
}

func write(level Level, cat Category, msg string, fields []any) {
	mu.Lock()
	defer mu.Unlock()
	if fileSink == nil && console == nil {
		return
	}

	line := format(time.Now(), level, cat, msg, fields)
	for _, s := range []*sink{fileSink, console} {
		if s != nil && level >= s.min {
			_, _ = io.WriteString(s.w, line)
		}
	}
}

func format(at time.Time, level Level, cat Category, msg string, fields []any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", at.Format("2006-01-02T15:04:05"), level, cat, msg)
	for i := 0; i < len(fields); i += 2 {
		if i+1 == len(fields) {
			fmt.Fprintf(&b, " %v=<missing>", fields[i])
			break
		}
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	b.WriteByte('\n')
	return b.String()
}
