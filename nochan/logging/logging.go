// Package logging builds the process-wide zerolog logger: a console writer at
// the configured level plus a file writer that always captures debug output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nochan-bot/nochan/nochan/config"
)

const logFileName = "nochan.log"

// consoleLevel gates console output only; the file writer ignores it.
var consoleLevel atomic.Int32

// Setup initializes the logger from config. The returned logger writes
// human-readable output to stderr at the configured level and full debug
// detail to <dir>/nochan.log.
func Setup(cfg config.LoggingConfig) (zerolog.Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to create log directory %s: %w", cfg.Dir, err)
	}

	cleanupOldLogs(cfg.Dir, int64(cfg.MaxTotalMB)*1024*1024)

	SetConsoleLevel(cfg.Level)

	file, err := os.OpenFile(filepath.Join(cfg.Dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("failed to open log file: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
	multi := zerolog.MultiLevelWriter(&leveledWriter{w: console}, file)

	logger := zerolog.New(multi).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	return logger, nil
}

// SetConsoleLevel changes the console threshold at runtime. Unknown level
// strings fall back to info.
func SetConsoleLevel(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	consoleLevel.Store(int32(parsed))
}

// leveledWriter filters console output by the current console level.
type leveledWriter struct {
	w io.Writer
}

func (lw *leveledWriter) Write(p []byte) (int, error) {
	return lw.w.Write(p)
}

func (lw *leveledWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if int32(level) < consoleLevel.Load() {
		return len(p), nil
	}
	return lw.w.Write(p)
}

var _ zerolog.LevelWriter = (*leveledWriter)(nil)

// cleanupOldLogs deletes oldest nochan.log* files until the directory total
// fits the byte budget. Best effort; the current log file is never removed
// while it is the only one left.
func cleanupOldLogs(dir string, maxTotalBytes int64) {
	matches, err := filepath.Glob(filepath.Join(dir, logFileName+"*"))
	if err != nil || len(matches) == 0 {
		return
	}

	type logFile struct {
		path    string
		size    int64
		modTime time.Time
	}

	var files []logFile
	var total int64
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, logFile{path: path, size: info.Size(), modTime: info.ModTime()})
		total += info.Size()
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	for len(files) > 1 && total > maxTotalBytes {
		oldest := files[0]
		files = files[1:]
		if os.Remove(oldest.path) == nil {
			total -= oldest.size
		}
	}
}
