package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Logger fans every message out to stderr (verbosity permitting) and to the
// log file (always, unless logging is off). It is safe for concurrent use;
// parallel merge lists share one Logger.
type Logger struct {
	cfg  *Cfg
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
}

// NewLogger opens the log file, rotating any previous log to a .backup
// twin. With NoLog set the logger only mirrors to stderr.
func NewLogger(cfg *Cfg) (*Logger, error) {
	logger := &Logger{cfg: cfg}
	if cfg.NoLog {
		return logger, nil
	}
	if dir := filepath.Dir(cfg.LogPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %q: %w", dir, err)
		}
	}
	if err := backupFile(cfg.LogPath, cfg.Guts.LogBackupSuffix); err != nil {
		return nil, err
	}
	file, err := os.Create(cfg.LogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %q: %w", cfg.LogPath, err)
	}
	logger.file = file
	logger.buf = bufio.NewWriter(file)
	return logger, nil
}

// Msg logs the message and prints it to stderr when the message's verbosity
// level does not exceed the configured one.
func (l *Logger) Msg(level int, format string, a ...any) {
	text := fmt.Sprintf(format, a...)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf != nil {
		fmt.Fprintln(l.buf, text)
	}
	if !l.cfg.Quiet && level <= l.cfg.Verbose {
		fmt.Fprintln(os.Stderr, text)
	}
}

// MsgNoLog prints to stderr only; used from parallel scans where log-file
// ordering would be nondeterministic.
func (l *Logger) MsgNoLog(level int, format string, a ...any) {
	if !l.cfg.Quiet && level <= l.cfg.Verbose {
		fmt.Fprintln(os.Stderr, fmt.Sprintf(format, a...))
	}
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf != nil {
		if err := l.buf.Flush(); err != nil {
			return err
		}
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ErrOrIgnore downgrades an important error to a logged warning when ignore
// is set; otherwise it returns the error annotated with the fix suggestion.
func (l *Logger) ErrOrIgnore(text string, ignore bool) error {
	if ignore {
		l.Msg(0, "%s%s", l.cfg.Guts.PrefixIgnoredImportantError, text)
		return nil
	}
	return fmt.Errorf("%s%s", text, l.cfg.Guts.SuffixIgnoreErrorsSuggestion)
}
