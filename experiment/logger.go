package experiment

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// BannerWidth is the width level-0 messages are padded to.
const BannerWidth = 100

// Logger writes indented, message-only lines to a log file and a copy of
// them to stdout. The file is truncated when the Logger is created. A nil
// *Logger discards everything.
type Logger struct {
	f *os.File
	l *log.Logger
}

// NewLogger creates (or truncates) the log file at path.
func NewLogger(path string, stdout io.Writer) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	var wr io.Writer = f
	if stdout != nil {
		wr = io.MultiWriter(f, stdout)
	}
	return &Logger{f: f, l: log.New(wr, "", 0)}, nil
}

// NewStdoutLogger returns a Logger which only writes to wr.
func NewStdoutLogger(wr io.Writer) *Logger {
	return &Logger{l: log.New(wr, "", 0)}
}

// Banner formats msg at the given level. Non-empty level-0 messages are
// centred in a line of '=' BannerWidth characters wide, with the odd '='
// on the right. Messages too long to fit get no padding. Everything else is
// indented by level spaces followed by level dashes.
func Banner(level int, msg string) string {
	if level == 0 && msg != "" {
		n := utf8.RuneCountInString(msg)
		left, right := 0, 0
		if d := BannerWidth - n - 2; d >= 0 {
			left = d / 2
			right = left + n%2
		}
		return strings.Repeat("=", left) + " " + msg + " " + strings.Repeat("=", right)
	}
	return fmt.Sprintf("%s %s %s ",
		strings.Repeat(" ", level), strings.Repeat("-", level), msg,
	)
}

func (lg *Logger) Print(level int, msg string) {
	if lg == nil {
		return
	}
	lg.l.Println(Banner(level, msg))
}

func (lg *Logger) Printf(level int, format string, args ...interface{}) {
	lg.Print(level, fmt.Sprintf(format, args...))
}

func (lg *Logger) Close() error {
	if lg == nil || lg.f == nil {
		return nil
	}
	return lg.f.Close()
}
