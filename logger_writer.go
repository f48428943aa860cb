package wsupervisor

import (
	"fmt"
	"io"
	"time"
)

// testLogger implements the logger interface by writing lines to an
// io.Writer. Exported through NewWriterLogger for hosts that want a quick
// human-readable sink without a logging dependency.
type testLogger struct {
	writer io.Writer
	fields map[string]any
}

// NewWriterLogger creates a logger that writes formatted lines to w.
func NewWriterLogger(w io.Writer) Logger {
	return &testLogger{writer: w, fields: make(map[string]any)}
}

func (l *testLogger) WithField(key string, value any) logger {
	next := &testLogger{writer: l.writer, fields: make(map[string]any, len(l.fields)+1)}
	for k, v := range l.fields {
		next.fields[k] = v
	}
	next.fields[key] = value
	return next
}

func (l *testLogger) formatFields() string {
	if len(l.fields) == 0 {
		return ""
	}

	result := " ["
	first := true
	for k, v := range l.fields {
		if !first {
			result += ", "
		}
		result += fmt.Sprintf("%s=%v", k, v)
		first = false
	}
	result += "]"
	return result
}

func (l *testLogger) log(level, msg string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(l.writer, "[%s] %s%s: %s\n", timestamp, level, l.formatFields(), msg)
}

func (l *testLogger) Debug(args ...any) { l.log("DEBUG", fmt.Sprint(args...)) }
func (l *testLogger) Debugf(format string, args ...any) {
	l.log("DEBUG", fmt.Sprintf(format, args...))
}
func (l *testLogger) Debugln(args ...any) { l.log("DEBUG", fmt.Sprintln(args...)) }

func (l *testLogger) Info(args ...any) { l.log("INFO", fmt.Sprint(args...)) }
func (l *testLogger) Infof(format string, args ...any) {
	l.log("INFO", fmt.Sprintf(format, args...))
}
func (l *testLogger) Infoln(args ...any) { l.log("INFO", fmt.Sprintln(args...)) }

func (l *testLogger) Warn(args ...any) { l.log("WARN", fmt.Sprint(args...)) }
func (l *testLogger) Warnf(format string, args ...any) {
	l.log("WARN", fmt.Sprintf(format, args...))
}
func (l *testLogger) Warnln(args ...any) { l.log("WARN", fmt.Sprintln(args...)) }

func (l *testLogger) Error(args ...any) { l.log("ERROR", fmt.Sprint(args...)) }
func (l *testLogger) Errorf(format string, args ...any) {
	l.log("ERROR", fmt.Sprintf(format, args...))
}
func (l *testLogger) Errorln(args ...any) { l.log("ERROR", fmt.Sprintln(args...)) }
