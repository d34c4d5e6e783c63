package ui

import (
	"io"
	"os"

	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

func SetDebugEnabled(enabled bool) {
	pterm.PrintDebugMessages = enabled
}

// SetLogFile mirrors all output into the given file, rotating it once it grows too large.
// An empty path restores terminal-only output.
func SetLogFile(path string) io.Closer {
	if len(path) <= 0 {
		pterm.SetDefaultOutput(os.Stdout)
		return io.NopCloser(nil)
	}

	logFile := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	pterm.SetDefaultOutput(io.MultiWriter(os.Stdout, logFile))
	return logFile
}

func Printf(format string, a ...interface{}) {
	pterm.Printf(format, a...)
}

func Printfln(format string, a ...interface{}) {
	pterm.Printfln(format, a...)
}

func Debug(format string, a ...interface{}) {
	pterm.Debug.Printfln(format, a...)
}

func Info(format string, a ...interface{}) {
	pterm.Info.Printfln(format, a...)
}

func Success(format string, a ...interface{}) {
	pterm.Success.Printfln(format, a...)
}

func Warning(format string, a ...interface{}) {
	pterm.Warning.Printfln(format, a...)
}

func Error(format string, a ...interface{}) {
	pterm.Error.Printfln(format, a...)
}

func InfoAndNotify(title, format string, a ...interface{}) {
	Info(format, a...)
	NotifyInfo(title, pterm.Sprintf(format, a...))
}

func ErrorAndNotify(title, format string, a ...interface{}) {
	Error(format, a...)
	NotifyError(title, pterm.Sprintf(format, a...))
}

func Fatal(format string, a ...interface{}) {
	pterm.Fatal.Printfln(format, a...)
}

func FatalWithoutStacktrace(format string, a ...interface{}) {
	pterm.Error.Printfln(format, a...)
	os.Exit(1)
}
