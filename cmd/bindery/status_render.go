package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Status lines lead with a fixed-width state marker so a column of checks
// scans vertically:
//
//	ok   Running          pid 42
//	fail metadata.db      not readable
type statusKind string

const (
	statusInfo statusKind = "-"
	statusOK   statusKind = "ok"
	statusWarn statusKind = "warn"
	statusFail statusKind = "fail"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
)

const (
	markerWidth = 4
	labelWidth  = 16
)

func renderStatusLine(label string, kind statusKind, detail string, colorize bool) string {
	marker := fmt.Sprintf("%-*s", markerWidth, string(kind))
	if colorize {
		if color := kindColor(kind); color != "" {
			marker = color + marker + ansiReset
		}
	}
	line := fmt.Sprintf("  %s %-*s", marker, labelWidth, label)
	if detail != "" {
		line += " " + detail
	}
	return strings.TrimRight(line, " ")
}

func kindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusFail:
		return ansiRed
	default:
		return ""
	}
}

// renderSectionHeader prints section names the way TOML tables read, which
// keeps daemon output and config file vocabulary aligned.
func renderSectionHeader(title string, colorize bool) string {
	line := strings.ToLower(strings.TrimSpace(title)) + ":"
	if colorize {
		line = ansiCyan + line + ansiReset
	}
	return line
}

func shouldColorize(writer io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
