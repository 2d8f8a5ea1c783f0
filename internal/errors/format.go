package errors

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[31m"
	ansiCyan  = "\033[36m"
	ansiGray  = "\033[90m"
	ansiBold  = "\033[1m"
)

// detailWidth is the column at which Detail text wraps.
const detailWidth = 70

type painter bool

func (p painter) paint(code, text string) string {
	if !p {
		return text
	}
	return code + text + ansiReset
}

// Format returns the error as an uncolored terminal block.
func (e *RCPError) Format() string {
	return e.render(false)
}

func (e *RCPError) render(color painter) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(color.paint(ansiRed+ansiBold, "ERROR"))
	if e.Code != "" {
		b.WriteString(" " + color.paint(ansiBold, e.Code))
	}
	b.WriteString(": " + e.Message + "\n\n")

	if len(e.Fields) > 0 {
		for _, k := range slices.Sorted(maps.Keys(e.Fields)) {
			fmt.Fprintf(&b, "  %s %v\n", color.paint(ansiCyan, k+":"), e.Fields[k])
		}
		b.WriteString("\n")
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, detailWidth) {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		fmt.Fprintf(&b, "  %s %s\n\n", color.paint(ansiGray, "Cause:"), e.Wrapped)
	}

	if e.Suggestion != "" {
		fmt.Fprintf(&b, "  %s %s\n\n", color.paint(ansiCyan, "Hint:"), e.Suggestion)
	}

	return b.String()
}

// wrapText breaks text into lines of at most width columns. A single word
// longer than width gets a line of its own.
func wrapText(text string, width int) []string {
	var (
		lines   []string
		current strings.Builder
	)
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+1+len(word) > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// Fprint writes err to w. Coded errors anywhere in the chain get the full
// block; other errors a single line.
func Fprint(w io.Writer, err error, color bool) {
	var re *RCPError
	if errors.As(err, &re) {
		io.WriteString(w, re.render(painter(color)))
		return
	}
	fmt.Fprintf(w, "\n%s %s\n\n", painter(color).paint(ansiRed+ansiBold, "ERROR:"), err)
}

// PrintError prints err to stderr, colored when stderr is a terminal and
// NO_COLOR is unset.
func PrintError(err error) {
	Fprint(os.Stderr, err, stderrIsTerminal() && os.Getenv("NO_COLOR") == "")
}

func stderrIsTerminal() bool {
	fi, err := os.Stderr.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
