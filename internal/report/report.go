// Package report prints run summaries and warnings for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/cmmoran/cxxffigen/internal/naming"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = pterm.FgLightCyan
)

// Summary describes one finished generation run.
type Summary struct {
	Output   string
	Package  string
	Files    []string
	Exports  int
	Warnings []string
	Elapsed  time.Duration
}

// count renders "1 file" or "3 files".
func count(n int, noun string) string {
	if n != 1 {
		noun = naming.Plural(noun)
	}
	return fmt.Sprintf("%d %s", n, noun)
}

// Warning prints one tagged warning line.
func Warning(w io.Writer, msg string) {
	fmt.Fprint(w, WarnStyleBG.Sprint(" Warning "))
	fmt.Fprintln(w, WarnColorFG.Sprint(" "+msg))
}

// Error prints a failed run. Chained errors print one frame per line.
func Error(w io.Writer, err error) {
	fmt.Fprint(w, ErrorStyleBG.Sprint(" Error "))
	parts := strings.Split(err.Error(), " -> ")
	fmt.Fprintln(w, ErrorColorFG.Sprint(" "+parts[0]))
	for i, p := range parts[1:] {
		fmt.Fprintf(w, "%s-> %s\n", strings.Repeat("  ", i+1), p)
	}
}

// Print writes the warnings of s followed by a one-line summary.
func Print(w io.Writer, s Summary) {
	for _, msg := range s.Warnings {
		Warning(w, msg)
	}
	if len(s.Warnings) > 0 {
		fmt.Fprintln(w)
	}
	fmt.Fprint(w, SuccessStyleBG.Sprint(" Done "))
	fmt.Fprintf(w, " package %s in %s\n", InfoColorFG.Sprint(s.Package), s.Output)
	for _, f := range s.Files {
		fmt.Fprintln(w, "  "+f)
	}
	fmt.Fprint(w, "(")
	fmt.Fprint(w, SuccessColorFG.Sprint(count(len(s.Files), "file")), ", ")
	fmt.Fprint(w, SuccessColorFG.Sprint(count(s.Exports, "export")), ", ")
	if len(s.Warnings) > 0 {
		fmt.Fprint(w, WarnColorFG.Sprint(count(len(s.Warnings), "warning")))
	} else {
		fmt.Fprint(w, SuccessColorFG.Sprint(count(0, "warning")))
	}
	if s.Elapsed > 0 {
		fmt.Fprintf(w, ", %.3fs", s.Elapsed.Seconds())
	}
	fmt.Fprintln(w, ")")
}
