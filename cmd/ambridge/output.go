package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

// notice writes a one-line status message. Notices go to the command's
// stderr so stdout stays parseable.
func notice(w io.Writer, color, mark, format string, args ...any) {
	fmt.Fprintln(w, colorize(color, mark+" "+fmt.Sprintf(format, args...)))
}

func printSuccess(cmd *cobra.Command, format string, args ...any) {
	notice(cmd.ErrOrStderr(), colorGreen, "✓", format, args...)
}

func printError(cmd *cobra.Command, format string, args ...any) {
	notice(cmd.ErrOrStderr(), colorRed, "✗", format, args...)
}

func printWarning(cmd *cobra.Command, format string, args ...any) {
	notice(cmd.ErrOrStderr(), colorYellow, "⚠", format, args...)
}

func printStep(cmd *cobra.Command, format string, args ...any) {
	notice(cmd.ErrOrStderr(), colorCyan, "→", format, args...)
}

// printStatus writes an indented "label: value" line to stdout.
func printStatus(w io.Writer, label string, format string, args ...any) {
	fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, label+":"), fmt.Sprintf(format, args...))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printIDs writes one id per line, or "(none)" for an empty list.
func printIDs(w io.Writer, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	fmt.Fprintln(w, strings.Join(ids, "\n"))
}

func orNone(s *string) string {
	if s == nil {
		return "(none)"
	}
	return *s
}
