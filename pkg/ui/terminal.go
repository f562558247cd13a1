// Package ui renders command output: colored status lines and tables.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// Banner is printed at the top of interactive commands
const Banner = `
  ┌─┐┌─┐┌┬┐┌─┐┌─┐┌┬┐┌─┐┌─┐┬ ┬┌┐┌┌─┐
  │  │ ││││├─┘├┤  │ ├┤ └─┐└┬┘││││
  └─┘└─┘┴ ┴┴  └─┘ ┴ └─┘└─┘ ┴ ┘└┘└─┘
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

var (
	output io.Writer = os.Stdout
	quiet  atomic.Bool
)

// SetOutput redirects everything this package prints
func SetOutput(w io.Writer) {
	output = w
}

// SetQuietMode suppresses status lines; tables and errors still print
func SetQuietMode(q bool) {
	quiet.Store(q)
}

// IsQuietMode reports whether status lines are suppressed
func IsQuietMode() bool {
	return quiet.Load()
}

func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

// PrintBanner prints the banner unless quiet
func PrintBanner() {
	if IsQuietMode() {
		return
	}
	fmt.Fprint(output, Cyan(Banner))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(output, Red(msg))
	}
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(output, Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintf(output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if IsQuietMode() {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
	} else {
		fmt.Fprintln(output, Yellow(msg))
	}
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	if IsQuietMode() {
		return
	}
	fmt.Fprintln(output, Magenta(msg))
}
