package ui

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorEnabled reports whether ANSI colors should be written to w. NO_COLOR
// wins over CLICOLOR_FORCE, which wins over CLICOLOR=0. Otherwise color is
// used only when w is a terminal.
func ColorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// Setup turns styling off for the rest of the process when disabled is set
// or w cannot show color.
func Setup(w io.Writer, disabled bool) {
	if disabled || !ColorEnabled(w) {
		ForceNoColor()
	}
}
