// Package ui holds terminal styling shared by svcb commands.
package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorWarn   = 179 // amber
	colorError  = 203 // red
)

var noColor bool

func render(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderError returns s in red.
func RenderError(s string) string { return render(colorError, s) }

// RenderTopic colors a lifecycle event topic by the state it moves a
// service into: green for running, amber for paused, red for gone.
func RenderTopic(topic string) string {
	switch topicAction(topic) {
	case "created", "activated", "renewed", "unsuspended", "uncanceled":
		return render(colorOK, topic)
	case "suspended", "canceled":
		return render(colorWarn, topic)
	case "deleted":
		return render(colorError, topic)
	default:
		return RenderAccent(topic)
	}
}

func topicAction(topic string) string {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '.' {
			return topic[i+1:]
		}
	}
	return topic
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
