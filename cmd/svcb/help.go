package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/svcbackup/internal/ui"
)

// helpRule styles the submatch at index group of every match of re.
type helpRule struct {
	re     *regexp.Regexp
	group  int
	render func(string) string
}

// Cobra's help layout: group headers ("Orders:"), two-space indented command
// names, flag type annotations and (default "...") suffixes.
var helpRules = []helpRule{
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), 1, ui.RenderAccent},
	{regexp.MustCompile(`(?m)^  (\S+)  `), 1, ui.RenderCommand},
	{regexp.MustCompile(`--?\S+\s+(string|int|int64|duration|stringArray|stringToString)\b`), 1, ui.RenderMuted},
	{regexp.MustCompile(`(\(default "[^"]*"\))`), 1, ui.RenderMuted},
}

// colorizedHelpFunc renders Cobra's usage text through helpRules when the
// terminal supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		if noColor || !ui.ColorEnabled(out) {
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelp(buf.String()))
	}
}

func colorizeHelp(s string) string {
	for _, r := range helpRules {
		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			loc := r.re.FindStringSubmatchIndex(match)
			start, end := loc[2*r.group], loc[2*r.group+1]
			return match[:start] + r.render(match[start:end]) + match[end:]
		})
	}
	return s
}
