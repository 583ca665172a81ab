package errors

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	headingColor = color.New(color.FgRed, color.Bold)
	usageColor   = color.New(color.FgCyan)
	stepColor    = color.New(color.FgYellow)
)

// FormatError renders a CLIError with color for terminal output.
func FormatError(err *CLIError) string {
	if err == nil {
		return ""
	}
	return render(err, true)
}

// FormatErrorPlain renders a CLIError without ANSI escapes.
func FormatErrorPlain(err *CLIError) string {
	if err == nil {
		return ""
	}
	return render(err, false)
}

func render(err *CLIError, colored bool) string {
	paint := func(c *color.Color, s string) string {
		if !colored {
			return s
		}
		return c.Sprint(s)
	}

	var sb strings.Builder
	sb.WriteString(paint(headingColor, err.Category.String()))
	sb.WriteString(": ")
	sb.WriteString(err.Message)
	sb.WriteString("\n")

	if err.Usage != "" {
		sb.WriteString("\nUsage: ")
		sb.WriteString(paint(usageColor, err.Usage))
		sb.WriteString("\n")
	}

	if len(err.Remediation) > 0 {
		sb.WriteString("\nTo fix this:\n")
		for i, step := range err.Remediation {
			sb.WriteString(fmt.Sprintf("  %s %s\n", paint(stepColor, fmt.Sprintf("%d.", i+1)), step))
		}
	}
	return sb.String()
}

// PrintError writes a formatted error to stderr.
func PrintError(err *CLIError) {
	FprintError(os.Stderr, err)
}

// FprintError writes a formatted error to w. Color is used only when w is stderr
// or stdout and color output is enabled.
func FprintError(w io.Writer, err *CLIError) {
	if err == nil {
		return
	}
	colored := !color.NoColor && (w == os.Stderr || w == os.Stdout)
	fmt.Fprint(w, render(err, colored))
}

// FormatSimpleError renders any error under the given category heading.
func FormatSimpleError(err error, category ErrorCategory) string {
	if err == nil {
		return ""
	}
	if cliErr := AsCLIError(err); cliErr != nil {
		return FormatErrorPlain(cliErr)
	}
	return FormatErrorPlain(&CLIError{Category: category, Message: err.Error()})
}
