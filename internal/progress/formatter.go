package progress

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// formatStageCounter returns the [N/Total] stage counter string
func formatStageCounter(number, total int) string {
	return fmt.Sprintf("[%d/%d]", number, total)
}

// buildStageMessage renders "[2/6] build: Validating".
func buildStageMessage(stage StageInfo) string {
	counter := formatStageCounter(stage.Number, stage.TotalStages)
	if stage.Mode == "" {
		return fmt.Sprintf("%s %s", counter, capitalize(stage.Name))
	}
	return fmt.Sprintf("%s %s: %s", counter, stage.Mode, capitalize(stage.Name))
}

// capitalize returns the string with the first letter capitalized
func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// mark colors sym with c when the terminal supports it.
func mark(sym string, c *color.Color, supportsColor bool) string {
	if !supportsColor {
		return sym
	}
	c.EnableColor()
	return c.Sprint(sym)
}

func checkmark(symbols ProgressSymbols, supportsColor bool) string {
	return mark(symbols.Checkmark, color.New(color.FgGreen), supportsColor)
}

func failureMark(symbols ProgressSymbols, supportsColor bool) string {
	return mark(symbols.Failure, color.New(color.FgRed), supportsColor)
}
