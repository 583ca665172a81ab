package progress

import (
	"os"

	"golang.org/x/term"
)

// DetectTerminalCapabilities inspects stderr, where progress is drawn.
// NO_COLOR disables color and PERSONAFORGE_ASCII=1 forces ASCII symbols.
func DetectTerminalCapabilities() TerminalCapabilities {
	fd := int(os.Stderr.Fd())
	isTTY := term.IsTerminal(fd)

	noColor := os.Getenv("NO_COLOR") != ""
	forceASCII := os.Getenv("PERSONAFORGE_ASCII") == "1"

	width := 0
	if isTTY {
		if w, _, err := term.GetSize(fd); err == nil {
			width = w
		}
	}

	return TerminalCapabilities{
		IsTTY:           isTTY,
		SupportsColor:   isTTY && !noColor,
		SupportsUnicode: isTTY && !forceASCII,
		Width:           width,
	}
}

// SelectSymbols returns the appropriate symbol set based on terminal capabilities
func SelectSymbols(caps TerminalCapabilities) ProgressSymbols {
	if caps.SupportsUnicode {
		return ProgressSymbols{
			Checkmark:  "✓",
			Failure:    "✗",
			SpinnerSet: 14, // ⠋ ⠙ ⠹ ⠸ ⠼ ⠴ ⠦ ⠧ ⠇ ⠏
		}
	}

	return ProgressSymbols{
		Checkmark:  "[OK]",
		Failure:    "[FAIL]",
		SpinnerSet: 9, // | / - \
	}
}
