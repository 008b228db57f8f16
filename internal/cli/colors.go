// Package cli holds the ANSI helpers shared by the console log encoder and
// the atlasctl command.
package cli

import "os"

const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Gray   = "\033[90m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
)

// disableColor starts from NO_COLOR and may be overridden by SetEnabled.
var disableColor = checkNoColor()

func checkNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// Enabled reports whether escape codes are emitted.
func Enabled() bool {
	return !disableColor
}

// SetEnabled overrides NO_COLOR detection, e.g. for a --no-color flag.
func SetEnabled(on bool) {
	disableColor = !on
}

// Stylize wraps text in code and a reset, or returns it untouched when color
// is off.
func Stylize(text, code string) string {
	if disableColor {
		return text
	}
	return code + text + Reset
}

func CheckMark() string {
	return Stylize("✔", Green)
}

func Arrow() string {
	return Stylize("➜", Blue)
}

func CrossMark() string {
	return Stylize("✘", Red)
}

func WarningSign() string {
	return Stylize("!", Yellow)
}
