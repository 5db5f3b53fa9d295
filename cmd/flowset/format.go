package main

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// formatCount formats an integer with comma separators (e.g. 45230 -> "45,230").
func formatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// formatRatio renders a ratio in [0,1] as a percentage with one decimal.
func formatRatio(r float64) string {
	return printer.Sprintf("%.1f%%", r*100)
}
