// Package format holds small value-rendering helpers shared by the report
// writers.
package format

import (
	"math"
	"strconv"
	"strings"
)

// Round1 rounds to one decimal place, the precision every percentage and
// risk score in the reports uses.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Float renders a float the way the reports display it (one decimal place).
func Float(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func Int(v int) string {
	return strconv.Itoa(v)
}

// OneLine collapses a multi-line Cypher statement into a single line.
func OneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.Join(strings.Fields(s), " ")
}
