package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatValue renders a statistic with Precision decimals; NaN becomes "NaN".
func FormatValue(x float64) string {
	if math.IsNaN(x) {
		return "NaN"
	}
	return strconv.FormatFloat(x, 'f', Precision, 64)
}

// Markdown renders the statistics as one table per metric column.
func (s *Stats) Markdown() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[STATS PER %s]\n", strings.ToUpper(safeName(s.GroupColumn))))
	if len(s.Groups) == 0 {
		b.WriteString("(no records)\n")
		return b.String()
	}
	for _, m := range s.Metrics {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("- %s\n", safeName(m)))
		b.WriteString("| ")
		b.WriteString(safeVal(s.GroupColumn))
		for _, name := range StatNames {
			b.WriteString(" | ")
			b.WriteString(name)
		}
		b.WriteString(" |\n|")
		for i := 0; i <= len(StatNames); i++ {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, g := range s.Groups {
			sum, _ := g.Metric(m)
			b.WriteString("| ")
			b.WriteString(safeVal(g.Key))
			b.WriteString(" | ")
			b.WriteString(strconv.Itoa(sum.Count))
			for _, x := range sum.Values()[1:] {
				b.WriteString(" | ")
				b.WriteString(FormatValue(x))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
