package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/SnowballHQ/geo-optimizer-sub002/internal/reconcile"
)

const previewRunes = 160

// renderDashboard prints the analysis the way the web dashboard lays it out:
// headline scores, the share-of-voice table, then categories with their
// prompts. Collapsed categories only show a count.
func renderDashboard(v *reconcile.ViewModel) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", text.Bold.Sprint(v.Brand), v.Domain)
	fmt.Fprintf(&b, "Analysis %s\n\n", v.AnalysisID)
	fmt.Fprintf(&b, "Share of voice  %s\n", formatPercent(v.BrandShare))
	fmt.Fprintf(&b, "AI visibility   %s\n", formatPercent(v.Visibility))
	fmt.Fprintf(&b, "Total mentions  %d\n\n", v.TotalMentions)

	rows := make([][]string, 0, len(v.ShareOfVoice))
	for _, r := range v.ShareOfVoice {
		name := r.Name
		if r.IsBrand {
			name += " (you)"
		}
		rows = append(rows, []string{name, fmt.Sprintf("%d", r.Mentions), formatPercent(r.Share)})
	}
	b.WriteString(renderTable("Share of voice", []string{"Brand", "Mentions", "Share"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
	b.WriteString("\n")

	for _, c := range v.Categories {
		marker := "+"
		if c.Expanded {
			marker = "-"
		}
		fmt.Fprintf(&b, "\n%s %s (%d prompts)\n", marker, text.Bold.Sprint(c.Name), len(c.Prompts))
		if !c.Expanded {
			continue
		}
		for _, p := range c.Prompts {
			fmt.Fprintf(&b, "  Q: %s\n", p.Text)
			resp := p.Response
			if p.Answered {
				resp = preview(resp, previewRunes)
			} else {
				resp = text.Faint.Sprint(resp)
			}
			fmt.Fprintf(&b, "  A: %s\n", resp)
		}
	}
	return b.String()
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
