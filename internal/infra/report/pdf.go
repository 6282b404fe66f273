// Package report renders completed analyses into downloadable documents.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/rotisserie/eris"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

const maxResponseChars = 1200

// PDF renders the share-of-voice dashboard as an A4 document.
type PDF struct{}

func (PDF) ContentType() string { return "application/pdf" }

func (PDF) Render(w io.Writer, s *domain.Session) error {
	if s == nil || s.AnalysisResults == nil {
		return domain.ErrNotReady
	}
	res := s.AnalysisResults

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(fmt.Sprintf("%s AI visibility report", s.BrandName)), false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("AI Visibility Report: %s", s.BrandName)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Domain: %s    Generated: %s", s.Domain, s.UpdatedAt.Format("2006-01-02"))), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	if s.BrandInformation != "" {
		pdf.MultiCell(0, 5, tr(s.BrandInformation), "", "L", false)
		pdf.Ln(3)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	summary := [][2]string{
		{"Brand share of voice", fmt.Sprintf("%.2f%%", res.BrandShare)},
		{"AI visibility score", fmt.Sprintf("%.2f%%", res.AIVisibilityScore)},
		{"Total mentions", fmt.Sprintf("%d", res.TotalMentions)},
		{"Prompts analysed", fmt.Sprintf("%d", len(s.Prompts()))},
	}
	for _, row := range summary {
		pdf.CellFormat(70, 6, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Share of voice", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 236, 245)
	pdf.CellFormat(90, 7, "Brand", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 7, "Mentions", "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 7, "Share", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range SOVRows(s) {
		name := row.Name
		if row.IsBrand {
			name += " (you)"
		}
		pdf.CellFormat(90, 7, tr(name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%d", row.Mentions), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%.2f%%", row.Share), "1", 1, "R", false, 0, "")
	}

	for _, cat := range s.PopulatedCategories {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, tr(cat.Name), "", 1, "L", false, 0, "")
		for _, p := range cat.Prompts {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.MultiCell(0, 5, tr("Q: "+p.PromptText), "", "L", false)
			pdf.SetFont("Helvetica", "", 9)
			answer := "No response available"
			if p.AIResponse != nil && p.AIResponse.OK() {
				answer = truncate(p.AIResponse.Value, maxResponseChars)
			}
			pdf.MultiCell(0, 4.5, tr(answer), "", "L", false)
			pdf.Ln(3)
		}
	}

	if err := pdf.Output(w); err != nil {
		return eris.Wrap(err, "report: write pdf")
	}
	return nil
}

// SOVRow is one line of the share-of-voice table
type SOVRow struct {
	Name     string
	Mentions int
	Share    float64
	IsBrand  bool
}

// SOVRows lists brand and competitors by share, highest first.
func SOVRows(s *domain.Session) []SOVRow {
	res := s.AnalysisResults
	if res == nil {
		return nil
	}
	names := make(map[string]bool, len(res.ShareOfVoice)+len(res.MentionCounts))
	for n := range res.ShareOfVoice {
		names[n] = true
	}
	for n := range res.MentionCounts {
		names[n] = true
	}
	rows := make([]SOVRow, 0, len(names))
	for n := range names {
		rows = append(rows, SOVRow{
			Name:     n,
			Mentions: res.MentionCounts[n],
			Share:    res.ShareOfVoice[n],
			IsBrand:  strings.EqualFold(n, s.BrandName),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Share != rows[j].Share {
			return rows[i].Share > rows[j].Share
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
