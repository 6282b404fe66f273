package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	domain "github.com/SnowballHQ/geo-optimizer-sub002/internal/domain/analysis"
)

// XLSX exports share of voice and the prompt/response table as a workbook.
type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSX) Render(w io.Writer, s *domain.Session) error {
	if s == nil || s.AnalysisResults == nil {
		return domain.ErrNotReady
	}
	file := xlsx.NewFile()

	sov, err := file.AddSheet("Share of Voice")
	if err != nil {
		return eris.Wrap(err, "report: add sov sheet")
	}
	addRow(sov, "Brand", "Mentions", "Share %")
	for _, r := range SOVRows(s) {
		row := sov.AddRow()
		row.AddCell().SetString(r.Name)
		row.AddCell().SetInt(r.Mentions)
		row.AddCell().SetFloat(r.Share)
	}

	prompts, err := file.AddSheet("Prompts")
	if err != nil {
		return eris.Wrap(err, "report: add prompts sheet")
	}
	addRow(prompts, "Category", "Prompt", "Platform", "Response")
	for _, cat := range s.PopulatedCategories {
		for _, p := range cat.Prompts {
			platform, answer := "", "No response available"
			if p.AIResponse != nil {
				platform = p.AIResponse.Platform
				if p.AIResponse.OK() {
					answer = p.AIResponse.Value
				}
			}
			addRow(prompts, cat.Name, p.PromptText, platform, answer)
		}
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
