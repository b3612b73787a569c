package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/sldctools/backdown/core/model"
)

const reportSheet = "Time Intervals"

var reportHeaders = []string{
	"Date", "From", "To",
	"DC (MW)", "As per SLDC Scada in MW", "DC , Scada Diff (MW)",
	"Mus", "Sum Mus",
	"MW as per ramp", "Diff", "MU", "Sum MU",
}

var reportColWidths = []float64{15, 10, 10, 12, 25, 12, 12, 12, 14, 12, 12, 12}

// BuildReport renders the reconciliation ledger into a styled workbook with a
// single "Time Intervals" sheet. The Date cell is merged down each instruction
// block, excluding the block's summary row. Values are written as numbers,
// never formulas.
func BuildReport(rows []model.OutputRow, title string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
	if err != nil {
		return nil, err
	}
	cellStyle, err := f.NewStyle(&excelize.Style{Border: thinBorder()})
	if err != nil {
		return nil, err
	}

	for c, h := range reportHeaders {
		ref, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(reportSheet, ref, h); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(reportSheet, "A1", "L1", headerStyle); err != nil {
		return nil, err
	}

	dateStart := 0
	for i, row := range rows {
		r := i + 2
		if row.Date != "" {
			if dateStart > 0 {
				mergeDateCell(f, rows, i, dateStart, r-1)
			}
			dateStart = r
		}
		setCell(f, r, 1, row.Date)
		setCell(f, r, 2, row.From)
		setCell(f, r, 3, row.To)
		setOptional(f, r, 4, row.Reference)
		setOptional(f, r, 5, row.Telemetry)
		setOptional(f, r, 6, row.RefTelDiff)
		setOptional(f, r, 7, row.EnergyMUs)
		setOptional(f, r, 8, row.SumEnergyMUs)
		setOptional(f, r, 9, row.Ramp)
		setOptional(f, r, 10, row.ComplianceDiff)
		if !row.Summary {
			setCell(f, r, 11, row.ComplianceMU)
		}
		setOptional(f, r, 12, row.SumComplianceMU)

		last, _ := excelize.CoordinatesToCellName(len(reportHeaders), r)
		first, _ := excelize.CoordinatesToCellName(1, r)
		if err := f.SetCellStyle(reportSheet, first, last, cellStyle); err != nil {
			return nil, err
		}
	}
	if dateStart > 0 {
		mergeDateCell(f, rows, len(rows), dateStart, len(rows)+1)
	}

	if err := f.SetPanes(reportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, err
	}
	showGrid := false
	if err := f.SetSheetView(reportSheet, -1, &excelize.ViewOptions{ShowGridLines: &showGrid}); err != nil {
		return nil, err
	}
	for i, w := range reportColWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(reportSheet, col, col, w); err != nil {
			return nil, err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(reportHeaders))
	if err := f.SetDefinedName(&excelize.DefinedName{
		Name:     "_xlnm.Print_Area",
		RefersTo: fmt.Sprintf("'%s'!$A$1:$%s$%d", reportSheet, lastCol, len(rows)+1),
		Scope:    reportSheet,
	}); err != nil {
		return nil, err
	}
	if title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: title}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// mergeDateCell merges column A from start to end, pulling the end back past
// the previous block's summary row so that row keeps its empty Date cell.
// i is the index of the row that opened the new block, or len(rows) at the end.
func mergeDateCell(f *excelize.File, rows []model.OutputRow, i, start, end int) {
	if i > 0 && rows[i-1].Summary {
		end--
	}
	if end <= start {
		return
	}
	from, _ := excelize.CoordinatesToCellName(1, start)
	to, _ := excelize.CoordinatesToCellName(1, end)
	_ = f.MergeCell(reportSheet, from, to)
}

func setCell(f *excelize.File, r, c int, v any) {
	ref, _ := excelize.CoordinatesToCellName(c, r)
	_ = f.SetCellValue(reportSheet, ref, v)
}

func setOptional(f *excelize.File, r, c int, v *float64) {
	if v == nil {
		return
	}
	setCell(f, r, c, *v)
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Style: 1, Color: "000000"},
		{Type: "right", Style: 1, Color: "000000"},
		{Type: "top", Style: 1, Color: "000000"},
		{Type: "bottom", Style: 1, Color: "000000"},
	}
}
