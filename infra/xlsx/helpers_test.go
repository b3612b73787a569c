package xlsx

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type sheetData struct {
	name string
	rows [][]any
}

// writeFixture creates an xlsx file at path with the given sheets, in order.
func writeFixture(t *testing.T, path string, sheets ...sheetData) {
	t.Helper()
	f := excelize.NewFile()
	for i, s := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", s.name))
		} else {
			_, err := f.NewSheet(s.name)
			require.NoError(t, err)
		}
		for r, row := range s.rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				ref, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(s.name, ref, v))
			}
		}
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}
