// Package roster imports student rosters kept in legacy spreadsheets.
package roster

import (
	"fmt"
	"strings"

	"github.com/extrame/xls"
)

// ReadXLS returns the cells of the first sheet of an .xls workbook, one
// slice per row. Missing rows come back empty.
func ReadXLS(path string) ([][]string, error) {
	file, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sheet := file.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%s has no sheets", path)
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, strings.TrimSpace(row.Col(c)))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
