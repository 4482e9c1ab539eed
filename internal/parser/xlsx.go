package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseXLSX renders every sheet as pipe-delimited rows.
func parseXLSX(path string) (string, error) {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer workbook.Close()

	var sheets []string
	for _, sheetName := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheetName, err)
		}
		var buf strings.Builder
		buf.WriteString("Sheet: " + sheetName + "\n")
		for _, row := range rows {
			buf.WriteString(strings.Join(row, " | "))
			buf.WriteString("\n")
		}
		sheets = append(sheets, strings.TrimRight(buf.String(), "\n"))
	}
	return strings.Join(sheets, "\n\n"), nil
}
