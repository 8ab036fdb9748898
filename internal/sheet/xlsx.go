package sheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

func readXLSX(path, sheetName string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheetName == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheetName = list[0]
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheetName, path, err)
	}

	return rows, nil
}

func xlsxSheets(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}
