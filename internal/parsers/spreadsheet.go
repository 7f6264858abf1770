package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// sheet is one worksheet's worth of parsed cells.
type sheet struct {
	Name string     `json:"name"`
	Data [][]string `json:"data"`
}

// parseSpreadsheet tries the modern XLSX format first (excelize), falling
// back to the legacy binary XLS format (extrame/xls) on failure — both
// media types map here since a client may mislabel one as the other.
func parseSpreadsheet(body []byte) ([]byte, error) {
	sheets, err := parseXLSX(body)
	if err == nil {
		return json.Marshal(sheets)
	}

	sheets, xlsErr := parseXLS(body)
	if xlsErr != nil {
		return nil, fmt.Errorf("spreadsheet parse failed: xlsx: %v, xls: %w", err, xlsErr)
	}
	return json.Marshal(sheets)
}

func parseXLSX(body []byte) ([]sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sheets []sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet{Name: name, Data: rows})
	}
	return sheets, nil
}

func parseXLS(body []byte) ([]sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(body), "utf-8")
	if err != nil {
		return nil, err
	}

	var sheets []sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		var rows [][]string
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, row.LastCol()-row.FirstCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c-row.FirstCol()] = row.Col(c)
			}
			rows = append(rows, cells)
		}
		sheets = append(sheets, sheet{Name: ws.Name, Data: rows})
	}
	return sheets, nil
}
