package docconv

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// convertXlsx renders every sheet as a Markdown table under a sheet
// heading. The first row is treated as the header row.
func convertXlsx(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("docconv: open xlsx %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", stem(path))

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("docconv: xlsx %s sheet %s: %w", path, sheet, err)
		}
		if len(rows) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n## %s\n\n", sheet)

		width := 0
		for _, row := range rows {
			if len(row) > width {
				width = len(row)
			}
		}

		writeRow := func(row []string) {
			b.WriteString("|")
			for i := 0; i < width; i++ {
				cell := ""
				if i < len(row) {
					cell = strings.ReplaceAll(row[i], "|", "\\|")
				}
				b.WriteString(" " + cell + " |")
			}
			b.WriteString("\n")
		}

		writeRow(rows[0])
		b.WriteString("|")
		for i := 0; i < width; i++ {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range rows[1:] {
			writeRow(row)
		}
	}
	return b.String(), nil
}
