package docconv

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// convertPDF extracts plain text per page and joins pages with blank
// lines. Layout-level analysis is out of scope; the extracted text is
// enough for search index chunking.
func convertPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("docconv: open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", stem(path))

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("docconv: pdf %s page %d: %w", path, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n")
	}
	return b.String(), nil
}
